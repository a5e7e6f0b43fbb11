package deniable

import (
	"context"
	"crypto/rand"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// checkInterval is how many chain steps run between cancellation checks
const checkInterval = 256

// SearchConfig describes one salt search
type SearchConfig struct {
	// Targets lists the requested volumes. Order is kept in results.
	Targets []PartitionTarget

	// BlockModulus is the number of blocks on the device
	BlockModulus uint64

	// DeviationBudget is the largest aggregate deviation, in blocks, a
	// salt may have to be accepted
	DeviationBudget uint64

	// KeySize is the derived key length in bytes. Defaults to DefaultKeySize.
	KeySize int

	// MinIterations and MaxIterations bound the chain depths scanned per
	// salt: [MinIterations, MaxIterations). Equal values scan the single
	// depth MinIterations. Both default to DefaultIterations.
	MinIterations int
	MaxIterations int

	// Hash selects the primitive. Defaults to DefaultHash.
	Hash HashID

	// Policy selects how deviations are aggregated
	Policy AggregatePolicy

	// Parallel controls concurrent salt sampling
	Parallel ParallelConfig

	// MaxTrials stops the search after this many salts. 0 means unbounded.
	MaxTrials uint64

	// Rand supplies salts. Defaults to crypto/rand.
	Rand io.Reader

	// Logger receives progress records. Defaults to slog.Default().
	Logger *slog.Logger

	// OnImprove, if set, is called with every new best result. Calls are
	// serialized.
	OnImprove func(SearchResult)
}

func (c *SearchConfig) applyDefaults() {
	if c.KeySize == 0 {
		c.KeySize = DefaultKeySize
	}
	if c.MinIterations == 0 && c.MaxIterations == 0 {
		c.MinIterations = DefaultIterations
		c.MaxIterations = DefaultIterations
	}
	if c.Hash == 0 {
		c.Hash = DefaultHash
	}
	if c.Rand == nil {
		c.Rand = rand.Reader
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks the configuration. All checks run before any hashing.
func (c *SearchConfig) Validate() error {
	if err := ValidateTargets(c.Targets, c.BlockModulus); err != nil {
		return err
	}
	if err := ValidateIterations(c.MinIterations, c.MaxIterations); err != nil {
		return err
	}
	if err := ValidateKeySize(c.KeySize); err != nil {
		return err
	}
	if _, err := LookupHash(c.Hash); err != nil {
		return newValidationErr("hash", c.Hash, ErrUnsupportedHash, "")
	}
	if c.Policy != PolicyCumulative && c.Policy != PolicyWorstCase {
		return newValidationErr("policy", c.Policy, ErrUnsupportedPolicy, "")
	}
	return c.Parallel.Validate()
}

// Searcher finds salts whose derived offsets land near their targets
type Searcher struct {
	cfg   SearchConfig
	hash  HashPrimitive
	salts *saltSource
	log   *slog.Logger
}

// NewSearcher validates cfg and returns a searcher for it
func NewSearcher(cfg SearchConfig) (*Searcher, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, _ := LookupHash(cfg.Hash)
	return &Searcher{
		cfg:   cfg,
		hash:  p,
		salts: newSaltSource(cfg.Rand, p.Size()),
		log:   cfg.Logger,
	}, nil
}

// Search samples salts until one meets the deviation budget, MaxTrials is
// reached or ctx is done. It returns the best result seen; a result with
// no salt means nothing completed. Cancellation is not reported as an
// error: check Satisfied.
func (s *Searcher) Search(ctx context.Context) (*SearchResult, error) {
	log := s.log.With("run", uuid.NewString())
	workers := s.cfg.Parallel.workers()

	log.Info("search started",
		"targets", len(s.cfg.Targets),
		"blocks", s.cfg.BlockModulus,
		"budget", s.cfg.DeviationBudget,
		"min_iterations", s.cfg.MinIterations,
		"max_iterations", s.cfg.MaxIterations,
		"hash", s.cfg.Hash.String(),
		"policy", s.cfg.Policy.String(),
		"workers", workers)

	start := time.Now()
	tracker := newBestTracker(s.cfg, log)

	var err error
	if workers <= 1 {
		err = s.runSequential(ctx, tracker)
	} else {
		err = s.runParallel(ctx, workers, tracker)
	}

	result := tracker.result()
	log.Info("search finished",
		"satisfied", result.Satisfied,
		"deviation", result.Deviation,
		"trials", result.Trials,
		"cancelled", ctx.Err() != nil,
		"elapsed", time.Since(start))
	return result, err
}

func (s *Searcher) runSequential(ctx context.Context, tracker *bestTracker) error {
	for r, err := range s.Trials(ctx) {
		if err != nil {
			return err
		}
		if tracker.offer(r) {
			return nil
		}
	}
	return nil
}

// Trials lazily evaluates one fresh salt per step. The sequence ends when
// the consumer stops, ctx is done, or salts cannot be drawn (yielding the
// error). A trial interrupted by ctx is still yielded with the best depth
// it reached. Trials does not stop on its own when the budget is met.
func (s *Searcher) Trials(ctx context.Context) iter.Seq2[*SearchResult, error] {
	return func(yield func(*SearchResult, error) bool) {
		for i := uint64(1); ctx.Err() == nil; i++ {
			salt, err := s.salts.next()
			if err != nil {
				yield(nil, err)
				return
			}

			r, err := s.Grade(ctx, salt)
			if r != nil {
				r.Trials = i
				if !yield(r, nil) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// Grade scans the iteration window for salt and returns the depth with the
// lowest aggregate deviation. Each password keeps one chain that advances
// a single step per candidate depth, so a salt costs
// O(passwords × MaxIterations) digests.
//
// If ctx ends mid-scan Grade returns the best depth reached so far (nil if
// none) along with ctx.Err().
func (s *Searcher) Grade(ctx context.Context, salt []byte) (*SearchResult, error) {
	targets := s.cfg.Targets
	modulus := s.cfg.BlockModulus
	policy := s.cfg.Policy

	chains := make([]*Chain, len(targets))
	for i, t := range targets {
		chains[i] = NewChain(s.hash, t.Password, salt)
		if err := advanceChecked(ctx, chains[i], s.cfg.MinIterations-1); err != nil {
			return nil, err
		}
	}

	end := max(s.cfg.MaxIterations, s.cfg.MinIterations+1)
	blocks := make([]uint64, len(targets))
	bestBlocks := make([]uint64, len(targets))
	var best uint64
	bestIter := 0

	var ctxErr error
	for n := s.cfg.MinIterations; n < end; n++ {
		if (n-s.cfg.MinIterations)%checkInterval == checkInterval-1 {
			if ctxErr = ctx.Err(); ctxErr != nil {
				break
			}
		}

		var agg uint64
		beaten := false
		for i, c := range chains {
			c.Advance()
			if beaten {
				continue
			}
			blocks[i] = c.Block(modulus)
			agg = policy.combine(agg, deviation(blocks[i], targets[i].Offset))
			if bestIter != 0 && agg >= best {
				beaten = true
			}
		}

		if !beaten {
			best = agg
			bestIter = n
			copy(bestBlocks, blocks)
		}
	}

	if bestIter == 0 {
		return nil, ctxErr
	}

	offsets := make([]PartitionOffset, len(targets))
	for i, t := range targets {
		offsets[i] = PartitionOffset{
			Target:    t.Offset,
			Block:     bestBlocks[i],
			Deviation: deviation(bestBlocks[i], t.Offset),
		}
	}

	return &SearchResult{
		Salt:       salt,
		Iterations: bestIter,
		Deviation:  best,
		Offsets:    offsets,
		Policy:     policy,
		Satisfied:  best <= s.cfg.DeviationBudget,
		hash:       s.cfg.Hash,
		keySize:    s.cfg.KeySize,
		modulus:    modulus,
	}, ctxErr
}

// advanceChecked primes a chain to depth n, checking ctx periodically
func advanceChecked(ctx context.Context, c *Chain, n int) error {
	for c.Depth() < n {
		if c.Depth()%checkInterval == checkInterval-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		c.Advance()
	}
	return nil
}
