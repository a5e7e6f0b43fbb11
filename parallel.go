package deniable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelConfig controls parallel salt sampling
type ParallelConfig struct {
	// Enabled enables parallel sampling
	Enabled bool

	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int
}

// Validate checks if the parallel configuration is valid
func (p *ParallelConfig) Validate() error {
	if !p.Enabled {
		return nil // Nothing to validate if disabled
	}

	if p.MaxWorkers < 0 {
		return NewValidationError("parallel.max_workers", p.MaxWorkers, "parallel max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return NewValidationError("parallel.max_workers", p.MaxWorkers, "parallel max workers must not exceed 1024")
	}

	return nil
}

// DefaultParallelConfig returns the default parallel sampling configuration
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		Enabled:    true,
		MaxWorkers: runtime.NumCPU(),
	}
}

func (p *ParallelConfig) workers() int {
	if !p.Enabled {
		return 1
	}
	if p.MaxWorkers <= 0 {
		return runtime.NumCPU()
	}
	return p.MaxWorkers
}

// bestTracker holds the best result across all workers. It is the only
// state workers share.
type bestTracker struct {
	mu        sync.Mutex
	best      *SearchResult
	trials    uint64
	done      bool
	policy    AggregatePolicy
	maxTrials uint64
	onImprove func(SearchResult)
	log       *slog.Logger
}

func newBestTracker(cfg SearchConfig, log *slog.Logger) *bestTracker {
	return &bestTracker{
		policy:    cfg.Policy,
		maxTrials: cfg.MaxTrials,
		onImprove: cfg.OnImprove,
		log:       log,
	}
}

// offer records a graded salt and reports whether the search should stop
func (t *bestTracker) offer(r *SearchResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		// Late results from workers draining after a stop still count if better.
		if t.best == nil || r.Deviation < t.best.Deviation {
			t.best = r
		}
		return true
	}

	t.trials++
	r.Trials = t.trials

	if t.best == nil || r.Deviation < t.best.Deviation {
		t.best = r
		t.log.Info("deviation improved",
			"trial", r.Trials,
			"deviation", r.Deviation,
			"iterations", r.Iterations)
		if t.onImprove != nil {
			t.onImprove(*r.clone())
		}
	}

	if r.Satisfied || (t.maxTrials > 0 && t.trials >= t.maxTrials) {
		t.done = true
	}
	return t.done
}

// result returns a copy of the best result, or an empty one
func (t *bestTracker) result() *SearchResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.best == nil {
		return &SearchResult{Policy: t.policy, Trials: t.trials}
	}
	r := t.best.clone()
	r.Trials = t.trials
	return r
}

// runParallel samples salts on several workers until the tracker says stop
func (s *Searcher) runParallel(ctx context.Context, workers int, tracker *bestTracker) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					// Convert panic to error
					err = fmt.Errorf("panic in search worker: %v", r)
				}
			}()
			return s.sampleLoop(gctx, tracker, cancel)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Searcher) sampleLoop(ctx context.Context, tracker *bestTracker, stop context.CancelFunc) error {
	for ctx.Err() == nil {
		salt, err := s.salts.next()
		if err != nil {
			return err
		}

		r, err := s.Grade(ctx, salt)
		if r != nil && tracker.offer(r) {
			stop()
			return nil
		}
		if err != nil {
			// ctx ended mid-trial; whatever was found has been offered
			return nil
		}
	}
	return nil
}
