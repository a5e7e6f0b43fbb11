package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/absfs/deniable"
	"github.com/spf13/cobra"
)

type prepareOptions struct {
	minIterations int
	maxIterations int
	policy        string
	hash          string
	workers       int
	maxTrials     uint64
}

func newPrepareCmd(a *app) *cobra.Command {
	opts := &prepareOptions{}

	cmd := &cobra.Command{
		Use:   "prepare DEVICE ARTIFACT",
		Short: "Choose partition offsets and write an unlocker artifact",
		Long: `prepare asks for one password and target offset per partition, then
searches for a salt and iteration count that put every partition close to
its target. Interrupting the search offers the best layout found so far.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.prepare(cmd, opts, args[0], args[1])
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.minIterations, "min-iterations", 0, "smallest chain depth to scan (default from config)")
	f.IntVar(&opts.maxIterations, "max-iterations", 0, "scan depths below this bound (default from config)")
	f.StringVar(&opts.policy, "policy", "", "deviation policy: cumulative or worst-case")
	f.StringVar(&opts.hash, "hash", "", "hash primitive: sha3-512, sha3-256, blake2b-512 or sha512")
	f.IntVar(&opts.workers, "workers", 0, "parallel search workers (default: number of CPUs)")
	f.Uint64Var(&opts.maxTrials, "max-trials", 0, "give up after this many salts (0: never)")
	return cmd
}

// apply overlays flags on the loaded config
func (o *prepareOptions) apply(cfg deniable.Config) *deniable.Config {
	if o.minIterations > 0 {
		cfg.Iterations.Min = o.minIterations
		if cfg.Iterations.Max < o.minIterations {
			cfg.Iterations.Max = o.minIterations
		}
	}
	if o.maxIterations > 0 {
		cfg.Iterations.Max = o.maxIterations
	}
	if o.policy != "" {
		cfg.Policy = o.policy
	}
	if o.hash != "" {
		cfg.Hash = o.hash
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	if o.maxTrials > 0 {
		cfg.MaxTrials = o.maxTrials
	}
	return &cfg
}

func (a *app) prepare(cmd *cobra.Command, opts *prepareOptions, device, artifactPath string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := opts.apply(*a.config)
	if err := cfg.Validate(); err != nil {
		return err
	}
	blockSize := int(cfg.BlockSize)

	blocks, err := deviceBlocks(device, blockSize)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Device is %s blocks\n", blockString(blocks, blockSize))

	p := newPrompter(cmd.InOrStdin(), out)
	targets, err := readTargets(p, blocks, blockSize)
	if err != nil {
		return err
	}
	printTargets(out, targets, blockSize)

	fmt.Fprintln(out, "It is hard to target offsets exactly, so an acceptable deviation can be set.")
	fmt.Fprintf(out, "This tool searches for offsets such that the %s deviation\n", cfg.Policy)
	fmt.Fprintln(out, "is at most n blocks.")
	budget, err := p.Blocks("Maximum deviation: ", blockSize, 0, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Using maximum deviation %s\n", blockString(budget, blockSize))

	searchCfg, err := cfg.SearchConfig(targets, blocks, budget)
	if err != nil {
		return err
	}
	searchCfg.Logger = a.log
	searchCfg.OnImprove = func(r deniable.SearchResult) {
		fmt.Fprintf(out, "Found a deviation of %d...\n", r.Deviation)
	}

	result, err := searchUntilAccepted(ctx, p, searchCfg, out, blockSize)
	if err != nil {
		return err
	}

	artifact, err := deniable.NewArtifact(result, blockSize, int(cfg.SectorSize))
	if err != nil {
		return err
	}
	if err := deniable.SaveArtifact(a.fs, artifactPath, artifact); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved unlocker artifact to %s\n", artifactPath)
	return nil
}

func readTargets(p *prompter, blocks uint64, blockSize int) ([]deniable.PartitionTarget, error) {
	var targets []deniable.PartitionTarget
	for {
		part := len(targets) + 1
		fmt.Fprintf(p.out, "Getting details for partition %d...\n", part)

		pw, err := p.NewPassword(fmt.Sprintf("Password for partition %d: ", part))
		if err != nil {
			return nil, err
		}
		if dup := findPassword(targets, pw); dup > 0 {
			fmt.Fprintf(p.out, "That password is already used by partition %d!\n\n", dup)
			continue
		}

		target, err := p.Blocks(fmt.Sprintf("Starting location for partition %d: ", part),
			blockSize, blocks, "Target offset is past the end of the device!")
		if err != nil {
			return nil, err
		}
		targets = append(targets, deniable.PartitionTarget{Password: pw, Offset: target})
		fmt.Fprintf(p.out, "Target offset for partition %d: %s\n", part, blockString(target, blockSize))

		more, err := p.Bool("Add more partitions?", true)
		if err != nil {
			return nil, err
		}
		fmt.Fprintln(p.out)
		if !more {
			return targets, nil
		}
	}
}

func findPassword(targets []deniable.PartitionTarget, pw []byte) int {
	for i, t := range targets {
		if string(t.Password) == string(pw) {
			return i + 1
		}
	}
	return 0
}

// searchUntilAccepted repeats the search until the operator accepts a
// layout. After an interrupt the best layout so far is offered once.
func searchUntilAccepted(ctx context.Context, p *prompter, cfg deniable.SearchConfig, out io.Writer, blockSize int) (*deniable.SearchResult, error) {
	for {
		s, err := deniable.NewSearcher(cfg)
		if err != nil {
			return nil, err
		}
		result, err := s.Search(ctx)
		if err != nil {
			return nil, err
		}

		if !result.Found() {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("search cancelled before any salt was graded: %w", ctx.Err())
			}
			return nil, errors.New("search ended without grading a salt")
		}

		if ctx.Err() != nil {
			fmt.Fprintln(out, warnStyle.Render("Search interrupted."))
		} else if !result.Satisfied {
			fmt.Fprintf(out, "%s\n", warnStyle.Render(fmt.Sprintf("Gave up after %d salts.", result.Trials)))
		}
		printResult(out, result, blockSize)

		ok, err := p.Bool("Accept this partition layout and generate an unlocker?", result.Satisfied)
		if err != nil {
			return nil, err
		}
		if ok {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}
