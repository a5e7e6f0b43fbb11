package main

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/absfs/deniable"
	"github.com/spf13/cobra"
)

type unlockOptions struct {
	dryRun     bool
	cryptsetup string
}

func newUnlockCmd(a *app) *cobra.Command {
	opts := &unlockOptions{}

	cmd := &cobra.Command{
		Use:   "unlock ARTIFACT DEVICE NAME",
		Short: "Map the partition behind a password with cryptsetup",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.unlock(cmd, opts, args[0], args[1], args[2])
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the cryptsetup command instead of running it")
	cmd.Flags().StringVar(&opts.cryptsetup, "cryptsetup", "cryptsetup", "cryptsetup binary")
	return cmd
}

func (a *app) unlock(cmd *cobra.Command, opts *unlockOptions, artifactPath, device, name string) error {
	out := cmd.OutOrStdout()

	artifact, err := deniable.LoadArtifact(a.fs, artifactPath)
	if err != nil {
		return err
	}
	blockSize := int(artifact.BlockSize)

	blocks, err := deviceBlocks(device, blockSize)
	if err != nil {
		return err
	}
	if artifact.DeviceBlocks != 0 && artifact.DeviceBlocks != blocks {
		a.log.Warn("device size differs from preparation",
			"device", device, "blocks", blocks, "prepared_blocks", artifact.DeviceBlocks)
	}

	p := newPrompter(cmd.InOrStdin(), out)
	pw, err := p.Password(fmt.Sprintf("Password for %s [%s]: ", device, name))
	if err != nil {
		return err
	}

	m, err := deniable.NewMapping(artifact, pw, blocks, device, name)
	clear(pw)
	if err != nil {
		return err
	}
	defer m.Wipe()

	fmt.Fprintf(out, "Unlocking %s [%s]...\n", device, name)
	fmt.Fprintf(out, "Partition starts at block %s\n", blockString(m.Block, blockSize))

	if opts.dryRun {
		fmt.Fprintf(out, "%s %s\n", opts.cryptsetup, strings.Join(m.Args(), " "))
		return nil
	}

	c := exec.CommandContext(cmd.Context(), opts.cryptsetup, m.Args()...)
	c.Stdin = bytes.NewReader(m.Key)
	c.Stdout = out
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s failed: %w", opts.cryptsetup, err)
	}

	fmt.Fprintf(out, "Done unlocking %s [%s]\n", device, name)
	return nil
}
