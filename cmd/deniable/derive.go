package main

import (
	"encoding/hex"
	"fmt"

	"github.com/absfs/deniable"
	"github.com/spf13/cobra"
)

type deriveOptions struct {
	blocks  string
	device  string
	showKey bool
}

func newDeriveCmd(a *app) *cobra.Command {
	opts := &deriveOptions{}

	cmd := &cobra.Command{
		Use:   "derive ARTIFACT",
		Short: "Print where a password's partition starts",
		Long: `derive reads a password and prints the block and sector offset it
resolves to, without touching any device mapping. The device size comes
from --device, --blocks, or the size recorded in the artifact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.derive(cmd, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.blocks, "blocks", "", "device size in blocks, or with a k/m/g/t/p suffix in bytes")
	f.StringVar(&opts.device, "device", "", "read the device size from this path")
	f.BoolVar(&opts.showKey, "show-key", false, "also print the derived key in hex")
	cmd.MarkFlagsMutuallyExclusive("blocks", "device")
	return cmd
}

func (a *app) derive(cmd *cobra.Command, opts *deriveOptions, artifactPath string) error {
	out := cmd.OutOrStdout()

	artifact, err := deniable.LoadArtifact(a.fs, artifactPath)
	if err != nil {
		return err
	}
	blockSize := int(artifact.BlockSize)

	blocks := artifact.DeviceBlocks
	switch {
	case opts.device != "":
		if blocks, err = deviceBlocks(opts.device, blockSize); err != nil {
			return err
		}
	case opts.blocks != "":
		if blocks, err = deniable.ParseBlocks(opts.blocks, blockSize); err != nil {
			return err
		}
	}

	p := newPrompter(cmd.InOrStdin(), out)
	pw, err := p.Password("Password: ")
	if err != nil {
		return err
	}

	params := artifact.Parameters(blocks)
	details, err := params.Derive(pw)
	clear(pw)
	if err != nil {
		return err
	}
	defer clear(details.Key)

	sectors := details.Block * uint64(artifact.BlockSize/uint32(artifact.SectorSize))
	fmt.Fprintf(out, "Block: %s\n", blockString(details.Block, blockSize))
	fmt.Fprintf(out, "Sector offset: %d\n", sectors)
	if opts.showKey {
		fmt.Fprintf(out, "Key: %s\n", hex.EncodeToString(details.Key))
	}
	return nil
}
