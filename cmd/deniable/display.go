package main

import (
	"fmt"
	"io"

	"github.com/absfs/deniable"
	"github.com/charmbracelet/lipgloss"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	goodStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// blockString renders a block index with its byte size, e.g. "256 (1M)"
func blockString(block uint64, blockSize int) string {
	return fmt.Sprintf("%d (%s)", block, deniable.FormatSize(block, blockSize))
}

func printTargets(w io.Writer, targets []deniable.PartitionTarget, blockSize int) {
	fmt.Fprintln(w, headingStyle.Render("Targeting the following partitions..."))
	for i, t := range targets {
		fmt.Fprintf(w, "    Partition %d: Block %s\n", i+1, blockString(t.Offset, blockSize))
	}
	fmt.Fprintln(w)
}

func printResult(w io.Writer, r *deniable.SearchResult, blockSize int) {
	status := goodStyle.Render("Found a salt")
	if !r.Satisfied {
		status = warnStyle.Render("Best salt so far")
	}
	fmt.Fprintf(w, "%s with %s deviation %s at %d iterations.\n",
		status, r.Policy, blockString(r.Deviation, blockSize), r.Iterations)
	fmt.Fprintln(w, "The salt has the following partitions...")
	for i, off := range r.Offsets {
		fmt.Fprintf(w, "    Partition %d: Block %s, off by %s\n",
			i+1, blockString(off.Block, blockSize), deniable.FormatSize(off.Deviation, blockSize))
	}
}
