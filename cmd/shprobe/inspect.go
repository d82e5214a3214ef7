package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/taigrr/shprobe/pkg/probe"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <volume>",
		Short: "Print a summary of a baked volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, err := probe.LoadFile(args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), vol)
			return nil
		},
	}
}

func printSummary(w io.Writer, vol *probe.Volume) {
	lo, hi := vol.Band0Range()
	center := probe.Query(vol, vol.Bounds.Center())
	ambient := center.Ambient()

	fmt.Fprintf(w, "Bounds:   %s .. %s\n", fmtVec(vol.Bounds.Min), fmtVec(vol.Bounds.Max))
	fmt.Fprintf(w, "Density:  %g\n", vol.Density)
	fmt.Fprintf(w, "Dims:     %d x %d x %d\n", vol.Dims[0], vol.Dims[1], vol.Dims[2])
	fmt.Fprintf(w, "Probes:   %d\n", vol.Len())
	fmt.Fprintf(w, "Band 0:   [%.5f, %.5f]\n", lo, hi)
	fmt.Fprintf(w, "Ambient:  %.5f %.5f %.5f (volume centre)\n", ambient.R, ambient.G, ambient.B)
}
