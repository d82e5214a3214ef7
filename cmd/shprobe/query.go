package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/probe"
	"github.com/taigrr/shprobe/pkg/sh"
)

var coefficientNames = [sh.CoefficientCount]string{
	"L00", "L1-1", "L10", "L11", "L2-2", "L2-1", "L20", "L21", "L22",
}

func newQueryCmd() *cobra.Command {
	var (
		normal string
		reject bool
	)

	cmd := &cobra.Command{
		Use:   "query <volume> <x> <y> <z>",
		Short: "Interpolate a baked volume at a point",
		Long: "Query blends the eight probes around the point and prints the " +
			"coefficients and the irradiance for a surface normal.",
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			vol, err := probe.LoadFile(args[0])
			if err != nil {
				return err
			}

			var pos math3d.Vec3
			for i, dst := range []*float64{&pos.X, &pos.Y, &pos.Z} {
				*dst, err = strconv.ParseFloat(args[i+1], 64)
				if err != nil {
					return fmt.Errorf("coordinate %q: %w", args[i+1], err)
				}
			}

			n, err := parseVec3(normal)
			if err != nil {
				return fmt.Errorf("--normal: %w", err)
			}
			if n.Len() == 0 {
				return fmt.Errorf("--normal: zero vector")
			}

			lookup := probe.Lookup{}
			if reject {
				lookup.Policy = probe.PolicyReject
			}
			coeffs, err := lookup.Query(vol, pos)
			if err != nil {
				return err
			}

			printQuery(cmd.OutOrStdout(), pos, n.Normalize(), coeffs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&normal, "normal", "n", "0,1,0", "Surface normal as nx,ny,nz")
	cmd.Flags().BoolVar(&reject, "reject", false, "Fail for points outside the volume instead of clamping")
	return cmd
}

func printQuery(w io.Writer, pos, normal math3d.Vec3, coeffs sh.Coefficients) {
	fmt.Fprintf(w, "Position: %s\n", fmtVec(pos))
	for i, c := range coeffs {
		fmt.Fprintf(w, "  %-5s %10.5f %10.5f %10.5f\n", coefficientNames[i], c.R, c.G, c.B)
	}
	e := sh.Evaluate(coeffs, normal)
	fmt.Fprintf(w, "Irradiance/pi at normal %s: %.5f %.5f %.5f\n", fmtVec(normal), e.R, e.G, e.B)
}
