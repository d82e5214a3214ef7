// shprobe - Spherical harmonic light probe baker and viewer
// Bakes a grid of SH irradiance probes from a glTF scene and looks them up.
//
// Commands:
//
//	bake     - Capture every probe of a volume and write it to disk
//	query    - Interpolate a baked volume at a point
//	inspect  - Print a summary of a baked volume
//	view     - Fly a probe-lit sphere through a volume in the terminal
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		stop()
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	verbose bool
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{logger: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:   "shprobe",
		Short: "Bake and inspect spherical harmonic light probe volumes",
		Long: "shprobe renders cube captures of a glTF scene on a grid of points, " +
			"projects each onto nine SH coefficients and stores the volume for " +
			"trilinear lookup.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log bake events to stderr")

	root.AddCommand(
		newBakeCmd(opts),
		newQueryCmd(),
		newInspectCmd(),
		newViewCmd(),
	)
	return root
}

// newLogger returns a text logger at debug level when verbose, and a
// discarding one otherwise.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
