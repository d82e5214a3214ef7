package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/taigrr/shprobe/internal/config"
	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/probe"
	"github.com/taigrr/shprobe/pkg/render"
)

// atlasCellSize is the on-disk size of one face in a --dump-faces atlas.
const atlasCellSize = 128

type bakeOptions struct {
	configPath string
	flags      config.Flags
	bounds     string
	dumpFaces  string
	exposure   float64
}

func newBakeCmd(global *globalOptions) *cobra.Command {
	opts := &bakeOptions{}

	cmd := &cobra.Command{
		Use:   "bake [scene.glb]",
		Short: "Bake a probe volume from a glTF scene",
		Long: "Bake captures a cube environment at every grid point inside the volume " +
			"bounds and writes the projected coefficients as JSON or SHPV binary. " +
			"Without a scene argument the built-in demo scene is baked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenePath := ""
			if len(args) > 0 {
				scenePath = args[0]
			}
			return runBake(cmd.Context(), scenePath, opts, global)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "JSON bake config file")
	f.Float64Var(&opts.flags.Near, "near", 0, "Capture near plane (default 0.1)")
	f.Float64Var(&opts.flags.Far, "far", 0, "Capture far plane (default 1000)")
	f.IntVarP(&opts.flags.Resolution, "resolution", "r", 0, "Cube face size in pixels, a power of two (default 32)")
	f.Float64VarP(&opts.flags.Density, "density", "d", 0, "Probe spacing in world units (default 1)")
	f.IntVarP(&opts.flags.Workers, "workers", "w", 0, "Concurrent captures (default NumCPU)")
	f.StringVar(&opts.flags.Format, "format", "", "Output format: json or binary")
	f.StringVarP(&opts.flags.Output, "output", "o", "", "Output file (default probes.json or probes.shpv)")
	f.StringSliceVarP(&opts.flags.Exclude, "exclude", "x", nil, "Object names hidden during capture")
	f.StringVar(&opts.bounds, "bounds", "", "Volume box as minX,minY,minZ,maxX,maxY,maxZ (default scene bounds)")
	f.StringVar(&opts.dumpFaces, "dump-faces", "", "Directory for a WebP cube atlas of the centre probe")
	f.Float64Var(&opts.exposure, "exposure", 1, "Exposure of dumped atlases")

	return cmd
}

func runBake(ctx context.Context, scenePath string, opts *bakeOptions, global *globalOptions) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	insts, err := loadInstances(scenePath)
	if err != nil {
		return err
	}
	scene := buildScene(insts)

	name := "demo scene"
	if scenePath != "" {
		name = filepath.Base(scenePath)
	}
	fmt.Printf("Loaded: %s (%d objects)\n", name, len(scene.Objects))

	sb := scene.Bounds()
	if sb.IsEmpty() && cfg.Bounds == nil {
		return errors.New("scene has no geometry; pass --bounds")
	}
	bounds := cfg.VolumeBounds(probe.AABB{Min: sb.Min, Max: sb.Max})

	dims, err := probe.GridDims(bounds, cfg.Density)
	if err != nil {
		return err
	}
	total := dims[0] * dims[1] * dims[2]
	fmt.Printf("Volume: %v..%v, %dx%dx%d = %d probes, %d workers\n",
		fmtVec(bounds.Min), fmtVec(bounds.Max), dims[0], dims[1], dims[2], total, cfg.Workers)

	if opts.dumpFaces != "" {
		if err := dumpCenterAtlas(ctx, scene, bounds.Center(), cfg, opts); err != nil {
			return err
		}
	}

	var baked atomic.Int64
	start := time.Now()
	stopProgress := reportProgress(&baked, total, start)

	bakeOpts := probe.BakeOptions{
		Capture:  cfg.CaptureParams(),
		Progress: func(completed, _ int) { baked.Store(int64(completed)) },
		Logger:   global.logger,
	}
	vol, err := probe.BakeParallel(ctx, bounds, cfg.Density, scene.RendererFactory(), bakeOpts, cfg.Workers)
	stopProgress()
	if err != nil {
		return fmt.Errorf("bake: %w", err)
	}

	if err := probe.SaveFile(cfg.Output, vol); err != nil {
		return err
	}

	lo, hi := vol.Band0Range()
	fmt.Printf("Baked %d probes in %s, band 0 range [%.4f, %.4f]\n", vol.Len(), time.Since(start).Round(time.Millisecond), lo, hi)
	fmt.Printf("Wrote %s\n", cfg.Output)
	return nil
}

// resolveConfig loads the optional config file and applies the flags over it.
func resolveConfig(opts *bakeOptions) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := opts.flags
	if opts.bounds != "" {
		v, err := parseFloats(opts.bounds, 6)
		if err != nil {
			return cfg, fmt.Errorf("--bounds: %w", err)
		}
		flags.Bounds = &config.Bounds{
			Min: [3]float64{v[0], v[1], v[2]},
			Max: [3]float64{v[3], v[4], v[5]},
		}
	}

	cfg.Resolve(flags)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if probe.IsBinaryPath(cfg.Output) != (cfg.Format == config.FormatBinary) {
		return cfg, fmt.Errorf("output %s does not match format %s (binary uses .shpv or .bin)", cfg.Output, cfg.Format)
	}
	return cfg, nil
}

// reportProgress prints the bake rate every two seconds until the returned
// function is called.
func reportProgress(baked *atomic.Int64, total int, start time.Time) func() {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := baked.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					fmt.Printf("  [%d/%d] %.1f probes/sec\n", p, total, rate)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// dumpCenterAtlas writes the cube capture at pos as a cross-shaped atlas.
func dumpCenterAtlas(ctx context.Context, scene *render.Scene, pos math3d.Vec3, cfg config.Config, opts *bakeOptions) error {
	if err := os.MkdirAll(opts.dumpFaces, 0o755); err != nil {
		return fmt.Errorf("dump faces: %w", err)
	}

	env, err := cubemap.Capture(ctx, pos, cfg.CaptureParams(), scene.NewRenderer())
	if err != nil {
		return fmt.Errorf("dump faces: %w", err)
	}

	atlas := render.CubeAtlas(env, opts.exposure)
	scaled := render.ScaleImage(atlas, 4*atlasCellSize, 3*atlasCellSize)
	path := filepath.Join(opts.dumpFaces, "center.webp")
	if err := render.SaveWebP(path, scaled); err != nil {
		return fmt.Errorf("dump faces: %w", err)
	}
	fmt.Printf("Wrote %s (probe at %s)\n", path, fmtVec(pos))
	return nil
}

// parseFloats parses exactly n comma-separated numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseVec3(s string) (math3d.Vec3, error) {
	v, err := parseFloats(s, 3)
	if err != nil {
		return math3d.Vec3{}, err
	}
	return math3d.V3(v[0], v[1], v[2]), nil
}

func fmtVec(v math3d.Vec3) string {
	return fmt.Sprintf("(%.3g, %.3g, %.3g)", v.X, v.Y, v.Z)
}
