package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/sh"
)

// ErrNotReady is returned by Baker.Result before the last probe is baked.
var ErrNotReady = errors.New("probe: bake not finished")

// ProgressFunc receives (completed, total) after every baked probe. It runs
// on the baking goroutine and should return quickly.
type ProgressFunc func(completed, total int)

// BakeOptions configures a bake.
type BakeOptions struct {
	// Capture holds the clip range, face resolution and the names of the
	// objects hidden during capture. The zero value means
	// cubemap.DefaultCaptureParams, keeping any Exclude list.
	Capture cubemap.CaptureParams
	// Progress is optional.
	Progress ProgressFunc
	// Logger receives bake events. Nil discards them.
	Logger *slog.Logger
}

func (o BakeOptions) captureParams() cubemap.CaptureParams {
	p := o.Capture
	if p.Near == 0 && p.Far == 0 && p.Resolution == 0 {
		def := cubemap.DefaultCaptureParams()
		def.Exclude = p.Exclude
		return def
	}
	return p
}

func (o BakeOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// BakeError reports the probe that aborted a bake.
type BakeError struct {
	Index  int
	Coords [3]int
	Err    error
}

func (e *BakeError) Error() string {
	return fmt.Sprintf("probe: bake failed at probe %d (%d, %d, %d): %v",
		e.Index, e.Coords[0], e.Coords[1], e.Coords[2], e.Err)
}

func (e *BakeError) Unwrap() error {
	return e.Err
}

// bakeProbe captures and projects a single probe.
func bakeProbe(ctx context.Context, pos math3d.Vec3, params cubemap.CaptureParams, renderer cubemap.SceneRenderer) (sh.Coefficients, error) {
	if err := ctx.Err(); err != nil {
		return sh.Coefficients{}, err
	}
	env, err := cubemap.Capture(ctx, pos, params, renderer)
	if err != nil {
		return sh.Coefficients{}, err
	}
	return sh.Project(env)
}

// Baker bakes a volume one probe per Step, so a host can interleave baking
// with other per-frame work. A Baker is not safe for concurrent use.
type Baker struct {
	renderer cubemap.SceneRenderer
	params   cubemap.CaptureParams
	progress ProgressFunc
	log      *slog.Logger

	vol     *Volume
	total   int
	next    int
	err     error
	started time.Time
}

// NewBaker validates the grid and capture parameters and prepares an empty
// volume. Nothing is rendered until Step.
func NewBaker(bounds AABB, density float64, renderer cubemap.SceneRenderer, opts BakeOptions) (*Baker, error) {
	params := opts.captureParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		return nil, errors.New("probe: nil scene renderer")
	}
	vol, err := NewVolume(bounds, density)
	if err != nil {
		return nil, err
	}
	return &Baker{
		renderer: renderer,
		params:   params,
		progress: opts.Progress,
		log:      opts.logger(),
		vol:      vol,
		total:    vol.Len(),
	}, nil
}

// Step bakes the next probe. It returns done once every probe is baked or
// the bake has failed; a failed bake keeps returning the same error.
func (b *Baker) Step(ctx context.Context) (done bool, err error) {
	if b.err != nil {
		return true, b.err
	}
	total := b.total
	if b.next == total {
		return true, nil
	}
	if b.next == 0 {
		b.started = time.Now()
		b.log.Info("bake started",
			"probes", total,
			"dims", b.vol.Dims,
			"resolution", b.params.Resolution)
	}

	idx := b.next
	i, j, k := b.vol.Coords(idx)
	probe := &b.vol.Probes[idx]

	t0 := time.Now()
	coeffs, err := bakeProbe(ctx, probe.Position, b.params, b.renderer)
	if err != nil {
		b.err = &BakeError{Index: idx, Coords: [3]int{i, j, k}, Err: err}
		b.vol = nil
		b.log.Error("bake failed", "index", idx, "i", i, "j", j, "k", k, "err", err)
		return true, b.err
	}
	probe.Coefficients = coeffs
	b.next++

	b.log.Debug("probe baked", "index", idx, "i", i, "j", j, "k", k, "elapsed", time.Since(t0))
	if b.progress != nil {
		b.progress(b.next, total)
	}

	if b.next == total {
		b.log.Info("bake finished", "probes", total, "elapsed", time.Since(b.started))
		return true, nil
	}
	return false, nil
}

// Progress returns the number of baked probes and the total.
func (b *Baker) Progress() (completed, total int) {
	return b.next, b.total
}

// Result returns the finished volume, the bake error, or ErrNotReady.
func (b *Baker) Result() (*Volume, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.next < b.total {
		return nil, ErrNotReady
	}
	return b.vol, nil
}

// Bake runs a Baker to completion. On failure it returns a *BakeError and no
// volume.
func Bake(ctx context.Context, bounds AABB, density float64, renderer cubemap.SceneRenderer, opts BakeOptions) (*Volume, error) {
	b, err := NewBaker(bounds, density, renderer, opts)
	if err != nil {
		return nil, err
	}
	for {
		done, err := b.Step(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			return b.Result()
		}
	}
}
