package probe

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taigrr/shprobe/pkg/cubemap"
)

// RendererFactory returns a renderer with its own render target. BakeParallel
// calls it once per worker.
type RendererFactory func() (cubemap.SceneRenderer, error)

// BakeParallel bakes the volume with up to workers probes in flight, each on
// a renderer of its own. workers <= 0 means runtime.NumCPU().
//
// The first failure cancels the remaining work. The error returned is the
// failed probe with the lowest index; probes aborted only because of that
// cancellation are not reported. Progress calls are serialised and their
// completed count increases by one each time.
func BakeParallel(ctx context.Context, bounds AABB, density float64, factory RendererFactory, opts BakeOptions, workers int) (*Volume, error) {
	params := opts.captureParams()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	vol, err := NewVolume(bounds, density)
	if err != nil {
		return nil, err
	}

	total := vol.Len()
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, total)

	pool := make(chan cubemap.SceneRenderer, workers)
	for range workers {
		r, err := factory()
		if err != nil {
			return nil, fmt.Errorf("probe: create renderer: %w", err)
		}
		pool <- r
	}

	log := opts.logger()
	log.Info("bake started", "probes", total, "dims", vol.Dims, "workers", workers, "resolution", params.Resolution)
	started := time.Now()

	var (
		mu        sync.Mutex
		completed int
		failures  []*BakeError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for idx := range total {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			renderer := <-pool
			defer func() { pool <- renderer }()

			i, j, k := vol.Coords(idx)
			probe := &vol.Probes[idx]

			t0 := time.Now()
			coeffs, err := bakeProbe(gctx, probe.Position, params, renderer)
			if err != nil {
				be := &BakeError{Index: idx, Coords: [3]int{i, j, k}, Err: err}
				mu.Lock()
				failures = append(failures, be)
				mu.Unlock()
				return be
			}
			probe.Coefficients = coeffs
			log.Debug("probe baked", "index", idx, "i", i, "j", j, "k", k, "elapsed", time.Since(t0))

			mu.Lock()
			completed++
			if opts.Progress != nil {
				opts.Progress(completed, total)
			}
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()
	if be := pickFailure(ctx, failures); be != nil {
		log.Error("bake failed", "index", be.Index, "err", be.Err)
		return nil, be
	}
	if waitErr != nil {
		return nil, waitErr
	}
	if completed < total {
		// Cancelled before the remaining probes started.
		return nil, &BakeError{Err: ctx.Err()}
	}

	log.Info("bake finished", "probes", total, "elapsed", time.Since(started))
	return vol, nil
}

// pickFailure returns the lowest-index failure that is not a side effect of
// the group cancelling itself. With the parent context cancelled, every
// failure counts.
func pickFailure(parent context.Context, failures []*BakeError) *BakeError {
	var best, bestAny *BakeError
	for _, f := range failures {
		if bestAny == nil || f.Index < bestAny.Index {
			bestAny = f
		}
		cancelled := errors.Is(f.Err, context.Canceled) || errors.Is(f.Err, context.DeadlineExceeded)
		if cancelled && parent.Err() == nil {
			continue
		}
		if best == nil || f.Index < best.Index {
			best = f
		}
	}
	if best != nil {
		return best
	}
	return bestAny
}
