package cubemap

import (
	"context"
	"fmt"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// SceneRenderer renders the six faces around a point. Implementations hide
// every object named in exclude for the duration of the call and report
// device or resource failures as errors.
type SceneRenderer interface {
	RenderCubeFaces(ctx context.Context, pos math3d.Vec3, near, far float64, resolution int, exclude []string) (*Environment, error)
}

// CaptureParams configures one cube capture.
type CaptureParams struct {
	Near       float64  // Near clip distance, > 0
	Far        float64  // Far clip distance, > Near
	Resolution int      // Face edge length in texels, power of two
	Exclude    []string // Object names hidden while capturing
}

// DefaultCaptureParams returns the clip range of a typical scene-scale probe
// and a face size small enough to bake dense grids quickly.
func DefaultCaptureParams() CaptureParams {
	return CaptureParams{
		Near:       0.1,
		Far:        1000,
		Resolution: 32,
	}
}

// Validate checks the clip planes and the face resolution.
func (p CaptureParams) Validate() error {
	if !(p.Near > 0) || !(p.Far > p.Near) {
		return fmt.Errorf("%w: near %g, far %g (need 0 < near < far)", ErrInvalidParams, p.Near, p.Far)
	}
	if !IsPowerOfTwo(p.Resolution) {
		return fmt.Errorf("%w: resolution %d is not a positive power of two", ErrInvalidParams, p.Resolution)
	}
	return nil
}

// Capture renders the environment around pos. Every failure, including an
// environment the renderer returns in the wrong shape, comes back as a
// *CaptureError.
func Capture(ctx context.Context, pos math3d.Vec3, params CaptureParams, renderer SceneRenderer) (*Environment, error) {
	if err := params.Validate(); err != nil {
		return nil, &CaptureError{Position: pos, Err: err}
	}

	env, err := renderer.RenderCubeFaces(ctx, pos, params.Near, params.Far, params.Resolution, params.Exclude)
	if err != nil {
		return nil, &CaptureError{Position: pos, Err: err}
	}
	if err := env.Validate(); err != nil {
		return nil, &CaptureError{Position: pos, Err: err}
	}
	if env.Size() != params.Resolution {
		return nil, &CaptureError{
			Position: pos,
			Err:      fmt.Errorf("renderer returned %d texel faces, requested %d", env.Size(), params.Resolution),
		}
	}
	return env, nil
}
