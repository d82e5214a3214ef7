package probe

import (
	"context"
	"errors"
	"slices"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/sh"
)

type updateMode int

const (
	everyFrame updateMode = iota
	everyNFrames
	onMove
)

// UpdatePolicy decides on which frames a Follower resamples its lighting.
type UpdatePolicy struct {
	mode      updateMode
	frames    int
	threshold float64
}

// UpdateEveryFrame re-queries on every Update.
func UpdateEveryFrame() UpdatePolicy {
	return UpdatePolicy{mode: everyFrame}
}

// UpdateEveryNFrames re-queries on every nth Update. n < 1 is treated as 1.
func UpdateEveryNFrames(n int) UpdatePolicy {
	return UpdatePolicy{mode: everyNFrames, frames: max(n, 1)}
}

// UpdateOnMove re-queries once the object has moved more than threshold
// from where it was last sampled.
func UpdateOnMove(threshold float64) UpdatePolicy {
	return UpdatePolicy{mode: onMove, threshold: threshold}
}

// Follower keeps the lighting of one moving object, sampled either from a
// baked volume or from live cube captures around the object. It owns a
// single coefficient buffer that is rewritten in place, so per-frame volume
// updates do not allocate.
type Follower struct {
	volume *Volume
	lookup Lookup
	live   *liveCapture
	policy UpdatePolicy
	err    error

	target  sh.Coefficients
	current sh.Coefficients

	smooth   bool
	spring   harmonica.Spring
	velocity [sh.ScalarCount]float64

	frame     int
	sampledAt math3d.Vec3
	primed    bool
}

// FollowerOption configures a Follower.
type FollowerOption func(*Follower)

// WithLookup sets the bounds policy used for queries.
func WithLookup(l Lookup) FollowerOption {
	return func(f *Follower) { f.lookup = l }
}

// WithSmoothing eases the coefficients toward each new sample with a
// harmonica spring stepped once per Update at the given frame rate.
// damping 1 is critically damped.
func WithSmoothing(fps int, frequency, damping float64) FollowerOption {
	return func(f *Follower) {
		f.smooth = true
		f.spring = harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)
	}
}

// NewFollower returns a follower sampling v under policy.
func NewFollower(v *Volume, policy UpdatePolicy, opts ...FollowerOption) *Follower {
	f := &Follower{volume: v, policy: policy}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// liveCapture recaptures and projects the environment at the object.
type liveCapture struct {
	renderer cubemap.SceneRenderer
	params   cubemap.CaptureParams
}

func (l *liveCapture) sample(ctx context.Context, pos math3d.Vec3, dst *sh.Coefficients) error {
	env, err := cubemap.Capture(ctx, pos, l.params, l.renderer)
	if err != nil {
		return err
	}
	c, err := sh.Project(env)
	if err != nil {
		return err
	}
	*dst = c
	return nil
}

// NewLiveFollower returns a follower that captures the scene around the
// object whenever policy is due, with the object itself hidden from the
// capture. object is added to params.Exclude.
func NewLiveFollower(renderer cubemap.SceneRenderer, object string, params cubemap.CaptureParams, policy UpdatePolicy, opts ...FollowerOption) (*Follower, error) {
	if renderer == nil {
		return nil, errors.New("probe: nil scene renderer")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.Exclude = slices.Clone(params.Exclude)
	if object != "" && !slices.Contains(params.Exclude, object) {
		params.Exclude = append(params.Exclude, object)
	}

	f := NewFollower(nil, policy, opts...)
	f.live = &liveCapture{renderer: renderer, params: params}
	return f, nil
}

// SetVolume swaps in a rebaked volume, replacing any live capture. The next
// Update re-queries.
func (f *Follower) SetVolume(v *Volume) {
	f.volume = v
	f.live = nil
	f.primed = false
}

// Live reports whether the follower samples live captures.
func (f *Follower) Live() bool {
	return f.live != nil
}

// Err returns the error of the most recent failed sample, or nil once a
// later sample succeeds.
func (f *Follower) Err() error {
	return f.err
}

func (f *Follower) sample(ctx context.Context, pos math3d.Vec3) error {
	if f.live != nil {
		return f.live.sample(ctx, pos, &f.target)
	}
	return f.lookup.QueryInto(f.volume, pos, &f.target)
}

func (f *Follower) due(pos math3d.Vec3) bool {
	if !f.primed {
		return true
	}
	switch f.policy.mode {
	case everyNFrames:
		return f.frame%f.policy.frames == 0
	case onMove:
		return pos.Distance(f.sampledAt) > f.policy.threshold
	default:
		return true
	}
}

// Update advances one frame with the object at pos and reports whether the
// lighting was resampled. The first Update always samples and snaps to the
// result; later samples are eased toward when smoothing is on. A failed
// sample, such as a query outside the volume under PolicyReject or a failed
// capture, keeps the previous target and is reported by Err.
func (f *Follower) Update(pos math3d.Vec3) bool {
	return f.UpdateContext(context.Background(), pos)
}

// UpdateContext is Update with a context for live captures.
func (f *Follower) UpdateContext(ctx context.Context, pos math3d.Vec3) bool {
	if f.volume == nil && f.live == nil {
		return false
	}

	sampled := false
	if f.due(pos) {
		if err := f.sample(ctx, pos); err != nil {
			f.err = err
		} else {
			sampled = true
			f.err = nil
			f.sampledAt = pos
			if !f.primed || !f.smooth {
				f.current = f.target
				f.velocity = [sh.ScalarCount]float64{}
			}
			f.primed = true
		}
	}
	f.frame++

	if f.smooth && f.primed {
		f.step()
	}
	return sampled
}

func (f *Follower) step() {
	cur := f.current.Floats()
	tgt := f.target.Floats()
	for i := range cur {
		cur[i], f.velocity[i] = f.spring.Update(cur[i], f.velocity[i], tgt[i])
	}
	f.current = sh.FromFloats(cur)
}

// Coefficients returns the follower's buffer. It is overwritten by Update.
func (f *Follower) Coefficients() *sh.Coefficients {
	return &f.current
}

// Irradiance evaluates the current lighting for a surface normal.
func (f *Follower) Irradiance(normal math3d.Vec3) math3d.RGB {
	return sh.Evaluate(f.current, normal)
}
