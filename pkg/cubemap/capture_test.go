package cubemap

import (
	"context"
	"errors"
	"testing"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// stubRenderer returns a fixed environment or error and records its calls.
type stubRenderer struct {
	env     *Environment
	err     error
	calls   int
	exclude []string
	res     int
}

func (s *stubRenderer) RenderCubeFaces(_ context.Context, _ math3d.Vec3, _, _ float64, resolution int, exclude []string) (*Environment, error) {
	s.calls++
	s.exclude = exclude
	s.res = resolution
	if s.err != nil {
		return nil, s.err
	}
	if s.env != nil {
		return s.env, nil
	}
	return NewUniformEnvironment(resolution, math3d.Gray(1)), nil
}

func TestCaptureParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		params CaptureParams
		ok     bool
	}{
		{"defaults", DefaultCaptureParams(), true},
		{"zero near", CaptureParams{Near: 0, Far: 10, Resolution: 16}, false},
		{"negative near", CaptureParams{Near: -1, Far: 10, Resolution: 16}, false},
		{"far below near", CaptureParams{Near: 5, Far: 1, Resolution: 16}, false},
		{"far equals near", CaptureParams{Near: 1, Far: 1, Resolution: 16}, false},
		{"resolution not power of two", CaptureParams{Near: 1, Far: 10, Resolution: 12}, false},
		{"zero resolution", CaptureParams{Near: 1, Far: 10}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate()
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("error = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestCapturePassesExclusionAndResolution(t *testing.T) {
	r := &stubRenderer{}
	params := CaptureParams{Near: 1, Far: 100, Resolution: 8, Exclude: []string{"player"}}

	env, err := Capture(context.Background(), math3d.V3(1, 2, 3), params, r)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if env.Size() != 8 {
		t.Errorf("env size = %d, want 8", env.Size())
	}
	if r.calls != 1 {
		t.Errorf("renderer called %d times, want 1", r.calls)
	}
	if len(r.exclude) != 1 || r.exclude[0] != "player" {
		t.Errorf("exclude = %v, want [player]", r.exclude)
	}
}

func TestCaptureRendererFailure(t *testing.T) {
	deviceLost := errors.New("device lost")
	r := &stubRenderer{err: deviceLost}
	pos := math3d.V3(4, 5, 6)

	env, err := Capture(context.Background(), pos, DefaultCaptureParams(), r)
	if env != nil {
		t.Error("expected no environment on failure")
	}
	var ce *CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *CaptureError", err)
	}
	if ce.Position != pos {
		t.Errorf("CaptureError.Position = %v, want %v", ce.Position, pos)
	}
	if !errors.Is(err, deviceLost) {
		t.Error("CaptureError should unwrap to the renderer error")
	}
}

func TestCaptureRejectsMalformedEnvironment(t *testing.T) {
	bad := NewEnvironment(8)
	bad.Faces[FacePosZ] = NewImage(4)

	tests := []struct {
		name string
		r    *stubRenderer
	}{
		{"mismatched faces", &stubRenderer{env: bad}},
		{"wrong resolution", &stubRenderer{env: NewEnvironment(16)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			params := DefaultCaptureParams()
			params.Resolution = 8
			_, err := Capture(context.Background(), math3d.Zero3(), params, tc.r)
			var ce *CaptureError
			if !errors.As(err, &ce) {
				t.Errorf("error = %v, want *CaptureError", err)
			}
		})
	}
}

func TestCaptureInvalidParamsSkipsRenderer(t *testing.T) {
	r := &stubRenderer{}
	_, err := Capture(context.Background(), math3d.Zero3(), CaptureParams{Near: 1, Far: 2, Resolution: 3}, r)
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("error = %v, want ErrInvalidParams", err)
	}
	if r.calls != 0 {
		t.Errorf("renderer called %d times, want 0", r.calls)
	}
}
