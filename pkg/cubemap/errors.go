package cubemap

import (
	"errors"
	"fmt"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// ErrInvalidParams reports capture parameters outside their valid range.
var ErrInvalidParams = errors.New("cubemap: invalid capture parameters")

// CaptureError reports a failed capture at one position. No environment is
// returned alongside it.
type CaptureError struct {
	Position math3d.Vec3
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("cubemap: capture at (%g, %g, %g): %v", e.Position.X, e.Position.Y, e.Position.Z, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// InvalidEnvironmentError reports a structurally malformed environment.
type InvalidEnvironmentError struct {
	Reason string
}

func (e *InvalidEnvironmentError) Error() string {
	return "cubemap: invalid environment: " + e.Reason
}
