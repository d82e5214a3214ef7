package probe

import (
	"context"
	"sync"
	"testing"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
)

// fieldColor is a linear radiance field, so trilinear lookups reproduce it
// exactly.
func fieldColor(p math3d.Vec3) math3d.RGB {
	return math3d.RGB{R: 1 + p.X, G: 2 + 0.5*p.Y, B: 3 + 0.25*p.Z}
}

// fieldRenderer returns a uniform environment of fieldColor(pos) and fails
// at the positions listed in failAt.
type fieldRenderer struct {
	failAt map[math3d.Vec3]error

	mu       sync.Mutex
	calls    int
	excludes [][]string
}

func (r *fieldRenderer) RenderCubeFaces(ctx context.Context, pos math3d.Vec3, _, _ float64, resolution int, exclude []string) (*cubemap.Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls++
	r.excludes = append(r.excludes, exclude)
	r.mu.Unlock()

	if err, ok := r.failAt[pos]; ok {
		return nil, err
	}
	return cubemap.NewUniformEnvironment(resolution, fieldColor(pos)), nil
}

func testOptions() BakeOptions {
	return BakeOptions{
		Capture: cubemap.CaptureParams{Near: 0.1, Far: 100, Resolution: 4},
	}
}

var unitCube = AABB{Min: math3d.V3(0, 0, 0), Max: math3d.V3(2, 2, 2)}

// bakedCube bakes the 3x3x3 reference volume.
func bakedCube(t testing.TB) *Volume {
	t.Helper()
	v, err := Bake(context.Background(), unitCube, 1, &fieldRenderer{}, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	return v
}
