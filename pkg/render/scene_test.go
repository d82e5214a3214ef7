package render

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
)

// wallScene has one bright unlit wall 3 units along +X from the origin.
func wallScene() *Scene {
	s := NewScene()
	wall := &boundedMesh{mockMesh: *quadMesh(2), lo: math3d.V3(-2, -2, 0), hi: math3d.V3(2, 2, 0)}
	s.Add(Object{
		Name:      "wall",
		Mesh:      wall,
		Transform: math3d.Translate(math3d.V3(3, 0, 0)).Mul(math3d.RotateY(-math.Pi / 2)),
		Material:  Material{Albedo: math3d.RGB{R: 5}, Unlit: true},
	})
	return s
}

func TestCubeRendererEmptySceneIsSky(t *testing.T) {
	s := NewScene()
	r := s.NewRenderer()

	env, err := r.RenderCubeFaces(context.Background(), math3d.V3(4, 5, 6), 0.1, 100, 8, nil)
	if err != nil {
		t.Fatalf("RenderCubeFaces: %v", err)
	}

	want := cubemap.NewEnvironmentFunc(8, s.Sky.Radiance)
	for f := range cubemap.Face(cubemap.FaceCount) {
		for i, got := range env.Faces[f].Pix {
			if got != want.Faces[f].Pix[i] {
				t.Fatalf("face %v texel %d = %v, want sky %v", f, i, got, want.Faces[f].Pix[i])
			}
		}
	}
	if err := env.Validate(); err != nil {
		t.Errorf("captured environment invalid: %v", err)
	}
}

func TestCubeRendererFaceOrientation(t *testing.T) {
	s := wallScene()
	env, err := s.NewRenderer().RenderCubeFaces(context.Background(), math3d.Zero3(), 0.1, 100, 16, nil)
	if err != nil {
		t.Fatalf("RenderCubeFaces: %v", err)
	}

	red := math3d.RGB{R: 5}
	if got := env.Faces[cubemap.FacePosX].At(8, 8); got != red {
		t.Errorf("+x centre = %v, want the wall", got)
	}
	if got := env.Faces[cubemap.FaceNegX].At(8, 8); got == red {
		t.Error("-x centre sees the wall behind it")
	}

	// The wall must appear wherever TexelDirection points at it.
	for f := range cubemap.Face(cubemap.FaceCount) {
		for y := range 16 {
			for x := range 16 {
				dir := cubemap.TexelDirection(f, x, y, 16)
				// Ray hits x=3 at (3, 3dy/dx, 3dz/dx); the wall spans ±2.
				hits := dir.X > 0 && math.Abs(3*dir.Y/dir.X) < 1.8 && math.Abs(3*dir.Z/dir.X) < 1.8
				if hits && env.Faces[f].At(x, y) != red {
					t.Errorf("face %v texel (%d, %d) dir %v should see the wall", f, x, y, dir)
				}
			}
		}
	}
}

func TestCubeRendererExclude(t *testing.T) {
	s := wallScene()
	r := s.NewRenderer()

	env, err := r.RenderCubeFaces(context.Background(), math3d.Zero3(), 0.1, 100, 8, []string{"wall"})
	if err != nil {
		t.Fatalf("RenderCubeFaces: %v", err)
	}
	want := s.Sky.Radiance(cubemap.TexelDirection(cubemap.FacePosX, 4, 4, 8))
	if got := env.Faces[cubemap.FacePosX].At(4, 4); got != want {
		t.Errorf("excluded wall still visible: %v, want sky %v", got, want)
	}
	if r.Stats.MeshesTested != 0 {
		t.Errorf("excluded mesh was tested for culling %d times", r.Stats.MeshesTested)
	}
}

func TestCubeRendererCulling(t *testing.T) {
	r := wallScene().NewRenderer()
	if _, err := r.RenderCubeFaces(context.Background(), math3d.Zero3(), 0.1, 100, 4, nil); err != nil {
		t.Fatalf("RenderCubeFaces: %v", err)
	}
	// Only the +x face can see the wall.
	want := CullingStats{MeshesTested: 6, MeshesCulled: 5, MeshesDrawn: 1}
	if r.Stats != want {
		t.Errorf("stats = %+v, want %+v", r.Stats, want)
	}
}

func TestCubeRendererResizes(t *testing.T) {
	r := NewScene().NewRenderer()
	for _, size := range []int{4, 8, 2} {
		env, err := r.RenderCubeFaces(context.Background(), math3d.Zero3(), 0.1, 10, size, nil)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if env.Size() != size {
			t.Errorf("env size = %d, want %d", env.Size(), size)
		}
	}
}

func TestCubeRendererErrors(t *testing.T) {
	r := NewScene().NewRenderer()

	if _, err := r.RenderCubeFaces(context.Background(), math3d.Zero3(), 0.1, 10, 0, nil); err == nil {
		t.Error("expected error for zero resolution")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderCubeFaces(ctx, math3d.Zero3(), 0.1, 10, 4, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCubeRendererCapture(t *testing.T) {
	s := NewScene()
	env, err := cubemap.Capture(context.Background(), math3d.V3(1, 1, 1), cubemap.DefaultCaptureParams(), s.NewRenderer())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if env.Size() != cubemap.DefaultCaptureParams().Resolution {
		t.Errorf("size = %d", env.Size())
	}
}

func TestSceneLight(t *testing.T) {
	s := NewScene()

	facing := s.Light(math3d.Zero3(), s.Sun.Direction)
	away := s.Light(math3d.Zero3(), s.Sun.Direction.Negate())
	if facing.Luminance() <= away.Luminance() {
		t.Errorf("surface facing the sun (%v) should be brighter than one facing away (%v)", facing, away)
	}
	want := s.Sky.Ambient(s.Sun.Direction.Negate())
	if !rgbNear(away, want, 1e-12) {
		t.Errorf("away from sun = %v, want sky ambient only %v", away, want)
	}
}

func TestSkyRadiance(t *testing.T) {
	sky := DefaultSky()
	if got := sky.Radiance(math3d.V3(0, 1, 0)); got != sky.Zenith {
		t.Errorf("zenith = %v", got)
	}
	if got := sky.Radiance(math3d.V3(1, 0, 0)); got != sky.Horizon {
		t.Errorf("horizon = %v", got)
	}
	if got := sky.Radiance(math3d.V3(0, -1, 0)); got != sky.Ground {
		t.Errorf("ground = %v", got)
	}
}

func TestSceneBounds(t *testing.T) {
	s := wallScene()
	s.Add(Object{Name: "unbounded", Mesh: quadMesh(100), Transform: math3d.Identity()})

	b := s.Bounds()
	if math.Abs(b.Min.X-3) > 1e-9 || math.Abs(b.Max.X-3) > 1e-9 {
		t.Errorf("x extent = [%v, %v], want [3, 3]", b.Min.X, b.Max.X)
	}
	if math.Abs(b.Min.Z+2) > 1e-9 || math.Abs(b.Max.Z-2) > 1e-9 {
		t.Errorf("z extent = [%v, %v], want [-2, 2]", b.Min.Z, b.Max.Z)
	}
	if !NewScene().Bounds().IsEmpty() {
		t.Error("empty scene has bounds")
	}
}

func TestSceneRendererFactory(t *testing.T) {
	factory := NewScene().RendererFactory()
	a, err := factory()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := factory()
	if a == b {
		t.Error("factory returned a shared renderer")
	}
}

func BenchmarkRenderCubeFaces(b *testing.B) {
	r := wallScene().NewRenderer()
	ctx := context.Background()

	for b.Loop() {
		_, _ = r.RenderCubeFaces(ctx, math3d.Zero3(), 0.1, 100, 16, nil)
	}
}
