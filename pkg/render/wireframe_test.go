package render

import (
	"testing"

	"github.com/taigrr/shprobe/pkg/math3d"
)

func countLit(fb *Framebuffer) int {
	n := 0
	for _, p := range fb.Pixels {
		if p != (math3d.RGB{}) {
			n++
		}
	}
	return n
}

func TestWireframeDrawBox(t *testing.T) {
	r, fb := createTestRasterizer(64, 64)
	w := NewWireframe(r.camera, fb)

	w.DrawBox(AABB{Min: math3d.V3(-1, -1, -1), Max: math3d.V3(1, 1, 1)}, math3d.Gray(1))
	if countLit(fb) == 0 {
		t.Fatal("box drew nothing")
	}
	// The centre of the screen is inside the box outline, not on an edge.
	if fb.GetPixel(32, 32) != (math3d.RGB{}) {
		t.Error("box interior was filled")
	}
}

func TestWireframeClipsBehindCamera(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	w := NewWireframe(r.camera, fb)

	w.DrawLine3D(math3d.V3(0, 0, 20), math3d.V3(1, 0, 30), math3d.Gray(1))
	if n := countLit(fb); n != 0 {
		t.Errorf("line behind the camera lit %d pixels", n)
	}

	// A line from in front to behind the camera is clipped, not dropped.
	w.DrawLine3D(math3d.V3(0, -0.05, 0), math3d.V3(0, -0.05, 12), math3d.Gray(1))
	if countLit(fb) == 0 {
		t.Error("clipped line drew nothing")
	}
}

func TestWireframeDrawPoint(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	w := NewWireframe(r.camera, fb)
	w.DrawPoint(math3d.Zero3(), 1, math3d.RGB{G: 1})

	if fb.GetPixel(16, 16) != (math3d.RGB{G: 1}) {
		t.Error("point cross missing at the screen centre")
	}
}
