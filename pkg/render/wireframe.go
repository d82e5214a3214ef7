package render

import (
	"github.com/taigrr/shprobe/pkg/math3d"
)

// Wireframe draws debug lines over a rendered frame.
type Wireframe struct {
	camera *Camera
	fb     *Framebuffer
}

// NewWireframe creates a new wireframe renderer.
func NewWireframe(camera *Camera, fb *Framebuffer) *Wireframe {
	return &Wireframe{
		camera: camera,
		fb:     fb,
	}
}

// DrawLine3D draws a world-space line, clipped against the near plane.
func (w *Wireframe) DrawLine3D(p1, p2 math3d.Vec3, c math3d.RGB) {
	viewProj := w.camera.ViewProjectionMatrix()
	a := viewProj.MulVec4(math3d.V4FromV3(p1, 1))
	b := viewProj.MulVec4(math3d.V4FromV3(p2, 1))

	da, db := a.Z+a.W, b.Z+b.W
	switch {
	case da < 0 && db < 0:
		return
	case da < 0:
		a = a.Lerp(b, da/(da-db))
	case db < 0:
		b = b.Lerp(a, db/(db-da))
	}
	if a.W <= 0 || b.W <= 0 {
		return
	}

	x1, y1, ok1 := w.toPixel(a)
	x2, y2, ok2 := w.toPixel(b)
	if !ok1 || !ok2 {
		return
	}
	w.fb.DrawLine(x1, y1, x2, y2, c)
}

// maxLineReach bounds projected endpoints, in screen sizes, so that
// near-plane lines do not walk millions of offscreen pixels.
const maxLineReach = 8

func (w *Wireframe) toPixel(clip math3d.Vec4) (int, int, bool) {
	ndc := clip.PerspectiveDivide()
	if ndc.X < -maxLineReach || ndc.X > maxLineReach || ndc.Y < -maxLineReach || ndc.Y > maxLineReach {
		return 0, 0, false
	}
	x := (ndc.X + 1) * 0.5 * float64(w.fb.Width)
	y := (1 - ndc.Y) * 0.5 * float64(w.fb.Height)
	return int(x), int(y), true
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// DrawBox draws the 12 edges of an axis-aligned box.
func (w *Wireframe) DrawBox(b AABB, c math3d.RGB) {
	var corners [8]math3d.Vec3
	for i := range corners {
		corners[i] = math3d.V3(
			selectComponent(i&1 != 0, b.Max.X, b.Min.X),
			selectComponent(i&2 != 0, b.Max.Y, b.Min.Y),
			selectComponent(i&4 != 0, b.Max.Z, b.Min.Z),
		)
	}
	for _, e := range boxEdges {
		w.DrawLine3D(corners[e[0]], corners[e[1]], c)
	}
}

// DrawAxes draws the coordinate axes at the origin.
func (w *Wireframe) DrawAxes(length float64) {
	origin := math3d.Zero3()
	w.DrawLine3D(origin, math3d.V3(length, 0, 0), math3d.RGB{R: 1})
	w.DrawLine3D(origin, math3d.V3(0, length, 0), math3d.RGB{G: 1})
	w.DrawLine3D(origin, math3d.V3(0, 0, length), math3d.RGB{B: 1})
}

// DrawPoint draws a point as a small 3D cross.
func (w *Wireframe) DrawPoint(pos math3d.Vec3, size float64, c math3d.RGB) {
	half := size / 2
	w.DrawLine3D(math3d.V3(pos.X-half, pos.Y, pos.Z), math3d.V3(pos.X+half, pos.Y, pos.Z), c)
	w.DrawLine3D(math3d.V3(pos.X, pos.Y-half, pos.Z), math3d.V3(pos.X, pos.Y+half, pos.Z), c)
	w.DrawLine3D(math3d.V3(pos.X, pos.Y, pos.Z-half), math3d.V3(pos.X, pos.Y, pos.Z+half), c)
}
