package render

import (
	"math"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
)

// Camera is a perspective camera. Its orientation comes either from
// yaw/pitch angles or, for cube faces, from a fixed basis.
type Camera struct {
	Position math3d.Vec3

	Pitch float64 // Rotation around X in radians (look up/down)
	Yaw   float64 // Rotation around Y in radians (look left/right)

	FOV         float64 // Vertical field of view in radians
	AspectRatio float64 // Width / Height
	Near        float64
	Far         float64

	// Fixed basis, used instead of Pitch/Yaw when hasBasis is set.
	hasBasis             bool
	forward, up, right   math3d.Vec3
	viewMatrix           math3d.Mat4
	projMatrix           math3d.Mat4
	viewProjMatrix       math3d.Mat4
	viewDirty, projDirty bool
	viewProjDirty        bool
}

// NewCamera creates a camera with a 60° field of view.
func NewCamera() *Camera {
	return &Camera{
		Position:    math3d.V3(0, 10, 0),
		FOV:         math.Pi / 3,
		AspectRatio: 16.0 / 9.0,
		Near:        0.1,
		Far:         1000,
		viewDirty:   true,
		projDirty:   true,
	}
}

// NewCubeFaceCamera returns a square 90° camera at pos looking through face
// f, so that pixel (x, y) of a size×size target sees
// cubemap.TexelDirection(f, x, y, size).
func NewCubeFaceCamera(pos math3d.Vec3, f cubemap.Face, near, far float64) *Camera {
	c := &Camera{
		Position:    pos,
		FOV:         math.Pi / 2,
		AspectRatio: 1,
		Near:        near,
		Far:         far,
		viewDirty:   true,
		projDirty:   true,
	}
	c.SetBasis(f.Basis())
	return c
}

// SetPosition sets the camera position.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// SetRotation sets pitch and yaw in radians and drops any fixed basis.
func (c *Camera) SetRotation(pitch, yaw float64) {
	c.Pitch = pitch
	c.Yaw = yaw
	c.hasBasis = false
	c.viewDirty = true
}

// SetBasis fixes the camera orientation. right × up must equal -forward.
func (c *Camera) SetBasis(forward, up, right math3d.Vec3) {
	c.forward, c.up, c.right = forward, up, right
	c.hasBasis = true
	c.viewDirty = true
}

// SetFOV sets the field of view in radians.
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets the aspect ratio.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// Forward returns the view direction.
func (c *Camera) Forward() math3d.Vec3 {
	if c.hasBasis {
		return c.forward
	}
	// Forward is -Z in camera space, rotated by yaw and pitch
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// Right returns the screen-right direction.
func (c *Camera) Right() math3d.Vec3 {
	if c.hasBasis {
		return c.right
	}
	return math3d.V3(math.Cos(c.Yaw), 0, -math.Sin(c.Yaw))
}

// Up returns the screen-up direction.
func (c *Camera) Up() math3d.Vec3 {
	if c.hasBasis {
		return c.up
	}
	return c.Right().Cross(c.Forward())
}

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.viewMatrix = math3d.ViewFromBasis(c.Position, c.Forward(), c.Up(), c.Right())
		c.viewDirty = false
		c.viewProjDirty = true
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
		c.viewProjDirty = true
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	proj, view := c.ProjectionMatrix(), c.ViewMatrix()
	if c.viewProjDirty {
		c.viewProjMatrix = proj.Mul(view)
		c.viewProjDirty = false
	}
	return c.viewProjMatrix
}

// Orbit places the camera on a sphere of radius dist around target, at the
// given yaw and pitch, looking at target.
func (c *Camera) Orbit(target math3d.Vec3, dist, yaw, pitch float64) {
	offset := math3d.V3(
		math.Sin(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw)*math.Cos(pitch),
	).Scale(dist)
	c.Position = target.Add(offset)
	c.LookAt(target)
}

// LookAt turns the camera toward target.
func (c *Camera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position).Normalize()

	c.Pitch = math.Asin(dir.Y)
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.hasBasis = false
	c.viewDirty = true
}

// WorldToScreen projects a world point to pixel coordinates.
func (c *Camera) WorldToScreen(worldPos math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, visible bool) {
	clipPos := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))
	if clipPos.W <= 0 {
		return 0, 0, 0, false
	}

	ndc := clipPos.PerspectiveDivide()
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight)
	return x, y, ndc.Z, true
}
