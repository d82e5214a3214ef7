package render

import (
	"context"
	"fmt"
	"math"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
)

// Sky is a vertical radiance gradient surrounding the scene.
type Sky struct {
	Zenith  math3d.RGB // Straight up
	Horizon math3d.RGB
	Ground  math3d.RGB // Straight down
}

// DefaultSky is a clear daytime sky over a dim ground.
func DefaultSky() Sky {
	return Sky{
		Zenith:  math3d.RGB{R: 0.35, G: 0.55, B: 1.0},
		Horizon: math3d.RGB{R: 0.8, G: 0.85, B: 0.9},
		Ground:  math3d.RGB{R: 0.12, G: 0.1, B: 0.08},
	}
}

// Radiance returns the sky seen along the unit direction dir.
func (s Sky) Radiance(dir math3d.Vec3) math3d.RGB {
	if dir.Y >= 0 {
		return s.Horizon.Lerp(s.Zenith, dir.Y)
	}
	return s.Horizon.Lerp(s.Ground, -dir.Y)
}

// Ambient approximates the cosine-weighted sky light on a surface with
// normal n, divided by π.
func (s Sky) Ambient(n math3d.Vec3) math3d.RGB {
	upper := s.Horizon.Add(s.Zenith).Scale(0.5)
	lower := s.Horizon.Add(s.Ground).Scale(0.5)
	return lower.Lerp(upper, 0.5+0.5*n.Y)
}

// Sun is a directional light. Surfaces facing it receive Radiance scaled by
// the cosine of the incidence angle. It has no visible disk.
type Sun struct {
	Direction math3d.Vec3 // Unit vector toward the sun
	Radiance  math3d.RGB
}

// DefaultSun is a warm sun high in the south-west.
func DefaultSun() Sun {
	return Sun{
		Direction: math3d.V3(-0.4, 0.8, 0.45).Normalize(),
		Radiance:  math3d.RGB{R: 1.6, G: 1.45, B: 1.2},
	}
}

// Object is a named mesh instance. Names are what capture exclusion lists
// refer to.
type Object struct {
	Name      string
	Mesh      MeshRenderer
	Transform math3d.Mat4
	Material  Material
}

// Scene is a set of objects lit by a sky and a sun.
type Scene struct {
	Objects []Object
	Sky     Sky
	Sun     Sun
}

// NewScene returns an empty scene under the default sky and sun.
func NewScene() *Scene {
	return &Scene{Sky: DefaultSky(), Sun: DefaultSun()}
}

// Add appends an object.
func (s *Scene) Add(obj Object) {
	s.Objects = append(s.Objects, obj)
}

// Light is the scene's LightFunc: sky ambient plus unshadowed sun.
func (s *Scene) Light(_, n math3d.Vec3) math3d.RGB {
	sun := s.Sun.Radiance.Scale(math.Max(0, n.Dot(s.Sun.Direction)))
	return s.Sky.Ambient(n).Add(sun)
}

// Bounds returns the world bounds of every object whose mesh reports
// bounds. It is empty when none do.
func (s *Scene) Bounds() AABB {
	b := EmptyAABB()
	for _, obj := range s.Objects {
		bounded, ok := obj.Mesh.(BoundedMeshRenderer)
		if !ok {
			continue
		}
		lo, hi := bounded.GetBounds()
		b = b.Extend(AABB{Min: lo, Max: hi}.Transform(obj.Transform))
	}
	return b
}

// NewRenderer returns a cube renderer with its own render target. Call it
// once per concurrent capture.
func (s *Scene) NewRenderer() *CubeRenderer {
	return &CubeRenderer{scene: s}
}

// RendererFactory adapts NewRenderer to the factory shape parallel bakes use.
func (s *Scene) RendererFactory() func() (cubemap.SceneRenderer, error) {
	return func() (cubemap.SceneRenderer, error) {
		return s.NewRenderer(), nil
	}
}

// CubeRenderer captures cube environments of a Scene. The scene must not be
// modified while a capture runs.
type CubeRenderer struct {
	scene *Scene
	fb    *Framebuffer
	rast  *Rasterizer

	// Stats of the most recent capture, summed over its six faces.
	Stats CullingStats
}

// RenderCubeFaces renders the six faces around pos with excluded objects
// hidden. Each face is checked against ctx before it is drawn.
func (c *CubeRenderer) RenderCubeFaces(ctx context.Context, pos math3d.Vec3, near, far float64, resolution int, exclude []string) (*cubemap.Environment, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("render: resolution %d", resolution)
	}
	if c.fb == nil || c.fb.Width != resolution {
		c.fb = NewFramebuffer(resolution, resolution)
		c.rast = NewRasterizer(nil, c.fb)
	}

	hidden := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		hidden[name] = true
	}

	c.Stats = CullingStats{}
	env := cubemap.NewEnvironment(resolution)
	for f := range cubemap.Face(cubemap.FaceCount) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.renderFace(f, pos, near, far, hidden)
		copy(env.Faces[f].Pix, c.fb.Pixels)
	}
	return env, nil
}

func (c *CubeRenderer) renderFace(f cubemap.Face, pos math3d.Vec3, near, far float64, hidden map[string]bool) {
	size := c.fb.Width
	for y := range size {
		for x := range size {
			c.fb.Pixels[y*size+x] = c.scene.Sky.Radiance(cubemap.TexelDirection(f, x, y, size))
		}
	}

	c.rast.SetCamera(NewCubeFaceCamera(pos, f, near, far))
	c.rast.ClearDepth()
	c.rast.CullingStats = CullingStats{}
	for i := range c.scene.Objects {
		obj := &c.scene.Objects[i]
		if obj.Mesh == nil || hidden[obj.Name] {
			continue
		}
		c.rast.DrawMesh(obj.Mesh, obj.Transform, &obj.Material, c.scene.Light)
	}

	c.Stats.MeshesTested += c.rast.CullingStats.MeshesTested
	c.Stats.MeshesCulled += c.rast.CullingStats.MeshesCulled
	c.Stats.MeshesDrawn += c.rast.CullingStats.MeshesDrawn
}
