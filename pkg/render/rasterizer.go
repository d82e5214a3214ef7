package render

import (
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// Vertex is a world-space vertex ready for rasterization.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Light    math3d.RGB // Radiance a white surface reflects at this vertex
}

// Triangle is three vertices.
type Triangle struct {
	V [3]Vertex
}

// LightFunc returns the radiance a white diffuse surface at pos with unit
// normal n reflects.
type LightFunc func(pos, n math3d.Vec3) math3d.RGB

// Material describes how a surface reflects and emits light.
type Material struct {
	Albedo   math3d.RGB // Linear diffuse reflectance
	Emissive math3d.RGB // Emitted radiance
	Texture  *Texture   // Optional, multiplies Albedo
	Unlit    bool       // Ignore Light and output Albedo directly
}

// shade returns the radiance leaving a surface point.
func (m *Material) shade(u, v float64, light math3d.RGB) math3d.RGB {
	albedo := m.Albedo
	if m.Texture != nil {
		albedo = albedo.Mul(m.Texture.Sample(u, v))
	}
	if m.Unlit {
		return m.Emissive.Add(albedo)
	}
	return m.Emissive.Add(albedo.Mul(light))
}

// MeshRenderer is the mesh view the rasterizer draws. Defined here so
// render does not depend on the mesh loaders.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedMeshRenderer is a MeshRenderer with local bounds for culling.
type BoundedMeshRenderer interface {
	MeshRenderer
	GetBounds() (min, max math3d.Vec3)
}

// CullingStats counts frustum culling decisions.
type CullingStats struct {
	MeshesTested int
	MeshesCulled int
	MeshesDrawn  int
}

// Rasterizer draws depth-tested, Gouraud-lit triangles into a Framebuffer.
// A Rasterizer owns its depth buffer and is not safe for concurrent use.
type Rasterizer struct {
	camera       *Camera
	fb           *Framebuffer
	zbuffer      []float64
	frustum      Frustum
	frustumDirty bool
	vertexCache  []Vertex

	CullingStats  CullingStats
	CullBackfaces bool // Skip triangles wound clockwise on screen
}

// NewRasterizer creates a rasterizer drawing into fb through camera.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		camera:       camera,
		fb:           fb,
		frustumDirty: true,
	}
	r.Resize()
	return r
}

// Resize reallocates the depth buffer to match the framebuffer.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.zbuffer = nil
		return
	}
	r.zbuffer = make([]float64, r.fb.Width*r.fb.Height)
	r.ClearDepth()
}

// SetCamera switches cameras and invalidates the cached frustum.
func (r *Rasterizer) SetCamera(c *Camera) {
	r.camera = c
	r.frustumDirty = true
}

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth resets the depth buffer. Call before each frame.
func (r *Rasterizer) ClearDepth() {
	// copy-doubling fill
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// InvalidateFrustum marks the frustum stale after the camera moved.
func (r *Rasterizer) InvalidateFrustum() {
	r.frustumDirty = true
}

func (r *Rasterizer) updateFrustum() {
	if r.frustumDirty {
		r.frustum = NewFrustumFromMatrix(r.camera.ViewProjectionMatrix())
		r.frustumDirty = false
	}
}

// IsVisible tests a world-space box against the frustum.
func (r *Rasterizer) IsVisible(worldBounds AABB) bool {
	r.updateFrustum()
	return r.frustum.IntersectAABB(worldBounds)
}

// tryFrustumCull reports whether a bounded mesh is entirely outside the view.
func (r *Rasterizer) tryFrustumCull(mesh MeshRenderer, transform math3d.Mat4) bool {
	bounded, ok := mesh.(BoundedMeshRenderer)
	if !ok {
		return false
	}

	r.CullingStats.MeshesTested++
	lo, hi := bounded.GetBounds()
	if !r.IsVisible(AABB{Min: lo, Max: hi}.Transform(transform)) {
		r.CullingStats.MeshesCulled++
		return true
	}
	r.CullingStats.MeshesDrawn++
	return false
}

func (r *Rasterizer) getDepth(x, y int) float64 {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return -math.MaxFloat64
	}
	return r.zbuffer[y*r.Width()+x]
}

func (r *Rasterizer) setDepth(x, y int, z float64) {
	if x < 0 || x >= r.Width() || y < 0 || y >= r.Height() {
		return
	}
	r.zbuffer[y*r.Width()+x] = z
}

// Depth returns the NDC depth stored at (x, y), math.MaxFloat64 if empty.
func (r *Rasterizer) Depth(x, y int) float64 {
	return r.getDepth(x, y)
}

// clipVertex is a vertex in homogeneous clip space.
type clipVertex struct {
	Pos   math3d.Vec4
	UV    math3d.Vec2
	Light math3d.RGB
}

func lerpClip(a, b clipVertex, t float64) clipVertex {
	return clipVertex{
		Pos:   a.Pos.Lerp(b.Pos, t),
		UV:    math3d.V2(a.UV.X+(b.UV.X-a.UV.X)*t, a.UV.Y+(b.UV.Y-a.UV.Y)*t),
		Light: a.Light.Lerp(b.Light, t),
	}
}

// clipNear clips a triangle against the near plane z = -w, writing the
// resulting convex polygon (0, 3 or 4 vertices) into out.
func clipNear(in [3]clipVertex, out *[4]clipVertex) int {
	n := 0
	for i := range 3 {
		a, b := in[i], in[(i+1)%3]
		da, db := a.Pos.Z+a.Pos.W, b.Pos.Z+b.Pos.W
		if da >= 0 {
			out[n] = a
			n++
		}
		if (da >= 0) != (db >= 0) {
			out[n] = lerpClip(a, b, da/(da-db))
			n++
		}
	}
	return n
}

// screenVertex is a vertex after the perspective divide.
type screenVertex struct {
	X, Y  float64 // Pixel coordinates
	Z     float64 // NDC depth
	InvW  float64 // 1/w for perspective-correct interpolation
	UV    math3d.Vec2
	Light math3d.RGB
}

func (r *Rasterizer) toScreen(v clipVertex) screenVertex {
	invW := 1.0 / v.Pos.W
	return screenVertex{
		X:     (v.Pos.X*invW + 1) * 0.5 * float64(r.Width()),
		Y:     (1 - v.Pos.Y*invW) * 0.5 * float64(r.Height()),
		Z:     v.Pos.Z * invW,
		InvW:  invW,
		UV:    v.UV,
		Light: v.Light,
	}
}

// DrawTriangle clips, projects and rasterizes one lit triangle.
func (r *Rasterizer) DrawTriangle(tri Triangle, mat *Material) {
	viewProj := r.camera.ViewProjectionMatrix()

	var in [3]clipVertex
	for i, v := range tri.V {
		in[i] = clipVertex{
			Pos:   viewProj.MulVec4(math3d.V4FromV3(v.Position, 1)),
			UV:    v.UV,
			Light: v.Light,
		}
	}

	var poly [4]clipVertex
	n := clipNear(in, &poly)
	if n < 3 {
		return
	}

	var sv [4]screenVertex
	for i := range n {
		sv[i] = r.toScreen(poly[i])
	}
	for i := 1; i+1 < n; i++ {
		r.rasterize(&sv[0], &sv[i], &sv[i+1], mat)
	}
}

// rasterize fills a projected triangle with Gouraud-interpolated light.
func (r *Rasterizer) rasterize(a, b, c *screenVertex, mat *Material) {
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	if cross == 0 || (r.CullBackfaces && cross > 0) {
		return
	}

	minX := int(math.Max(0, math.Floor(min3(a.X, b.X, c.X))))
	maxX := int(math.Min(float64(r.Width()-1), math.Ceil(max3(a.X, b.X, c.X))))
	minY := int(math.Max(0, math.Floor(min3(a.Y, b.Y, c.Y))))
	maxY := int(math.Min(float64(r.Height()-1), math.Ceil(max3(a.Y, b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5

			bc := barycentric(a.X, a.Y, b.X, b.Y, c.X, c.Y, px, py)
			if bc.X < 0 || bc.Y < 0 || bc.Z < 0 {
				continue
			}

			z := bc.X*a.Z + bc.Y*b.Z + bc.Z*c.Z
			if z > 1 || z >= r.getDepth(x, y) {
				continue
			}

			w0, w1, w2 := bc.X*a.InvW, bc.Y*b.InvW, bc.Z*c.InvW
			sum := w0 + w1 + w2
			if sum == 0 {
				continue
			}
			w0, w1, w2 = w0/sum, w1/sum, w2/sum

			u := w0*a.UV.X + w1*b.UV.X + w2*c.UV.X
			v := w0*a.UV.Y + w1*b.UV.Y + w2*c.UV.Y
			light := a.Light.Scale(w0).Add(b.Light.Scale(w1)).Add(c.Light.Scale(w2))

			r.setDepth(x, y, z)
			r.fb.SetPixel(x, y, mat.shade(u, v, light))
		}
	}
}

// barycentric returns the weights of (px, py) relative to the triangle
// corners; all are non-negative inside.
func barycentric(x0, y0, x1, y1, x2, y2, px, py float64) math3d.Vec3 {
	v0x, v0y := x2-x0, y2-y0
	v1x, v1y := x1-x0, y1-y0
	v2x, v2y := px-x0, py-y0

	dot00 := v0x*v0x + v0y*v0y
	dot01 := v0x*v1x + v0y*v1y
	dot02 := v0x*v2x + v0y*v2y
	dot11 := v1x*v1x + v1y*v1y
	dot12 := v1x*v2x + v1y*v2y

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	return math3d.V3(1-u-v, v, u)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

// DrawMesh renders a mesh with per-vertex lighting from light. Meshes that
// report bounds are frustum culled first.
func (r *Rasterizer) DrawMesh(mesh MeshRenderer, transform math3d.Mat4, mat *Material, light LightFunc) {
	if r.tryFrustumCull(mesh, transform) {
		return
	}

	normalMatrix := transform.NormalMatrix()

	n := mesh.VertexCount()
	if cap(r.vertexCache) < n {
		r.vertexCache = make([]Vertex, n)
	}
	verts := r.vertexCache[:n]
	for i := range verts {
		p, nrm, uv := mesh.GetVertex(i)
		wp := transform.MulVec3(p)
		wn := normalMatrix.MulVec3Dir(nrm).Normalize()
		verts[i] = Vertex{Position: wp, Normal: wn, UV: uv}
		if light != nil && !mat.Unlit {
			verts[i].Light = light(wp, wn)
		}
	}

	for i := range mesh.TriangleCount() {
		f := mesh.GetFace(i)
		r.DrawTriangle(Triangle{V: [3]Vertex{verts[f[0]], verts[f[1]], verts[f[2]]}}, mat)
	}
}
