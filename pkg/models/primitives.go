package models

import (
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// NewSphere builds a UV sphere centred on the origin. segments counts
// divisions around Y, rings from pole to pole.
func NewSphere(name string, radius float64, segments, rings int) *Mesh {
	segments = max(segments, 3)
	rings = max(rings, 2)

	m := NewMesh(name)
	for r := 0; r <= rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			n := math3d.V3(math.Sin(theta)*math.Cos(phi), math.Cos(theta), math.Sin(theta)*math.Sin(phi))
			m.Vertices = append(m.Vertices, MeshVertex{
				Position: n.Scale(radius),
				Normal:   n,
				UV:       math3d.V2(float64(s)/float64(segments), float64(r)/float64(rings)),
			})
		}
	}

	row := segments + 1
	for r := range rings {
		for s := range segments {
			a := r*row + s
			b := a + row
			m.Faces = append(m.Faces,
				Face{V: [3]int{a, a + 1, b}, Material: -1},
				Face{V: [3]int{a + 1, b + 1, b}, Material: -1},
			)
		}
	}
	m.CalculateBounds()
	return m
}

// boxSides lists each side's outward normal and its up direction.
var boxSides = [6][2]math3d.Vec3{
	{{X: 1}, {Y: 1}},
	{{X: -1}, {Y: 1}},
	{{Y: 1}, {Z: -1}},
	{{Y: -1}, {Z: 1}},
	{{Z: 1}, {Y: 1}},
	{{Z: -1}, {Y: 1}},
}

// NewBox builds an axis-aligned box of the given size centred on the
// origin, with a separate quad and flat normals per side.
func NewBox(name string, size math3d.Vec3) *Mesh {
	half := size.Scale(0.5)
	m := NewMesh(name)
	for _, side := range boxSides {
		addQuad(m, side[0], side[0].Cross(side[1]).Negate(), side[1], half)
	}
	m.CalculateBounds()
	return m
}

// NewPlane builds a width×depth quad in the y=0 plane facing +Y.
func NewPlane(name string, width, depth float64) *Mesh {
	m := NewMesh(name)
	addQuad(m, math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, -1), math3d.V3(width/2, 0, depth/2))
	m.CalculateBounds()
	return m
}

// addQuad appends the quad centred at n*half spanned by u and v, wound
// counter-clockwise seen from n. u × v must equal n.
func addQuad(m *Mesh, n, u, v, half math3d.Vec3) {
	base := len(m.Vertices)
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for _, c := range corners {
		p := n.Add(u.Scale(c[0])).Add(v.Scale(c[1])).Mul(half)
		m.Vertices = append(m.Vertices, MeshVertex{
			Position: p,
			Normal:   n,
			UV:       math3d.V2((c[0]+1)/2, (1-c[1])/2),
		})
	}
	m.Faces = append(m.Faces,
		Face{V: [3]int{base, base + 1, base + 2}, Material: -1},
		Face{V: [3]int{base, base + 2, base + 3}, Material: -1},
	)
}
