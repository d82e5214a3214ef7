// Package cubemap holds six-face environment captures: face frames, texel
// directions and solid angles, and the capture step that asks a scene
// renderer for the faces around a point.
package cubemap

import (
	"fmt"
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// Face identifies one side of a cube environment.
type Face int

// Face order matches the usual cube-map layer order.
const (
	FacePosX Face = iota
	FaceNegX
	FacePosY
	FaceNegY
	FacePosZ
	FaceNegZ
)

// FaceCount is the number of faces in a cube environment.
const FaceCount = 6

var faceNames = [FaceCount]string{"+x", "-x", "+y", "-y", "+z", "-z"}

func (f Face) String() string {
	if f < 0 || f >= FaceCount {
		return fmt.Sprintf("face(%d)", int(f))
	}
	return faceNames[f]
}

// faceFrames holds forward, up and right for every face. Each frame is a
// right-handed rotation (right × up = -forward), so a camera built from it
// keeps the rasterizer's winding convention.
var faceFrames = [FaceCount][3]math3d.Vec3{
	FacePosX: {{X: 1}, {Y: -1}, {Z: -1}},
	FaceNegX: {{X: -1}, {Y: -1}, {Z: 1}},
	FacePosY: {{Y: 1}, {Z: 1}, {X: 1}},
	FaceNegY: {{Y: -1}, {Z: -1}, {X: 1}},
	FacePosZ: {{Z: 1}, {Y: -1}, {X: 1}},
	FaceNegZ: {{Z: -1}, {Y: -1}, {X: -1}},
}

// Basis returns the face's camera frame.
func (f Face) Basis() (forward, up, right math3d.Vec3) {
	fr := faceFrames[f]
	return fr[0], fr[1], fr[2]
}

// Image is one square face of radiance values. Pix is row-major with row 0
// at the top of the face (the camera's up direction).
type Image struct {
	Size int
	Pix  []math3d.RGB
}

// NewImage allocates a black face of the given edge length.
func NewImage(size int) Image {
	return Image{Size: size, Pix: make([]math3d.RGB, size*size)}
}

// At returns the texel at (x, y).
func (img Image) At(x, y int) math3d.RGB {
	return img.Pix[y*img.Size+x]
}

// Set writes the texel at (x, y).
func (img Image) Set(x, y int, c math3d.RGB) {
	img.Pix[y*img.Size+x] = c
}

// Environment is a captured cube of incoming radiance around a point.
// Treat it as immutable once captured.
type Environment struct {
	Faces [FaceCount]Image
}

// NewEnvironment allocates a black environment with the given edge length.
func NewEnvironment(size int) *Environment {
	env := &Environment{}
	for f := range env.Faces {
		env.Faces[f] = NewImage(size)
	}
	return env
}

// NewUniformEnvironment returns an environment where every texel is c.
func NewUniformEnvironment(size int, c math3d.RGB) *Environment {
	return NewEnvironmentFunc(size, func(math3d.Vec3) math3d.RGB { return c })
}

// NewEnvironmentFunc fills an environment by evaluating fn at every texel
// direction.
func NewEnvironmentFunc(size int, fn func(dir math3d.Vec3) math3d.RGB) *Environment {
	env := NewEnvironment(size)
	for f := range Face(FaceCount) {
		img := env.Faces[f]
		for y := range size {
			for x := range size {
				img.Set(x, y, fn(TexelDirection(f, x, y, size)))
			}
		}
	}
	return env
}

// Size returns the edge length of the first face.
func (e *Environment) Size() int {
	return e.Faces[0].Size
}

// Validate checks the structural invariants: six faces of one positive
// power-of-two edge length, fully populated with finite radiance.
func (e *Environment) Validate() error {
	if e == nil {
		return &InvalidEnvironmentError{Reason: "nil environment"}
	}
	size := e.Faces[0].Size
	if !IsPowerOfTwo(size) {
		return &InvalidEnvironmentError{Reason: fmt.Sprintf("edge length %d is not a positive power of two", size)}
	}
	for f, img := range e.Faces {
		if img.Size != size {
			return &InvalidEnvironmentError{Reason: fmt.Sprintf("face %v is %d texels, face +x is %d", Face(f), img.Size, size)}
		}
		if len(img.Pix) != size*size {
			return &InvalidEnvironmentError{Reason: fmt.Sprintf("face %v has %d texels, want %d", Face(f), len(img.Pix), size*size)}
		}
		for i, c := range img.Pix {
			if !finite(c) {
				return &InvalidEnvironmentError{Reason: fmt.Sprintf("face %v texel %d is not finite", Face(f), i)}
			}
		}
	}
	return nil
}

// Sample returns the texel seen in direction dir (nearest filtering).
func (e *Environment) Sample(dir math3d.Vec3) math3d.RGB {
	f, u, v := DirectionToFace(dir)
	size := e.Size()
	x := clampInt(int((u+1)*0.5*float64(size)), 0, size-1)
	y := clampInt(int((1-v)*0.5*float64(size)), 0, size-1)
	return e.Faces[f].At(x, y)
}

// TexelDirection returns the normalized direction through the centre of
// texel (x, y) of the face.
func TexelDirection(f Face, x, y, size int) math3d.Vec3 {
	u := 2*(float64(x)+0.5)/float64(size) - 1
	v := 1 - 2*(float64(y)+0.5)/float64(size)
	forward, up, right := f.Basis()
	return forward.Add(right.Scale(u)).Add(up.Scale(v)).Normalize()
}

// DirectionToFace finds the face a direction exits through and the
// face-local coordinates u (toward right) and v (toward up), both in [-1, 1].
func DirectionToFace(dir math3d.Vec3) (f Face, u, v float64) {
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)
	switch {
	case ax >= ay && ax >= az:
		f = FacePosX
		if dir.X < 0 {
			f = FaceNegX
		}
	case ay >= az:
		f = FacePosY
		if dir.Y < 0 {
			f = FaceNegY
		}
	default:
		f = FacePosZ
		if dir.Z < 0 {
			f = FaceNegZ
		}
	}

	forward, up, right := f.Basis()
	d := dir.Dot(forward)
	if d == 0 {
		return f, 0, 0
	}
	return f, dir.Dot(right) / d, dir.Dot(up) / d
}

// TexelSolidAngle returns the solid angle subtended by texel (x, y) of any
// face of edge length size. It is the same for every face.
func TexelSolidAngle(x, y, size int) float64 {
	inv := 2 / float64(size)
	u0 := float64(x)*inv - 1
	v0 := float64(y)*inv - 1
	u1 := u0 + inv
	v1 := v0 + inv
	return areaElement(u0, v0) - areaElement(u0, v1) - areaElement(u1, v0) + areaElement(u1, v1)
}

// SolidAngleTable returns TexelSolidAngle for every texel of a face in
// row-major order.
func SolidAngleTable(size int) []float64 {
	table := make([]float64, size*size)
	for y := range size {
		for x := range size {
			table[y*size+x] = TexelSolidAngle(x, y, size)
		}
	}
	return table
}

func areaElement(x, y float64) float64 {
	return math.Atan2(x*y, math.Sqrt(x*x+y*y+1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func finite(c math3d.RGB) bool {
	for _, v := range [3]float64{c.R, c.G, c.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
