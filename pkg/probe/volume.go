// Package probe bakes regular grids of SH light probes and interpolates
// them at runtime.
//
// A Volume covers an axis-aligned box with probes spaced Density apart,
// stored row-major over (x, y, z): the probe at grid coordinates (i, j, k)
// lives at index (k*dimY+j)*dimX+i and sits at Min + (i, j, k)*Density.
package probe

import (
	"errors"
	"fmt"
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/sh"
)

// ErrInvalidVolume reports bounds or density that cannot describe a grid.
var ErrInvalidVolume = errors.New("probe: invalid volume")

// gridEpsilon absorbs rounding in (max-min)/density so that a box that is an
// exact multiple of the spacing gets its far sample.
const gridEpsilon = 1e-9

// maxAxisSamples and maxProbes bound the grid so that counts and byte sizes
// fit comfortably in an int.
const (
	maxAxisSamples = math.MaxInt32
	maxProbes      = math.MaxInt32
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max math3d.Vec3
}

// Size returns the box extent along each axis.
func (b AABB) Size() math3d.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b AABB) Center() math3d.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Contains reports whether p lies inside the box, faces included.
func (b AABB) Contains(p math3d.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Clamp returns the point of the box nearest to p.
func (b AABB) Clamp(p math3d.Vec3) math3d.Vec3 {
	return p.Clamp(b.Min, b.Max)
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// GridDims returns the sample count per axis, floor(extent/density)+1.
func GridDims(bounds AABB, density float64) ([3]int, error) {
	if !(density > 0) || math.IsInf(density, 0) {
		return [3]int{}, fmt.Errorf("%w: density %g must be positive and finite", ErrInvalidVolume, density)
	}
	if !bounds.Min.IsFinite() || !bounds.Max.IsFinite() {
		return [3]int{}, fmt.Errorf("%w: bounds %v are not finite", ErrInvalidVolume, bounds)
	}

	var dims [3]int
	for axis := range 3 {
		lo, hi := bounds.Min.Axis(axis), bounds.Max.Axis(axis)
		if hi < lo {
			return [3]int{}, fmt.Errorf("%w: max %g < min %g on axis %d", ErrInvalidVolume, hi, lo, axis)
		}
		n := math.Floor((hi-lo)/density+gridEpsilon) + 1
		if !(n <= maxAxisSamples) {
			return [3]int{}, fmt.Errorf("%w: %g samples on axis %d, limit is %d", ErrInvalidVolume, n, axis, maxAxisSamples)
		}
		dims[axis] = max(int(n), 1)
	}
	if _, err := probeCount(dims); err != nil {
		return [3]int{}, err
	}
	return dims, nil
}

// probeCount multiplies out dims, rejecting negative axes and totals above
// maxProbes.
func probeCount(dims [3]int) (int, error) {
	total := 1
	for axis, d := range dims {
		if d < 0 || d > maxAxisSamples {
			return 0, fmt.Errorf("%w: %d samples on axis %d", ErrInvalidVolume, d, axis)
		}
		if d != 0 && total > maxProbes/d {
			return 0, fmt.Errorf("%w: dims %v exceed %d probes", ErrInvalidVolume, dims, maxProbes)
		}
		total *= d
	}
	return total, nil
}

// Probe is one baked sample.
type Probe struct {
	Position     math3d.Vec3
	Coefficients sh.Coefficients
}

// Volume is a regular grid of probes. A Volume returned by Bake or Decode is
// complete and must be treated as read-only.
type Volume struct {
	Bounds  AABB
	Density float64
	Dims    [3]int
	Probes  []Probe
}

// NewVolume allocates a volume with every probe positioned and its
// coefficients zero.
func NewVolume(bounds AABB, density float64) (*Volume, error) {
	dims, err := GridDims(bounds, density)
	if err != nil {
		return nil, err
	}
	n, err := probeCount(dims)
	if err != nil {
		return nil, err
	}

	v := &Volume{
		Bounds:  bounds,
		Density: density,
		Dims:    dims,
		Probes:  make([]Probe, n),
	}
	for idx := range v.Probes {
		i, j, k := v.Coords(idx)
		v.Probes[idx].Position = v.PositionAt(i, j, k)
	}
	return v, nil
}

// Len returns the probe count, dimX*dimY*dimZ, or -1 when Dims do not
// describe a grid.
func (v *Volume) Len() int {
	n, err := probeCount(v.Dims)
	if err != nil {
		return -1
	}
	return n
}

// Index maps grid coordinates to the row-major probe index.
func (v *Volume) Index(i, j, k int) int {
	return (k*v.Dims[1]+j)*v.Dims[0] + i
}

// Coords is the inverse of Index.
func (v *Volume) Coords(index int) (i, j, k int) {
	i = index % v.Dims[0]
	j = (index / v.Dims[0]) % v.Dims[1]
	k = index / (v.Dims[0] * v.Dims[1])
	return i, j, k
}

// PositionAt returns the world position of grid sample (i, j, k).
func (v *Volume) PositionAt(i, j, k int) math3d.Vec3 {
	return math3d.Vec3{
		X: v.Bounds.Min.X + float64(i)*v.Density,
		Y: v.Bounds.Min.Y + float64(j)*v.Density,
		Z: v.Bounds.Min.Z + float64(k)*v.Density,
	}
}

// At returns the probe at grid coordinates (i, j, k).
func (v *Volume) At(i, j, k int) *Probe {
	return &v.Probes[v.Index(i, j, k)]
}

// Validate checks the dimension invariant and that every probe sits at the
// position its index implies.
func (v *Volume) Validate() error {
	dims, err := GridDims(v.Bounds, v.Density)
	if err != nil {
		return err
	}
	if dims != v.Dims {
		return fmt.Errorf("%w: dims %v, bounds and density imply %v", ErrInvalidVolume, v.Dims, dims)
	}
	n, err := probeCount(v.Dims)
	if err != nil {
		return err
	}
	if len(v.Probes) != n {
		return fmt.Errorf("%w: %d probes, dims %v need %d", ErrInvalidVolume, len(v.Probes), v.Dims, n)
	}

	tol := v.Density * 1e-6
	for idx, p := range v.Probes {
		want := v.PositionAt(v.Coords(idx))
		if p.Position.Distance(want) > tol {
			return fmt.Errorf("%w: probe %d at %v, grid position is %v", ErrInvalidVolume, idx, p.Position, want)
		}
	}
	return nil
}

// Band0Range returns the smallest and largest band-0 luminance over all
// probes.
func (v *Volume) Band0Range() (lo, hi float64) {
	if len(v.Probes) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range v.Probes {
		l := v.Probes[i].Coefficients[0].Luminance()
		lo = math.Min(lo, l)
		hi = math.Max(hi, l)
	}
	return lo, hi
}
