package probe

import (
	"fmt"
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
	"github.com/taigrr/shprobe/pkg/sh"
)

// BoundsPolicy decides what a query outside the volume does.
type BoundsPolicy int

const (
	// PolicyClamp moves the query to the nearest point of the box, so
	// lighting stays continuous across the volume edge.
	PolicyClamp BoundsPolicy = iota
	// PolicyReject fails the query with *OutOfBoundsError.
	PolicyReject
)

func (p BoundsPolicy) String() string {
	switch p {
	case PolicyClamp:
		return "clamp"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("BoundsPolicy(%d)", int(p))
	}
}

// OutOfBoundsError reports a rejected query position.
type OutOfBoundsError struct {
	Position math3d.Vec3
	Bounds   AABB
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("probe: position %v outside volume %v..%v", e.Position, e.Bounds.Min, e.Bounds.Max)
}

// Corner is one of the eight probes blended by a query.
type Corner struct {
	Index  int
	Weight float64
}

// Cell is the interpolation cell around a query point.
type Cell struct {
	Base [3]int     // floor of the grid coordinates
	Next [3]int     // Base+1, clamped to dim-1
	Frac [3]float64 // remainder in [0, 1); 0 on the last sample of an axis
}

// Locate clamps pos into the volume and returns its interpolation cell.
func Locate(v *Volume, pos math3d.Vec3) Cell {
	p := v.Bounds.Clamp(pos)

	var c Cell
	for axis := range 3 {
		g := (p.Axis(axis) - v.Bounds.Min.Axis(axis)) / v.Density
		last := v.Dims[axis] - 1

		base := min(max(int(math.Floor(g)), 0), last)
		c.Base[axis] = base
		if base == last {
			// Flat extrapolation past the final sample.
			c.Next[axis] = last
			continue
		}
		c.Next[axis] = base + 1
		c.Frac[axis] = min(max(g-float64(base), 0), 1)
	}
	return c
}

// Corners returns the eight probe indices of the cell with their trilinear
// weights. Weights sum to 1.
func (c Cell) Corners(v *Volume) [8]Corner {
	var out [8]Corner
	n := 0
	for dz := range 2 {
		k, wz := c.Base[2], 1-c.Frac[2]
		if dz == 1 {
			k, wz = c.Next[2], c.Frac[2]
		}
		for dy := range 2 {
			j, wy := c.Base[1], 1-c.Frac[1]
			if dy == 1 {
				j, wy = c.Next[1], c.Frac[1]
			}
			for dx := range 2 {
				i, wx := c.Base[0], 1-c.Frac[0]
				if dx == 1 {
					i, wx = c.Next[0], c.Frac[0]
				}
				out[n] = Corner{Index: v.Index(i, j, k), Weight: wx * wy * wz}
				n++
			}
		}
	}
	return out
}

// Lookup queries a volume under a bounds policy. The zero value clamps.
type Lookup struct {
	Policy BoundsPolicy
}

// Query returns the trilinearly interpolated coefficients at pos.
func (l Lookup) Query(v *Volume, pos math3d.Vec3) (sh.Coefficients, error) {
	var c sh.Coefficients
	err := l.QueryInto(v, pos, &c)
	return c, err
}

// QueryInto writes the interpolated coefficients at pos into dst, which the
// caller owns and may reuse every frame. dst is left untouched on error.
func (l Lookup) QueryInto(v *Volume, pos math3d.Vec3, dst *sh.Coefficients) error {
	if l.Policy == PolicyReject && !v.Bounds.Contains(pos) {
		return &OutOfBoundsError{Position: pos, Bounds: v.Bounds}
	}

	corners := Locate(v, pos).Corners(v)
	*dst = sh.Coefficients{}
	for _, c := range corners {
		if c.Weight == 0 {
			continue
		}
		dst.AddScaled(&v.Probes[c.Index].Coefficients, c.Weight)
	}
	return nil
}

// Query interpolates v at pos, clamping positions outside the volume.
func Query(v *Volume, pos math3d.Vec3) sh.Coefficients {
	c, _ := Lookup{}.Query(v, pos)
	return c
}
