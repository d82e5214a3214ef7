// Package sh implements third-order (9 coefficient) real spherical harmonics
// for diffuse lighting: projecting a cube environment into coefficients and
// evaluating irradiance from them.
//
// Coefficients are stored pre-multiplied by their basis normalisation
// constant, c_i = k_i * ∫ L(ω) Y_i(ω) dω. Radiance is then reconstructed as
// the plain polynomial sum Σ c_i P_i(ω) with
//
//	P = 1, y, z, x, xy, yz, 3z²-1, xz, x²-y²
//
// so coefficient 0 of a uniform environment equals its radiance.
package sh

import (
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// CoefficientCount is the number of SH terms in bands 0 through 2.
const CoefficientCount = 9

// ScalarCount is the number of scalars in one set of RGB coefficients.
const ScalarCount = CoefficientCount * 3

// Coefficients holds one RGB triple per SH term. The zero value is the
// unbaked state.
type Coefficients [CoefficientCount]math3d.RGB

// Basis normalisation constants k_i, Y_i = k_i * P_i.
var basisConstants = [CoefficientCount]float64{
	0.282094791773878, // 1 / (2√π)
	0.488602511902920, // √3 / (2√π)
	0.488602511902920,
	0.488602511902920,
	1.092548430592079, // √15 / (2√π)
	1.092548430592079,
	0.315391565252520, // √5 / (4√π)
	1.092548430592079,
	0.546274215296040, // √15 / (4√π)
}

// bandOf maps a coefficient index to its SH band.
var bandOf = [CoefficientCount]int{0, 1, 1, 1, 2, 2, 2, 2, 2}

// Polynomials returns the bare basis polynomials P_i at a unit direction.
func Polynomials(dir math3d.Vec3) [CoefficientCount]float64 {
	x, y, z := dir.X, dir.Y, dir.Z
	return [CoefficientCount]float64{
		1,
		y,
		z,
		x,
		x * y,
		y * z,
		3*z*z - 1,
		x * z,
		x*x - y*y,
	}
}

// Basis returns the orthonormal real SH basis Y_i at a unit direction.
func Basis(dir math3d.Vec3) [CoefficientCount]float64 {
	p := Polynomials(dir)
	for i := range p {
		p[i] *= basisConstants[i]
	}
	return p
}

// Radiance reconstructs the band-limited radiance arriving from dir.
func (c *Coefficients) Radiance(dir math3d.Vec3) math3d.RGB {
	p := Polynomials(dir)
	var out math3d.RGB
	for i := range c {
		out = out.Add(c[i].Scale(p[i]))
	}
	return out
}

// Ambient returns the band-0 term, the mean radiance over the sphere.
func (c *Coefficients) Ambient() math3d.RGB {
	return c[0]
}

// IsZero reports whether every coefficient is zero.
func (c *Coefficients) IsZero() bool {
	return *c == Coefficients{}
}

// AddScaled accumulates o * w into c.
func (c *Coefficients) AddScaled(o *Coefficients, w float64) {
	for i := range c {
		c[i] = c[i].Add(o[i].Scale(w))
	}
}

// Lerp blends a toward b by t into c. c may alias a or b.
func (c *Coefficients) Lerp(a, b *Coefficients, t float64) {
	for i := range c {
		c[i] = a[i].Lerp(b[i], t)
	}
}

// Floats flattens the coefficients as r0, g0, b0, r1, ... for storage.
func (c *Coefficients) Floats() [ScalarCount]float64 {
	var f [ScalarCount]float64
	for i, rgb := range c {
		f[i*3] = rgb.R
		f[i*3+1] = rgb.G
		f[i*3+2] = rgb.B
	}
	return f
}

// FromFloats is the inverse of Floats.
func FromFloats(f [ScalarCount]float64) Coefficients {
	var c Coefficients
	for i := range c {
		c[i] = math3d.RGB{R: f[i*3], G: f[i*3+1], B: f[i*3+2]}
	}
	return c
}

// MaxAbsDiff returns the largest absolute difference over all 27 scalars.
func (c *Coefficients) MaxAbsDiff(o *Coefficients) float64 {
	var d float64
	for i := range c {
		d = math.Max(d, c[i].MaxAbsDiff(o[i]))
	}
	return d
}
