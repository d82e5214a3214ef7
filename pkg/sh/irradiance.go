package sh

import "github.com/taigrr/shprobe/pkg/math3d"

// RamamoorthiHanrahan holds the cosine-lobe convolution weights per band,
// Â_l / π for l = 0, 1, 2.
var RamamoorthiHanrahan = [3]float64{1, 2.0 / 3.0, 1.0 / 4.0}

// Evaluator turns coefficients into a diffuse irradiance sample.
type Evaluator struct {
	// Bands scales each SH band before summation.
	Bands [3]float64
	// ClampNegative zeroes negative channels caused by ringing.
	ClampNegative bool
}

// DefaultEvaluator uses the Ramamoorthi-Hanrahan weights and clamps
// negative results.
func DefaultEvaluator() Evaluator {
	return Evaluator{
		Bands:         RamamoorthiHanrahan,
		ClampNegative: true,
	}
}

// Evaluate returns the irradiance at a surface with the given unit normal,
// divided by π: the radiance a white Lambertian surface would reflect.
// A uniform environment of radiance c evaluates to c for every normal.
func (e Evaluator) Evaluate(c Coefficients, normal math3d.Vec3) math3d.RGB {
	p := Polynomials(normal)
	var out math3d.RGB
	for i := range c {
		out = out.Add(c[i].Scale(p[i] * e.Bands[bandOf[i]]))
	}
	if e.ClampNegative {
		out = out.ClampNonNegative()
	}
	return out
}

// Evaluate is DefaultEvaluator().Evaluate.
func Evaluate(c Coefficients, normal math3d.Vec3) math3d.RGB {
	return DefaultEvaluator().Evaluate(c, normal)
}
