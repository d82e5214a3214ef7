package sh

import (
	"math"

	"github.com/taigrr/shprobe/pkg/cubemap"
)

// Project integrates a cube environment against the SH basis. Each texel
// contributes radiance * Y_i * dω, where dω is the exact texel solid angle;
// the sum is renormalised so the discrete sphere measures exactly 4π.
//
// Sums are kept per face row before being folded into the totals so the
// thousands of small texel terms of a large face don't bias the result.
func Project(env *cubemap.Environment) (Coefficients, error) {
	if err := env.Validate(); err != nil {
		return Coefficients{}, err
	}

	size := env.Size()
	solidAngles := cubemap.SolidAngleTable(size)

	// weight_i = k_i^2: one k_i for Y_i and one for the stored scale.
	var weight [CoefficientCount]float64
	for i, k := range basisConstants {
		weight[i] = k * k
	}

	var sums [CoefficientCount][3]float64
	var totalSolidAngle float64

	for f := range cubemap.Face(cubemap.FaceCount) {
		img := env.Faces[f]
		for y := range size {
			var row [CoefficientCount][3]float64
			var rowSolidAngle float64

			for x := range size {
				dw := solidAngles[y*size+x]
				c := img.At(x, y)
				p := Polynomials(cubemap.TexelDirection(f, x, y, size))
				for i := range CoefficientCount {
					w := p[i] * weight[i] * dw
					row[i][0] += c.R * w
					row[i][1] += c.G * w
					row[i][2] += c.B * w
				}
				rowSolidAngle += dw
			}

			for i := range CoefficientCount {
				sums[i][0] += row[i][0]
				sums[i][1] += row[i][1]
				sums[i][2] += row[i][2]
			}
			totalSolidAngle += rowSolidAngle
		}
	}

	norm := 4 * math.Pi / totalSolidAngle

	var out Coefficients
	for i := range out {
		out[i].R = sums[i][0] * norm
		out[i].G = sums[i][1] * norm
		out[i].B = sums[i][2] * norm
	}
	return out, nil
}
