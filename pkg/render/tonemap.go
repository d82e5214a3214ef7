package render

import (
	"image/color"
	"math"

	"github.com/taigrr/shprobe/pkg/math3d"
)

const displayGamma = 2.2

// gammaToLinear maps an 8-bit display value to linear radiance.
var gammaToLinear [256]float64

func init() {
	for i := range gammaToLinear {
		gammaToLinear[i] = math.Pow(float64(i)/255.0, displayGamma)
	}
}

// ACESTonemap applies the ACES filmic curve to a linear value.
func ACESTonemap(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Min(1, (x*(2.51*x+0.03))/(x*(2.43*x+0.59)+0.14))
}

// Tonemap maps linear HDR radiance, scaled by exposure, to a display color.
func Tonemap(c math3d.RGB, exposure float64) color.RGBA {
	return color.RGBA{
		R: encodeChannel(ACESTonemap(c.R * exposure)),
		G: encodeChannel(ACESTonemap(c.G * exposure)),
		B: encodeChannel(ACESTonemap(c.B * exposure)),
		A: 255,
	}
}

// LinearFromColor decodes a display color to linear RGB in [0, 1].
func LinearFromColor(c color.RGBA) math3d.RGB {
	return math3d.RGB{R: gammaToLinear[c.R], G: gammaToLinear[c.G], B: gammaToLinear[c.B]}
}

func encodeChannel(v float64) uint8 {
	return uint8(math.Pow(math.Max(0, math.Min(1, v)), 1/displayGamma)*255 + 0.5)
}
