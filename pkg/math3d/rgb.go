package math3d

import "math"

// RGB is a linear, unbounded color triple. Radiance, irradiance and SH
// coefficient channels all use it.
type RGB struct {
	R, G, B float64
}

// Gray returns an RGB with all three channels set to v.
func Gray(v float64) RGB {
	return RGB{v, v, v}
}

// Add returns the channel-wise sum.
func (c RGB) Add(o RGB) RGB {
	return RGB{c.R + o.R, c.G + o.G, c.B + o.B}
}

// Sub returns the channel-wise difference.
func (c RGB) Sub(o RGB) RGB {
	return RGB{c.R - o.R, c.G - o.G, c.B - o.B}
}

// Mul returns the channel-wise product.
func (c RGB) Mul(o RGB) RGB {
	return RGB{c.R * o.R, c.G * o.G, c.B * o.B}
}

// Scale multiplies every channel by s.
func (c RGB) Scale(s float64) RGB {
	return RGB{c.R * s, c.G * s, c.B * s}
}

// Lerp blends c toward o by t.
func (c RGB) Lerp(o RGB, t float64) RGB {
	return RGB{
		c.R + (o.R-c.R)*t,
		c.G + (o.G-c.G)*t,
		c.B + (o.B-c.B)*t,
	}
}

// ClampNonNegative replaces negative channels with zero.
func (c RGB) ClampNonNegative() RGB {
	return RGB{math.Max(0, c.R), math.Max(0, c.G), math.Max(0, c.B)}
}

// Luminance returns the Rec. 709 relative luminance.
func (c RGB) Luminance() float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

// MaxAbsDiff returns the largest per-channel absolute difference.
func (c RGB) MaxAbsDiff(o RGB) float64 {
	return math.Max(math.Abs(c.R-o.R), math.Max(math.Abs(c.G-o.G), math.Abs(c.B-o.B)))
}
