package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"math"
	"os"

	_ "github.com/ftrvxmtrx/tga" // Register TGA decoder

	"github.com/taigrr/shprobe/pkg/math3d"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
type WrapMode int

const (
	WrapRepeat WrapMode = iota // Tile the texture
	WrapClamp                  // Clamp to edge
)

// FilterMode determines how texture sampling is performed.
type FilterMode int

const (
	FilterNearest  FilterMode = iota // Nearest-neighbor (pixelated)
	FilterBilinear                   // Bilinear interpolation (smooth)
)

// Texture is a 2D albedo map decoded to linear RGB, so filtering happens
// in linear space.
type Texture struct {
	Width      int
	Height     int
	Pixels     []math3d.RGB // Row-major, row 0 at the top
	WrapU      WrapMode
	WrapV      WrapMode
	FilterMode FilterMode
	// FlipV maps v=0 to the bottom row instead of the top.
	FlipV bool
}

// NewTexture creates a black texture with the given dimensions.
func NewTexture(width, height int) *Texture {
	return &Texture{
		Width:      width,
		Height:     height,
		Pixels:     make([]math3d.RGB, width*height),
		FilterMode: FilterBilinear,
	}
}

// LoadTexture loads a PNG, JPEG or TGA file.
func LoadTexture(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return TextureFromImage(img), nil
}

// TextureFromImage decodes a display-encoded image into a linear texture.
func TextureFromImage(img image.Image) *Texture {
	b := img.Bounds()
	tex := NewTexture(b.Dx(), b.Dy())
	for y := range tex.Height {
		for x := range tex.Width {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			tex.Pixels[y*tex.Width+x] = LinearFromColor(c)
		}
	}
	return tex
}

// NewCheckerTexture creates a procedural checkerboard.
func NewCheckerTexture(width, height, checkSize int, c1, c2 math3d.RGB) *Texture {
	tex := NewTexture(width, height)
	tex.FilterMode = FilterNearest
	for y := range height {
		for x := range width {
			if (x/checkSize+y/checkSize)%2 == 0 {
				tex.SetPixel(x, y, c1)
			} else {
				tex.SetPixel(x, y, c2)
			}
		}
	}
	return tex
}

// SetPixel sets a texel. Out of range writes are ignored.
func (t *Texture) SetPixel(x, y int, c math3d.RGB) {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return
	}
	t.Pixels[y*t.Width+x] = c
}

// GetPixel returns the texel at (x, y), black out of range.
func (t *Texture) GetPixel(x, y int) math3d.RGB {
	if x < 0 || x >= t.Width || y < 0 || y >= t.Height {
		return math3d.RGB{}
	}
	return t.Pixels[y*t.Width+x]
}

// Sample returns the linear albedo at (u, v).
func (t *Texture) Sample(u, v float64) math3d.RGB {
	if t.Width == 0 || t.Height == 0 {
		return math3d.Gray(1)
	}
	u = wrapCoord(u, t.WrapU)
	v = wrapCoord(v, t.WrapV)
	if t.FlipV {
		v = 1 - v
	}

	if t.FilterMode == FilterNearest {
		x := min(int(u*float64(t.Width)), t.Width-1)
		y := min(int(v*float64(t.Height)), t.Height-1)
		return t.GetPixel(x, y)
	}

	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)

	xa, xb := wrapPixel(x0, t.Width, t.WrapU), wrapPixel(x0+1, t.Width, t.WrapU)
	ya, yb := wrapPixel(y0, t.Height, t.WrapV), wrapPixel(y0+1, t.Height, t.WrapV)

	top := t.GetPixel(xa, ya).Lerp(t.GetPixel(xb, ya), tx)
	bot := t.GetPixel(xa, yb).Lerp(t.GetPixel(xb, yb), tx)
	return top.Lerp(bot, ty)
}

func wrapCoord(c float64, mode WrapMode) float64 {
	if mode == WrapClamp {
		return math.Max(0, math.Min(1, c))
	}
	return c - math.Floor(c)
}

func wrapPixel(x, size int, mode WrapMode) int {
	if mode == WrapClamp {
		return min(max(x, 0), size-1)
	}
	x %= size
	if x < 0 {
		x += size
	}
	return x
}
