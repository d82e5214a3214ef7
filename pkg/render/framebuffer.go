// Package render is a small software rasterizer used to capture cube
// environments of a mesh scene and to preview baked lighting.
//
// Pixels hold linear, unbounded radiance. Conversion to display colors
// happens only on output, through ACES tone mapping.
package render

import (
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/HugoSmits86/nativewebp"

	"github.com/taigrr/shprobe/pkg/math3d"
)

// Framebuffer is a 2D array of HDR pixels.
type Framebuffer struct {
	Width    int
	Height   int
	Pixels   []math3d.RGB // Row-major, linear radiance
	Exposure float64      // Scale applied before tone mapping
}

// NewFramebuffer creates a black framebuffer with exposure 1.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		Width:    width,
		Height:   height,
		Pixels:   make([]math3d.RGB, width*height),
		Exposure: 1,
	}
}

// Clear fills the framebuffer with a solid radiance.
func (fb *Framebuffer) Clear(c math3d.RGB) {
	for i := range fb.Pixels {
		fb.Pixels[i] = c
	}
}

// SetPixel sets a pixel at (x, y). Out of range writes are ignored.
func (fb *Framebuffer) SetPixel(x, y int, c math3d.RGB) {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return
	}
	fb.Pixels[y*fb.Width+x] = c
}

// GetPixel returns the radiance at (x, y), or black out of range.
func (fb *Framebuffer) GetPixel(x, y int) math3d.RGB {
	if x < 0 || x >= fb.Width || y < 0 || y >= fb.Height {
		return math3d.RGB{}
	}
	return fb.Pixels[y*fb.Width+x]
}

// DrawLine draws a line from (x0, y0) to (x1, y1) using Bresenham's algorithm.
func (fb *Framebuffer) DrawLine(x0, y0, x1, y1 int, c math3d.RGB) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ToImage tone maps the framebuffer into a standard Go image.RGBA.
func (fb *Framebuffer) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for y := range fb.Height {
		for x := range fb.Width {
			img.SetRGBA(x, y, Tonemap(fb.Pixels[y*fb.Width+x], fb.Exposure))
		}
	}
	return img
}

// SavePNG saves the tone mapped framebuffer as a PNG file.
func (fb *Framebuffer) SavePNG(path string) error {
	return SavePNG(path, fb.ToImage())
}

// SaveWebP saves the tone mapped framebuffer as a lossless WebP file.
func (fb *Framebuffer) SaveWebP(path string) error {
	return SaveWebP(path, fb.ToImage())
}

// SavePNG encodes img to path.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("PNG encode: %w", err)
	}
	return f.Close()
}

// SaveWebP encodes img to path as lossless WebP.
func SaveWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("WebP encode: %w", err)
	}
	return f.Close()
}
