package render

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/taigrr/shprobe/pkg/math3d"
)

func TestTextureSampleNearest(t *testing.T) {
	tex := NewCheckerTexture(4, 4, 2, math3d.Gray(1), math3d.Gray(0))

	tests := []struct {
		name string
		u, v float64
		want float64
	}{
		{"top left", 0.1, 0.1, 1},
		{"top right", 0.9, 0.1, 0},
		{"bottom right", 0.9, 0.9, 1},
		{"repeat", 1.1, 0.1, 1},
		{"negative repeat", -0.1, 0.1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tex.Sample(tc.u, tc.v).R; got != tc.want {
				t.Errorf("Sample(%v, %v) = %v, want %v", tc.u, tc.v, got, tc.want)
			}
		})
	}
}

func TestTextureSampleBilinear(t *testing.T) {
	tex := NewTexture(2, 1)
	tex.WrapU = WrapClamp
	tex.SetPixel(0, 0, math3d.Gray(0))
	tex.SetPixel(1, 0, math3d.Gray(1))

	tests := []struct {
		u    float64
		want float64
	}{
		{0.25, 0},  // Texel centre
		{0.5, 0.5}, // Halfway between centres
		{0.75, 1},  // Texel centre
		{0, 0},     // Clamped
		{1.5, 1},   // Clamped
		{0.375, 0.25},
	}

	for _, tc := range tests {
		if got := tex.Sample(tc.u, 0.5).R; math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Sample(%v) = %v, want %v", tc.u, got, tc.want)
		}
	}
}

func TestTextureFlipV(t *testing.T) {
	tex := NewTexture(1, 2)
	tex.FilterMode = FilterNearest
	tex.SetPixel(0, 0, math3d.RGB{R: 1})
	tex.SetPixel(0, 1, math3d.RGB{B: 1})

	if got := tex.Sample(0.5, 0.1); got != (math3d.RGB{R: 1}) {
		t.Errorf("v=0.1 = %v, want top row", got)
	}
	tex.FlipV = true
	if got := tex.Sample(0.5, 0.1); got != (math3d.RGB{B: 1}) {
		t.Errorf("flipped v=0.1 = %v, want bottom row", got)
	}
}

func TestTextureEmptySamplesWhite(t *testing.T) {
	var tex Texture
	if got := tex.Sample(0.3, 0.7); got != math3d.Gray(1) {
		t.Errorf("empty texture = %v, want white", got)
	}
}

func TestTextureFromImageIsLinear(t *testing.T) {
	img := image.NewRGBA(image.Rect(2, 3, 4, 4)) // Non-zero origin
	img.SetRGBA(2, 3, color.RGBA{R: 255, A: 255})
	img.SetRGBA(3, 3, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	tex := TextureFromImage(img)
	if tex.Width != 2 || tex.Height != 1 {
		t.Fatalf("size = %dx%d, want 2x1", tex.Width, tex.Height)
	}
	if got := tex.GetPixel(0, 0); got != (math3d.RGB{R: 1}) {
		t.Errorf("red texel = %v, want (1,0,0)", got)
	}
	want := math.Pow(128.0/255, displayGamma)
	if got := tex.GetPixel(1, 0).G; math.Abs(got-want) > 1e-12 {
		t.Errorf("mid grey = %v, want %v", got, want)
	}
}

func TestLoadTexture(t *testing.T) {
	fb := NewFramebuffer(3, 2)
	fb.SetPixel(0, 0, math3d.Gray(100)) // Saturates to white

	path := filepath.Join(t.TempDir(), "tex.png")
	if err := fb.SavePNG(path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}

	tex, err := LoadTexture(path)
	if err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", tex.Width, tex.Height)
	}
	if got := tex.GetPixel(0, 0); got != math3d.Gray(1) {
		t.Errorf("white texel = %v", got)
	}
	if got := tex.GetPixel(1, 1); got != (math3d.RGB{}) {
		t.Errorf("black texel = %v", got)
	}

	if _, err := LoadTexture(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func BenchmarkTextureSampleBilinear(b *testing.B) {
	tex := NewCheckerTexture(64, 64, 8, math3d.Gray(1), math3d.Gray(0))
	tex.FilterMode = FilterBilinear

	for b.Loop() {
		_ = tex.Sample(0.37, 0.61)
	}
}
