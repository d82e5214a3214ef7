package render

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/taigrr/shprobe/pkg/cubemap"
	"github.com/taigrr/shprobe/pkg/math3d"
)

// atlasCell places one view of the horizontal cross. Every cell is drawn
// with world +Y (or, for the poles, the front direction) pointing up so
// that neighbouring cells meet seamlessly.
type atlasCell struct {
	col, row           int
	forward, up, right math3d.Vec3
}

// Front is -Z; the middle row wraps left, front, right, back.
var atlasCells = [cubemap.FaceCount]atlasCell{
	{1, 0, math3d.V3(0, 1, 0), math3d.V3(0, 0, 1), math3d.V3(1, 0, 0)},
	{0, 1, math3d.V3(-1, 0, 0), math3d.V3(0, 1, 0), math3d.V3(0, 0, -1)},
	{1, 1, math3d.V3(0, 0, -1), math3d.V3(0, 1, 0), math3d.V3(1, 0, 0)},
	{2, 1, math3d.V3(1, 0, 0), math3d.V3(0, 1, 0), math3d.V3(0, 0, 1)},
	{3, 1, math3d.V3(0, 0, 1), math3d.V3(0, 1, 0), math3d.V3(-1, 0, 0)},
	{1, 2, math3d.V3(0, -1, 0), math3d.V3(0, 0, -1), math3d.V3(1, 0, 0)},
}

// CubeAtlas tone maps env into a 4×3 horizontal cross. Cells outside the
// cross are transparent.
func CubeAtlas(env *cubemap.Environment, exposure float64) *image.RGBA {
	size := env.Size()
	img := image.NewRGBA(image.Rect(0, 0, 4*size, 3*size))

	for _, cell := range atlasCells {
		for y := range size {
			v := 1 - 2*(float64(y)+0.5)/float64(size)
			for x := range size {
				u := 2*(float64(x)+0.5)/float64(size) - 1
				dir := cell.forward.Add(cell.right.Scale(u)).Add(cell.up.Scale(v)).Normalize()
				img.SetRGBA(cell.col*size+x, cell.row*size+y, Tonemap(env.Sample(dir), exposure))
			}
		}
	}
	return img
}

// ScaleImage resizes img to width×height with Catmull-Rom filtering.
func ScaleImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
