package render

import (
	uv "github.com/charmbracelet/ultraviolet"
)

// Draw tone maps the framebuffer into terminal cells on the screen. Each
// cell shows two pixel rows with ▀: the foreground is the top pixel and the
// background the bottom one, so the framebuffer should be twice as tall as
// the area.
func (fb *Framebuffer) Draw(scr uv.Screen, area uv.Rectangle) {
	for row := area.Min.Y; row < area.Max.Y; row++ {
		topY := (row - area.Min.Y) * 2
		botY := topY + 1
		if topY >= fb.Height {
			break
		}

		for col := area.Min.X; col < area.Max.X; col++ {
			x := col - area.Min.X
			if x >= fb.Width {
				break
			}
			cell := &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: Tonemap(fb.GetPixel(x, topY), fb.Exposure),
					Bg: Tonemap(fb.GetPixel(x, botY), fb.Exposure),
				},
			}
			scr.SetCell(col, row, cell)
		}
	}
}
