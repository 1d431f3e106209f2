package pipeline

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/filmdx/internal/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayColor is the default color for RenderOverlay.
var OverlayColor = color.RGBA{R: 255, A: 255}

// RenderOverlay returns an RGBA copy of img with the box, the corner
// polygon and the text of every code drawn on top.
func RenderOverlay(img image.Image, res *ImageResult, col color.Color) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)
	if res == nil {
		return dst
	}

	// results are in image coordinates, dst starts at (0, 0)
	origin := img.Bounds().Min
	for _, c := range res.Codes {
		box := image.Rect(c.Box.X, c.Box.Y, c.Box.X+c.Box.W, c.Box.Y+c.Box.H).Sub(origin)
		utils.DrawRect(dst, box.Inset(-2), col, 1)

		if len(c.Points) >= 2 {
			pts := make([]image.Point, len(c.Points))
			for i, p := range c.Points {
				pts[i] = image.Pt(p.X, p.Y).Sub(origin)
			}
			utils.DrawPolygon(dst, pts, col, 1)
		}

		drawLabel(dst, c.Text, box.Min.X, box.Min.Y-4, col)
	}
	return dst
}

func drawLabel(dst *image.RGBA, text string, x, baseline int, col color.Color) {
	if baseline < basicfont.Face7x13.Ascent {
		baseline = basicfont.Face7x13.Ascent
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
