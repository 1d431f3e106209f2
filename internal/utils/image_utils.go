package utils

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// BoundingBox returns the smallest rectangle holding all points. Max is
// exclusive, so a single point yields a 1x1 rectangle.
func BoundingBox(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0].Add(image.Pt(1, 1))}
	for _, p := range pts[1:] {
		r = r.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	return r
}

// ParseRect reads a region in the "x,y,w,h" form.
func ParseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("want x,y,w,h, got %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, err
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("empty region %q", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// CropImageRect crops an image to the given rectangle. The result starts
// at (0, 0).
func CropImageRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// ToRGBA copies img into an RGBA image with bounds starting at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	thickness = max(thickness, 1)
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	src := image.NewUniform(col)
	t := min(thickness, rect.Dx(), rect.Dy())
	edges := []image.Rectangle{
		{Min: rect.Min, Max: image.Pt(rect.Max.X, rect.Min.Y+t)},
		{Min: image.Pt(rect.Min.X, rect.Max.Y-t), Max: rect.Max},
		{Min: rect.Min, Max: image.Pt(rect.Min.X+t, rect.Max.Y)},
		{Min: image.Pt(rect.Max.X-t, rect.Min.Y), Max: rect.Max},
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []image.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i, a := range pts {
		drawLine(dst, a, pts[(i+1)%len(pts)], col, thickness)
	}
}

// drawLine is Bresenham with a square pen.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	dx, sx := abs(b.X-a.X), sign(b.X-a.X)
	dy, sy := -abs(b.Y-a.Y), sign(b.Y-a.Y)
	err := dx + dy
	for p := a; ; {
		drawPen(dst, p, col, thickness)
		if p == b {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			p.X += sx
		}
		if e2 <= dx {
			err += dx
			p.Y += sy
		}
	}
}

func drawPen(dst *image.RGBA, p image.Point, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	pen := image.Rect(p.X-r, p.Y-r, p.X+r+1, p.Y+r+1).Intersect(dst.Bounds())
	if !pen.Empty() {
		draw.Draw(dst, pen, image.NewUniform(col), image.Point{}, draw.Src)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
