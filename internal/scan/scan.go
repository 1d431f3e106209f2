// Package scan finds DX edge codes in images. It binarizes scan lines,
// feeds them to the row decoder and merges what consecutive rows agree on.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/pattern"
	"github.com/disintegration/imaging"
)

// Detection is a code confirmed by at least MinLineCount rows.
type Detection struct {
	dxedge.Result

	// LineCount is the number of rows that decoded the same text.
	LineCount int `json:"line_count"`
	// Rotation is 90 when the code was found in the rotated image.
	Rotation int  `json:"rotation"`
	Reversed bool `json:"reversed,omitempty"`
	Inverted bool `json:"inverted,omitempty"`

	// Points are the corners of the decoded area in image coordinates,
	// clockwise in scan direction. The positions in Result stay in scan
	// coordinates.
	Points [4]image.Point  `json:"points"`
	Box    image.Rectangle `json:"box"`
}

// variant is one independent pass over the image.
type variant struct {
	gray     *image.NRGBA
	rotation int
	inverted bool
}

// Scan decodes all DX edge codes in img.
func Scan(ctx context.Context, img image.Image, opts Options) ([]Detection, error) {
	if img == nil {
		return nil, errors.New("scan: nil image")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	opts.Binarizer, _ = ParseBinarizer(string(opts.Binarizer))
	if b := img.Bounds(); b.Empty() {
		return nil, nil
	}

	var found []Detection
	for _, v := range variants(img, opts) {
		lum := newLuminance(v.gray)
		bin := newBinarizer(lum, opts.Binarizer)

		var state dxedge.State
		for _, reversed := range []bool{false, true} {
			// clocks of one direction must not gate data read in the other
			state.Reset()
			dets, err := scanLines(ctx, bin, &state, reversed, opts)
			if err != nil {
				return nil, err
			}
			for i := range dets {
				dets[i].Rotation = v.rotation
				dets[i].Inverted = v.inverted
				dets[i].mapToSource(lum, img.Bounds())
			}
			found = mergeAcross(found, dets)
		}

		if opts.MaxSymbols > 0 && len(found) >= opts.MaxSymbols {
			break
		}
	}

	slices.SortStableFunc(found, func(a, b Detection) int {
		if a.Box.Min.Y != b.Box.Min.Y {
			return a.Box.Min.Y - b.Box.Min.Y
		}
		return a.Box.Min.X - b.Box.Min.X
	})
	if opts.MaxSymbols > 0 && len(found) > opts.MaxSymbols {
		found = found[:opts.MaxSymbols]
	}
	return found, nil
}

func variants(img image.Image, opts Options) []variant {
	gray := imaging.Grayscale(img)
	planes := []variant{{gray: gray}}
	if opts.TryInvert {
		planes = append(planes, variant{gray: imaging.Invert(gray), inverted: true})
	}
	if opts.TryRotate {
		for _, p := range slices.Clone(planes) {
			planes = append(planes, variant{gray: imaging.Rotate90(p.gray), rotation: 90, inverted: p.inverted})
		}
	}
	return planes
}

// track collects the rows that decoded one text.
type track struct {
	first    dxedge.Result
	lines    int
	minX     int
	maxX     int
	firstRow int
	lastRow  int
}

// scanLines visits rows center-out and decodes them with state.
func scanLines(ctx context.Context, bin *binarizer, state *dxedge.State, reversed bool, opts Options) ([]Detection, error) {
	height := bin.lum.height
	step, maxLines := opts.rowPlan(height)
	middle := height / 2

	tracks := map[string]*track{}
	var order []string

	for i := range maxLines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 0, +1, -1, +2, -2, ... steps around the middle
		offset := step * ((i + 1) / 2)
		if i%2 == 1 {
			offset = -offset
		}
		y := middle + offset
		if y < 0 || y >= height {
			break
		}

		row, ok := bin.row(y)
		if !ok {
			continue
		}
		if reversed {
			row.Reverse()
		}

		next := pattern.NewView(row)
		for next.IsValid() {
			if res, ok := dxedge.DecodeRow(y, &next, state); ok {
				t, seen := tracks[res.Text]
				if !seen {
					t = &track{first: res, minX: res.XStart, maxX: res.XStop, firstRow: y, lastRow: y}
					tracks[res.Text] = t
					order = append(order, res.Text)
				}
				t.add(res)
			}
			if !opts.TryHarder {
				break
			}
			next.Shift(2 - next.Index()%2)
			next.Extend()
		}
	}

	var dets []Detection
	for _, text := range order {
		t := tracks[text]
		if t.lines < opts.MinLineCount {
			continue
		}
		dets = append(dets, t.detection(reversed))
	}
	return dets, nil
}

func (t *track) add(res dxedge.Result) {
	t.lines++
	t.minX = min(t.minX, res.XStart)
	t.maxX = max(t.maxX, res.XStop)
	t.firstRow = min(t.firstRow, res.RowNumber)
	t.lastRow = max(t.lastRow, res.RowNumber)
}

func (t *track) detection(reversed bool) Detection {
	return Detection{
		Result:    t.first,
		LineCount: t.lines,
		Reversed:  reversed,
		Points: [4]image.Point{
			{t.minX, t.firstRow},
			{t.maxX, t.firstRow},
			{t.maxX, t.lastRow},
			{t.minX, t.lastRow},
		},
	}
}

// mapToSource moves Points from scan coordinates of lum back to the
// coordinate space of the source image and sets Box.
func (d *Detection) mapToSource(lum *luminance, bounds image.Rectangle) {
	for i, p := range d.Points {
		if d.Reversed {
			p.X = lum.width - 1 - p.X
		}
		if d.Rotation == 90 {
			// the scanned plane is the source rotated counter-clockwise
			p = image.Pt(bounds.Dx()-1-p.Y, p.X)
		}
		d.Points[i] = p.Add(bounds.Min)
	}

	box := image.Rectangle{Min: d.Points[0], Max: d.Points[0]}
	for _, p := range d.Points[1:] {
		box.Min.X = min(box.Min.X, p.X)
		box.Min.Y = min(box.Min.Y, p.Y)
		box.Max.X = max(box.Max.X, p.X)
		box.Max.Y = max(box.Max.Y, p.Y)
	}
	box.Max = box.Max.Add(image.Pt(1, 1))
	d.Box = box
}

// mergeAcross adds dets to found. A text seen in an earlier pass keeps the
// detection with more confirming rows.
func mergeAcross(found, dets []Detection) []Detection {
	for _, d := range dets {
		i := slices.IndexFunc(found, func(f Detection) bool { return f.Text == d.Text })
		switch {
		case i < 0:
			found = append(found, d)
		case d.LineCount > found[i].LineCount:
			found[i] = d
		}
	}
	return found
}
