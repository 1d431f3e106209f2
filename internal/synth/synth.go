// Package synth renders DX edge codes as images. The images feed the tests
// and the generate command.
package synth

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelHeight is the room reserved below the tracks for the printed text.
const labelHeight = 20

// Options controls the geometry of a rendered strip.
type Options struct {
	// Unit is the width of one module in pixels.
	Unit int `mapstructure:"unit" yaml:"unit" json:"unit"`
	// TrackHeight is the height of the clock and of the data track.
	TrackHeight int `mapstructure:"track_height" yaml:"track_height" json:"track_height"`
	// Margin is the light border around the strip.
	Margin int `mapstructure:"margin" yaml:"margin" json:"margin"`
	// Spacing is the distance between neighboring codes, in modules.
	Spacing int `mapstructure:"spacing" yaml:"spacing" json:"spacing"`

	Label    bool    `mapstructure:"label" yaml:"label" json:"label"`
	Negative bool    `mapstructure:"negative" yaml:"negative" json:"negative"`
	Blur     float64 `mapstructure:"blur" yaml:"blur" json:"blur"`
}

// DefaultOptions returns a geometry every scanner setting decodes.
func DefaultOptions() Options {
	return Options{
		Unit:        4,
		TrackHeight: 24,
		Margin:      40,
		Spacing:     16,
	}
}

// Validate checks the geometry.
func (o Options) Validate() error {
	switch {
	case o.Unit < 1:
		return fmt.Errorf("unit must be at least 1 pixel, got %d", o.Unit)
	case o.TrackHeight < 1:
		return fmt.Errorf("track height must be at least 1 pixel, got %d", o.TrackHeight)
	case o.Margin < 0:
		return fmt.Errorf("margin must not be negative, got %d", o.Margin)
	case o.Spacing < 0:
		return fmt.Errorf("spacing must not be negative, got %d", o.Spacing)
	case o.Blur < 0:
		return fmt.Errorf("blur must not be negative, got %g", o.Blur)
	}
	return nil
}

// Render draws a single code.
func Render(code dxedge.Code, opts Options) (*image.NRGBA, error) {
	return RenderStrip([]dxedge.Code{code}, opts)
}

// RenderStrip draws codes next to each other, the clock tracks on top and
// the data tracks right below them.
func RenderStrip(codes []dxedge.Code, opts Options) (*image.NRGBA, error) {
	if len(codes) == 0 {
		return nil, errors.New("no codes to render")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	type tracks struct {
		clock, data []int
		text        string
	}
	all := make([]tracks, 0, len(codes))
	modules := 0
	for i, code := range codes {
		data, err := code.DataModules()
		if err != nil {
			return nil, fmt.Errorf("code %d: %w", i, err)
		}
		clock := code.ClockModules()
		if i > 0 {
			modules += opts.Spacing
		}
		modules += sum(clock)
		all = append(all, tracks{clock: clock, data: data, text: code.String()})
	}

	width := 2*opts.Margin + modules*opts.Unit
	height := 2*opts.Margin + 2*opts.TrackHeight
	if opts.Label {
		height += labelHeight
	}

	img := imaging.New(width, height, color.White)
	x := opts.Margin
	for _, t := range all {
		drawTrack(img, t.clock, x, opts.Margin, opts)
		drawTrack(img, t.data, x, opts.Margin+opts.TrackHeight, opts)
		if opts.Label {
			drawLabel(img, t.text, x, opts.Margin+2*opts.TrackHeight+labelHeight-6)
		}
		x += (sum(t.clock) + opts.Spacing) * opts.Unit
	}

	if opts.Blur > 0 {
		img = imaging.Blur(img, opts.Blur)
	}
	if opts.Negative {
		img = imaging.Invert(img)
	}
	return img, nil
}

// drawTrack fills the dark runs of a dark-first module sequence.
func drawTrack(img *image.NRGBA, runs []int, x, y int, opts Options) {
	dark := true
	for _, m := range runs {
		w := m * opts.Unit
		if dark && w > 0 {
			draw.Draw(img, image.Rect(x, y, x+w, y+opts.TrackHeight), image.Black, image.Point{}, draw.Src)
		}
		x += w
		dark = !dark
	}
}

func drawLabel(img *image.NRGBA, text string, x, baseline int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

func sum(runs []int) int {
	s := 0
	for _, r := range runs {
		s += r
	}
	return s
}
