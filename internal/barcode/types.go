package barcode

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/scan"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatDXFilmEdge
)

// FormatAny matches every format a backend supports.
const FormatAny Format = -1

var formatNames = map[Format]string{
	FormatUnknown:    "Unknown",
	FormatDXFilmEdge: "DXFilmEdge",
	FormatAny:        "Any",
}

// String returns the symbology name, e.g. "DXFilmEdge".
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// MarshalText encodes the format by name.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// ParseFormat maps a name to a format. Matching ignores case, dashes and
// underscores, so "dx-film-edge" and "DXFilmEdge" are the same.
func ParseFormat(s string) (Format, error) {
	key := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(s))
	for f, name := range formatNames {
		if f != FormatUnknown && strings.ToLower(name) == key {
			return f, nil
		}
	}
	if key == "dx" {
		return FormatDXFilmEdge, nil
	}
	return FormatUnknown, fmt.Errorf("unknown barcode format %q", s)
}

// ParseFormats parses a comma separated list of format names. An empty list
// yields nil, which backends read as "any".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Options controls backend decoding behavior.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means any.
	Formats []Format

	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// TryRotate also searches the image rotated by 90 degrees.
	TryRotate bool

	// TryInvert also searches the inverted image.
	TryInvert bool

	// MinLineCount is the number of scan lines that have to agree on a
	// result.
	MinLineCount int

	// MaxSymbols stops the search after that many results; 0 means no limit.
	MaxSymbols int

	// Binarizer selects the thresholding strategy ("row" or "global").
	Binarizer string

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends ignore it.
	ROI image.Rectangle
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	d := scan.DefaultOptions()
	return Options{
		MinLineCount: d.MinLineCount,
		Binarizer:    string(d.Binarizer),
	}
}

// wants reports whether f is among the requested formats.
func (o Options) wants(f Format) bool {
	if len(o.Formats) == 0 {
		return true
	}
	for _, want := range o.Formats {
		if want == f || want == FormatAny {
			return true
		}
	}
	return false
}

// Point is an integer point in image coordinates.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Result represents a decoded barcode.
type Result struct {
	Type       Format          `json:"type"`
	Value      string          `json:"value"`
	Points     []Point         `json:"points,omitempty"` // corners, clockwise in scan direction
	BBox       image.Rectangle `json:"bbox"`
	Rotation   float64         `json:"rotation"`   // degrees
	Confidence float64         `json:"confidence"` // -1 if the backend has no calibrated confidence
	Symbology  string          `json:"symbology"`  // "]I0"
	LineCount  int             `json:"line_count"`

	// DX edge fields.
	Product         int  `json:"product"`
	Generation      int  `json:"generation"`
	HasHalfFrame    bool `json:"has_half_frame"`
	Frame           int  `json:"frame,omitempty"`
	HalfFrameLetter bool `json:"half_frame_letter,omitempty"`
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// NewBackend returns the default backend implementation.
func NewBackend() (Backend, error) { return newDefaultBackend() }
