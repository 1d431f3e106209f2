package dxedge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCode is returned for codes that cannot be represented.
var ErrInvalidCode = errors.New("invalid DX edge code")

// Field limits imposed by the payload layout.
const (
	MaxProduct    = 1<<(productEnd-productStart) - 1
	MaxGeneration = 1<<(generationEnd-generationStart) - 1
	MaxFrame      = (1<<(halfFrameEnd-halfFrameStart) - 1) / 2
)

// Code is the content of a DX edge code.
type Code struct {
	Product         int  `json:"product" yaml:"product"`
	Generation      int  `json:"generation" yaml:"generation"`
	HasHalfFrame    bool `json:"has_half_frame" yaml:"has_half_frame"`
	Frame           int  `json:"frame,omitempty" yaml:"frame,omitempty"`
	HalfFrameLetter bool `json:"half_frame_letter,omitempty" yaml:"half_frame_letter,omitempty"`
}

// CodeOf returns the code carried by a decoded result.
func CodeOf(r Result) Code {
	return Code{
		Product:         r.Product,
		Generation:      r.Generation,
		HasHalfFrame:    r.HasHalfFrame,
		Frame:           r.Frame,
		HalfFrameLetter: r.HalfFrameLetter,
	}
}

// Validate checks the field ranges.
func (c Code) Validate() error {
	if c.Product < 1 || c.Product > MaxProduct {
		return fmt.Errorf("%w: product %d out of range 1..%d", ErrInvalidCode, c.Product, MaxProduct)
	}
	if c.Generation < 0 || c.Generation > MaxGeneration {
		return fmt.Errorf("%w: generation %d out of range 0..%d", ErrInvalidCode, c.Generation, MaxGeneration)
	}
	if !c.HasHalfFrame {
		if c.Frame != 0 || c.HalfFrameLetter {
			return fmt.Errorf("%w: frame number needs the half-frame variant", ErrInvalidCode)
		}
		return nil
	}
	if c.Frame < 0 || c.Frame > MaxFrame {
		return fmt.Errorf("%w: frame %d out of range 0..%d", ErrInvalidCode, c.Frame, MaxFrame)
	}
	return nil
}

// String renders the code in the same form the decoder reports.
func (c Code) String() string {
	return formatText(c.Product, c.Generation, c.HasHalfFrame, c.Frame, c.HalfFrameLetter)
}

// Bits returns the payload bits of the data track, separators and parity
// included.
func (c Code) Bits() ([]bool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	n := payloadLength(c.HasHalfFrame)
	bits := make([]bool, n)
	copy(bits[productStart:productEnd], fromInt(c.Product, productEnd-productStart))
	copy(bits[generationStart:generationEnd], fromInt(c.Generation, generationEnd-generationStart))
	if c.HasHalfFrame {
		halfFrame := c.Frame * 2
		if c.HalfFrameLetter {
			halfFrame++
		}
		copy(bits[halfFrameStart:halfFrameEnd], fromInt(halfFrame, halfFrameEnd-halfFrameStart))
	}
	bits[n-2] = countSet(bits[:n-2])%2 == 1
	return bits, nil
}

// DataModules returns the run lengths, in modules, of the data track: start
// guard, payload and stop guard. The first run is dark.
func (c Code) DataModules() ([]int, error) {
	bits, err := c.Bits()
	if err != nil {
		return nil, err
	}

	runs := append(make([]int, 0, 32), dataStartPattern.Widths...)
	current, count := bits[0], 0
	for _, b := range bits {
		if b == current {
			count++
			continue
		}
		runs = append(runs, count)
		current, count = b, 1
	}
	runs = append(runs, count)
	return append(runs, dataStopPattern.Widths...), nil
}

// ClockModules returns the run lengths, in modules, of the clock track that
// goes with the code. The first run is dark.
func (c Code) ClockModules() []int {
	if c.HasHalfFrame {
		return append([]int(nil), clockPatternHF.Widths...)
	}
	return append([]int(nil), clockPatternNoHF.Widths...)
}

// ParseText parses the "115-10" and "115-10/11A" forms.
func ParseText(s string) (Code, error) {
	var c Code

	head, frame, hasFrame := strings.Cut(strings.TrimSpace(s), "/")
	product, generation, ok := strings.Cut(head, "-")
	if !ok {
		return c, fmt.Errorf("%w: %q: expected product-generation", ErrInvalidCode, s)
	}

	var err error
	if c.Product, err = strconv.Atoi(product); err != nil {
		return c, fmt.Errorf("%w: %q: product: %v", ErrInvalidCode, s, err)
	}
	if c.Generation, err = strconv.Atoi(generation); err != nil {
		return c, fmt.Errorf("%w: %q: generation: %v", ErrInvalidCode, s, err)
	}

	if hasFrame {
		c.HasHalfFrame = true
		if rest, found := strings.CutSuffix(frame, "A"); found {
			c.HalfFrameLetter = true
			frame = rest
		}
		if c.Frame, err = strconv.Atoi(frame); err != nil {
			return c, fmt.Errorf("%w: %q: frame: %v", ErrInvalidCode, s, err)
		}
	}

	return c, c.Validate()
}
