package scan

import "fmt"

// Binarizer selects how gray levels are split into dark and light pixels.
type Binarizer string

const (
	// BinarizerGlobal uses one Otsu threshold for the whole image.
	BinarizerGlobal Binarizer = "global"
	// BinarizerRow computes a threshold per scan line and skips lines
	// without enough contrast.
	BinarizerRow Binarizer = "row"
)

// ParseBinarizer maps a name to a Binarizer. The empty string selects the
// default.
func ParseBinarizer(s string) (Binarizer, error) {
	switch Binarizer(s) {
	case "":
		return BinarizerRow, nil
	case BinarizerGlobal, BinarizerRow:
		return Binarizer(s), nil
	default:
		return "", fmt.Errorf("unknown binarizer %q (want %q or %q)", s, BinarizerGlobal, BinarizerRow)
	}
}

// Options controls how much effort Scan spends on an image.
type Options struct {
	// TryHarder scans more rows and keeps searching a row after a miss.
	TryHarder bool
	// TryRotate also scans the image rotated by 90 degrees.
	TryRotate bool
	// TryInvert also scans the inverted image, for film negatives.
	TryInvert bool
	// MinLineCount is the number of rows that have to agree on a code.
	MinLineCount int
	// MaxSymbols stops after this many codes; 0 means no limit.
	MaxSymbols int
	Binarizer  Binarizer
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		MinLineCount: 2,
		Binarizer:    BinarizerRow,
	}
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.MinLineCount < 1 {
		return fmt.Errorf("min line count must be at least 1, got %d", o.MinLineCount)
	}
	if o.MaxSymbols < 0 {
		return fmt.Errorf("max symbols must not be negative, got %d", o.MaxSymbols)
	}
	if _, err := ParseBinarizer(string(o.Binarizer)); err != nil {
		return err
	}
	return nil
}

// rowPlan returns the scan step and the number of rows to visit for an image
// of the given height.
func (o Options) rowPlan(height int) (step, maxLines int) {
	if o.TryHarder {
		return max(1, height/256), height
	}
	return max(1, height/32), 15
}
