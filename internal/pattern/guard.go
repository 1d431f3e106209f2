package pattern

import "math"

// unlimitedQuietZone stands in for the missing neighbor at the row edges.
const unlimitedQuietZone = math.MaxInt32

// FixedPattern is a sequence of relative bar widths. Sum is the number of
// modules the pattern spans; it normally equals the sum of Widths but may be
// declared larger for prefixes of longer patterns.
type FixedPattern struct {
	Widths []int
	Sum    int
}

// NewFixedPattern builds a pattern whose module count is the sum of widths.
func NewFixedPattern(widths ...int) FixedPattern {
	s := 0
	for _, w := range widths {
		s += w
	}
	return FixedPattern{Widths: widths, Sum: s}
}

// Len returns the number of elements in the pattern.
func (p FixedPattern) Len() int { return len(p.Widths) }

// IsPattern matches the first Len() elements of view against the pattern and
// returns the estimated module size, or 0 if the window does not match.
// spaceInPixel is the light run next to the window that has to satisfy the
// minimum quiet zone (in modules). A zero moduleSizeRef uses the estimate.
func IsPattern(view View, p FixedPattern, spaceInPixel int, minQuietZone, moduleSizeRef float64) float64 {
	n := p.Len()
	width := view.Sum(n)
	if p.Sum > n && width < p.Sum {
		return 0
	}

	moduleSize := float64(width) / float64(p.Sum)

	if minQuietZone != 0 && float64(spaceInPixel) < minQuietZone*moduleSize-1 {
		return 0
	}

	if moduleSizeRef == 0 {
		moduleSizeRef = moduleSize
	}

	// the +0.5 keeps near-1 module sizes from failing on quantization alone
	threshold := moduleSizeRef*0.5 + 0.5

	for i, w := range p.Widths {
		if math.Abs(float64(view.At(i))-float64(w)*moduleSizeRef) > threshold {
			return 0
		}
	}
	return moduleSize
}

// FindLeftGuard searches view for the first window matching p that is
// preceded by a quiet zone of at least minQuietZone modules. The search
// starts at the cursor, visits dark bars only and stops once fewer than
// minSize elements are left. minSize is never less than the pattern length.
func FindLeftGuard(view View, minSize int, p FixedPattern, minQuietZone float64) (View, bool) {
	n := p.Len()
	if minSize < n {
		minSize = n
	}
	if view.Size() < minSize {
		return View{}, false
	}

	window := view.SubView(0, n)
	if window.IsAtFirstBar() && IsPattern(window, p, unlimitedQuietZone, minQuietZone, 0) != 0 {
		return window, true
	}

	end := view.pos + view.size - minSize
	for ; window.pos < end; window.SkipPair() {
		if IsPattern(window, p, window.At(-1), minQuietZone, 0) != 0 {
			return window, true
		}
	}
	return View{}, false
}

// IsRightGuard reports whether view matches p and is followed by a quiet zone
// of at least minQuietZone modules.
func IsRightGuard(view View, p FixedPattern, minQuietZone float64) bool {
	space := unlimitedQuietZone
	if !view.IsAtLastBar() {
		space = view.End()
	}
	return IsPattern(view, p, space, minQuietZone, 0) != 0
}
