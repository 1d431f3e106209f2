// Package pattern provides run-length views over binarized scan lines and
// the ratio-based guard matchers used by the 1D row readers.
package pattern

// Row holds the run lengths of one scan line. The first element is always a
// light run (possibly of width 0), after which light and dark runs alternate.
type Row []int

// FromBits converts a binarized scan line (true = dark) into a Row.
func FromBits(bits []bool) Row {
	row := make(Row, 0, 64)
	if len(bits) == 0 {
		return append(row, 0)
	}

	// the row always starts with a light run
	if bits[0] {
		row = append(row, 0)
	}

	current := bits[0]
	count := 0
	for _, b := range bits {
		if b == current {
			count++
			continue
		}
		row = append(row, count)
		current = b
		count = 1
	}
	row = append(row, count)

	// and always ends with one
	if current {
		row = append(row, 0)
	}
	return row
}

// Reverse reverses the row in place. Since a Row starts and ends with a light
// run, the result is again a valid Row.
func (r Row) Reverse() {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

// Sum returns the total pixel width of the row.
func (r Row) Sum() int {
	s := 0
	for _, v := range r {
		s += v
	}
	return s
}

// View is a window of Size elements over a Row, starting at the cursor. The
// zero View is invalid.
type View struct {
	row  Row
	pos  int
	size int
}

// NewView returns a view covering all elements between the leading and the
// trailing light run, positioned at the first dark bar.
func NewView(row Row) View {
	size := len(row) - 2
	if size < 0 {
		size = 0
	}
	return View{row: row, pos: 1, size: size}
}

// Data returns the raw width of the element at the cursor.
func (v View) Data() int { return v.row[v.pos] }

// At returns the raw width of the i-th element of the window. i may be -1
// (the element in front of the window) or Size() (the element after it).
func (v View) At(i int) int { return v.row[v.pos+i] }

// End returns the raw width of the element right after the window.
func (v View) End() int { return v.row[v.pos+v.size] }

// Size returns the number of elements in the window.
func (v View) Size() int { return v.size }

// Sum returns the pixel width of the first n elements, or of the whole
// window when n is 0.
func (v View) Sum(n int) int {
	if n == 0 {
		n = v.size
	}
	s := 0
	for _, w := range v.row[v.pos : v.pos+n] {
		s += w
	}
	return s
}

// Index is the number of elements from the first dark bar to the cursor.
func (v View) Index() int { return v.pos - 1 }

// PixelsInFront returns the pixel offset of the cursor from the row start.
func (v View) PixelsInFront() int {
	s := 0
	for _, w := range v.row[:v.pos] {
		s += w
	}
	return s
}

// PixelsTillEnd returns the pixel offset of the last pixel of the window.
func (v View) PixelsTillEnd() int {
	s := 0
	for _, w := range v.row[:v.pos+v.size] {
		s += w
	}
	return s - 1
}

// IsAtFirstBar reports whether the window starts at the first dark bar.
func (v View) IsAtFirstBar() bool { return v.pos == 1 }

// IsAtLastBar reports whether the window ends at the last dark bar.
func (v View) IsAtLastBar() bool { return v.pos+v.size == len(v.row)-1 }

// IsValidN reports whether a window of n elements fits at the cursor.
func (v View) IsValidN(n int) bool {
	return v.row != nil && v.pos >= 0 && v.pos+n <= len(v.row)
}

// IsValid reports whether the window fits in the row.
func (v View) IsValid() bool { return v.IsValidN(v.size) }

// SubView returns a window starting offset elements after the cursor. A size
// of 0 extends to the end of this window, a negative size is relative to it.
func (v View) SubView(offset, size int) View {
	if size == 0 {
		size = v.size - offset
	} else if size < 0 {
		size = v.size - offset + size
	}
	if size < 0 {
		size = 0
	}
	return View{row: v.row, pos: v.pos + offset, size: size}
}

// Shift moves the cursor n elements and reports whether the window still
// fits in the row.
func (v *View) Shift(n int) bool {
	if v.row == nil {
		return false
	}
	v.pos += n
	return v.pos+v.size <= len(v.row)
}

// SkipPair moves the cursor to the next bar of the same color.
func (v *View) SkipPair() bool { return v.Shift(2) }

// SkipSymbol moves the cursor past the whole window.
func (v *View) SkipSymbol() bool { return v.Shift(v.size) }

// Extend grows the window up to the end of the row.
func (v *View) Extend() {
	if v.row == nil {
		return
	}
	v.size = len(v.row) - v.pos
	if v.size < 0 {
		v.size = 0
	}
}
