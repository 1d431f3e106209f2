// Package dxedge decodes DX edge codes, the short barcodes printed along the
// edge of 35mm film.
//
// A DX edge code consists of two parallel tracks: a clock track and, right
// below it, a data track carrying a product number, a generation number and
// optionally a half-frame number. Rows of a scan are fed one at a time to
// DecodeRow together with a State that remembers the clock tracks found on
// earlier rows. A data track is only decoded when it sits under a known
// clock, which keeps false positives down.
package dxedge

import "github.com/MeKo-Tech/filmdx/internal/pattern"

// Number of modules spanned by the two clock variants.
const (
	ClockModulesHF   = 31
	ClockModulesNoHF = 23
)

const (
	// Minimum light margins around the clock tracks, in modules. The
	// half-frame clock is longer and more distinctive, so it gets the smaller one.
	minClockNoHFQuietZone = 2.0
	minClockHFQuietZone   = 1.0

	// The data track may have a smaller margin because it is only accepted
	// under a clock.
	minDataQuietZone = 0.5

	// Allowed shift between clock and data track, as a fraction of a module.
	pixelToleranceRatio = 0.5

	dataStartGuardSize = 5
)

var (
	// clockPatternCommon is the prefix shared by both clock variants. Its
	// module count is declared as 20.
	clockPatternCommon = pattern.FixedPattern{Widths: clockWidths(14), Sum: 20}
	clockPatternHF     = pattern.NewFixedPattern(clockWidths(23, 3)...)
	clockPatternNoHF   = pattern.NewFixedPattern(clockWidths(15, 3)...)

	dataStartPattern = pattern.NewFixedPattern(1, 1, 1, 1, 1)
	dataStopPattern  = pattern.NewFixedPattern(1, 1, 1)
)

// clockWidths returns a 5 module wide leading bar followed by n single module
// elements and the optional trailing widths.
func clockWidths(n int, tail ...int) []int {
	w := make([]int, 0, 1+n+len(tail))
	w = append(w, 5)
	for range n {
		w = append(w, 1)
	}
	return append(w, tail...)
}

// updateClocks looks for a clock track on the row and merges it into clocks.
// A clock starting within tolerance of a known one replaces it, so the stored
// position follows skewed film from row to row.
func updateClocks(rowNumber int, next pattern.View, clocks *ClockSet) {
	// The common prefix is cheap to test and rules out most rows.
	if _, ok := pattern.FindLeftGuard(next, clockPatternCommon.Len(), clockPatternCommon,
		min(minClockNoHFQuietZone, minClockHFQuietZone)); !ok {
		return
	}

	hasHalfFrame := true
	modules := ClockModulesHF
	found, ok := pattern.FindLeftGuard(next, clockPatternHF.Len(), clockPatternHF, minClockHFQuietZone)
	if !ok {
		hasHalfFrame = false
		modules = ClockModulesNoHF
		found, ok = pattern.FindLeftGuard(next, clockPatternNoHF.Len(), clockPatternNoHF, minClockNoHFQuietZone)
		if !ok {
			return
		}
	}

	xStart := found.PixelsInFront()
	xStop := found.PixelsTillEnd()
	clock := Clock{
		RowNumber:    rowNumber,
		HasHalfFrame: hasHalfFrame,
		XStart:       xStart,
		XStop:        xStop,
		Tolerance:    int(float64((xStop-xStart)/modules) * pixelToleranceRatio),
	}

	if i := clocks.Closest(clock.XStart); i >= 0 && clock.InRange(clocks.At(i)) {
		clocks.replace(i, clock)
		return
	}
	clocks.Insert(clock)
}

// DecodeRow runs one row through the decoder. It first updates the clocks in
// state from the row, then tries to decode a data track below one of them.
//
// next is the view over the row; it is moved to the data track that was
// examined so the caller can continue the search behind it. The second
// return value is false when nothing was decoded on this row.
func DecodeRow(rowNumber int, next *pattern.View, state *State) (Result, bool) {
	clocks := &state.Clocks

	updateClocks(rowNumber, *next, clocks)

	// No data track without a clock.
	if clocks.Len() == 0 {
		return Result{}, false
	}

	var ok bool
	*next, ok = pattern.FindLeftGuard(*next, dataStartPattern.Len(), dataStartPattern, minDataQuietZone)
	if !ok {
		return Result{}, false
	}

	xStart := next.PixelsInFront()

	// The data track has to start right below a clock.
	ci := clocks.Closest(xStart)
	clock := clocks.At(ci)
	if !clock.XStartInRange(xStart) {
		return Result{}, false
	}

	// A clock found further away from the scan start than this row cannot
	// own it; this happens with two films stacked on top of each other.
	if clock.RowNumber > rowNumber {
		return Result{}, false
	}

	// The first bar of the start guard is one module wide.
	unit := next.Data()
	if unit <= 0 {
		return Result{}, false
	}

	// Skip the start guard. The payload starts with a light separator.
	next.Shift(dataStartGuardSize)
	if !next.IsValid() {
		return Result{}, false
	}

	length := payloadLength(clock.HasHalfFrame)
	bits := make([]bool, 0, length)
	signalLength := 0
	dark := false
	for signalLength < length {
		if !next.IsValid() {
			return Result{}, false
		}

		w := next.Data()
		if w == 0 {
			return Result{}, false
		}

		count := moduleCount(w, unit)
		if count == 0 {
			return Result{}, false
		}
		signalLength += count

		for ; count > 0 && len(bits) < length; count-- {
			bits = append(bits, dark)
		}

		dark = !dark
		next.Shift(1)
	}

	if signalLength != length {
		return Result{}, false
	}

	*next = next.SubView(0, dataStopPattern.Len())
	if !next.IsValidN(dataStopPattern.Len()+1) || !pattern.IsRightGuard(*next, dataStopPattern, minDataQuietZone) {
		return Result{}, false
	}

	if len(bits) < length {
		return Result{}, false
	}

	if !separatorsClear(bits, clock.HasHalfFrame) {
		return Result{}, false
	}

	// With a small quiet zone the clock track itself can pass as data.
	if minDataQuietZone <= 1 && clock.HasHalfFrame && isClockTrack(bits) {
		return Result{}, false
	}

	if !checkParity(bits) {
		return Result{}, false
	}

	product := toInt(bits[productStart:productEnd])
	if product == 0 {
		return Result{}, false
	}
	generation := toInt(bits[generationStart:generationEnd])

	res := Result{
		Product:      product,
		Generation:   generation,
		HasHalfFrame: clock.HasHalfFrame,
		RowNumber:    rowNumber,
		XStart:       xStart,
		Format:       FormatName,
		Symbology:    Identifier,
	}
	if clock.HasHalfFrame {
		halfFrame := toInt(bits[halfFrameStart:halfFrameEnd])
		res.Frame = halfFrame / 2
		res.HalfFrameLetter = halfFrame%2 == 1
	}
	res.Text = formatText(res.Product, res.Generation, res.HasHalfFrame, res.Frame, res.HalfFrameLetter)

	xStop := next.PixelsTillEnd()
	if !clock.XStopInRange(xStop) {
		return Result{}, false
	}
	res.XStop = xStop

	// Track the clock with the data position, it is more precise on skewed film.
	if clock.XStart != xStart || clock.XStop != xStop {
		clock.XStart = xStart
		clock.XStop = xStop
		clocks.replace(ci, clock)
	}

	return res, true
}
