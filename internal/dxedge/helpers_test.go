package dxedge

import (
	"github.com/MeKo-Tech/filmdx/internal/pattern"
)

const (
	testLead = 40
	testUnit = 4
)

// trackRow scales dark-first module runs by unit and wraps them in light
// margins.
func trackRow(lead, unit int, modules []int, trail int) pattern.Row {
	row := pattern.Row{lead}
	for _, m := range modules {
		row = append(row, m*unit)
	}
	return append(row, trail)
}

// bitsOf parses a string of 0 and 1, ignoring anything else.
func bitsOf(s string) []bool {
	bits := make([]bool, 0, len(s))
	for _, r := range s {
		switch r {
		case '0':
			bits = append(bits, false)
		case '1':
			bits = append(bits, true)
		}
	}
	return bits
}

// dataModules wraps payload bits into start and stop guards. A payload that
// starts or ends dark yields zero-width light runs next to the guards.
func dataModules(bits []bool) []int {
	runs := append([]int(nil), dataStartPattern.Widths...)
	current, count := false, 0
	for _, b := range bits {
		if b == current {
			count++
			continue
		}
		runs = append(runs, count)
		current, count = b, 1
	}
	runs = append(runs, count)
	if current {
		runs = append(runs, 0)
	}
	return append(runs, dataStopPattern.Widths...)
}

func clockModules(hasHalfFrame bool) []int {
	return Code{HasHalfFrame: hasHalfFrame}.ClockModules()
}

// withParity recomputes the parity bit of a payload.
func withParity(bits []bool) []bool {
	out := append([]bool(nil), bits...)
	n := len(out)
	out[n-2] = countSet(out[:n-2])%2 == 1
	return out
}

// decodeAll runs every row reader attempt on a row the way the scanner does.
func decodeAll(rowNumber int, row pattern.Row, state *State) []Result {
	var results []Result
	next := pattern.NewView(row)
	for next.IsValid() {
		if res, ok := DecodeRow(rowNumber, &next, state); ok {
			results = append(results, res)
		}
		next.Shift(2 - next.Index()%2)
		next.Extend()
	}
	return results
}

// seedClock feeds a clock row so state knows one track at testLead.
func seedClock(state *State, rowNumber int, hasHalfFrame bool) {
	next := pattern.NewView(trackRow(testLead, testUnit, clockModules(hasHalfFrame), testLead))
	DecodeRow(rowNumber, &next, state)
}

func decodeBits(state *State, rowNumber int, bits string) (Result, bool) {
	next := pattern.NewView(trackRow(testLead, testUnit, dataModules(bitsOf(bits)), testLead))
	return DecodeRow(rowNumber, &next, state)
}
