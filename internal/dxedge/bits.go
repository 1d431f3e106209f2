package dxedge

import (
	"slices"
	"strconv"
	"strings"
)

// Payload lengths in bits, without start and stop guards.
const (
	DataLengthHF   = 23
	DataLengthNoHF = 15
)

// Bit layout of the payload. Bit 0 is the separator after the start guard.
const (
	productStart    = 1
	productEnd      = 8
	generationStart = 9
	generationEnd   = 13
	halfFrameStart  = 13
	halfFrameEnd    = 20
)

// clockBits is what the clock track of a half-frame code looks like when it
// is read as a data track.
var clockBits = []bool{
	false, true, false, true, false, true, false, true, false, true, false, true,
	false, true, false, true, true, true, false, false, false, false, false,
}

// payloadLength returns the number of payload bits for a clock variant.
func payloadLength(hasHalfFrame bool) int {
	if hasHalfFrame {
		return DataLengthHF
	}
	return DataLengthNoHF
}

// toInt parses bits as an unsigned integer, most significant bit first.
func toInt(bits []bool) int {
	v := 0
	for _, b := range bits {
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v
}

// fromInt writes v into n bits, most significant bit first.
func fromInt(v, n int) []bool {
	bits := make([]bool, n)
	for i := n - 1; i >= 0; i-- {
		bits[i] = v&1 == 1
		v >>= 1
	}
	return bits
}

// moduleCount rounds a raw bar width to a number of modules. The remainder
// is compared against unit/2 in integer arithmetic, so halves round up.
func moduleCount(width, unit int) int {
	count := width / unit
	if width%unit >= unit/2 {
		count++
	}
	return count
}

// checkParity reports whether the bit count of everything except the last
// two bits matches the parity bit (the second to last one).
func checkParity(bits []bool) bool {
	n := len(bits)
	if n < 2 {
		return false
	}
	return (countSet(bits[:n-2])%2 == 1) == bits[n-2]
}

func countSet(bits []bool) int {
	c := 0
	for _, b := range bits {
		if b {
			c++
		}
	}
	return c
}

// separatorsClear checks the bits that must always be light. For codes
// without half-frame number bit 8 is tested twice and bit 14 once.
func separatorsClear(bits []bool, hasHalfFrame bool) bool {
	if bits[0] || bits[8] {
		return false
	}
	if hasHalfFrame {
		return !bits[20] && !bits[22]
	}
	return !bits[8] && !bits[14]
}

// isClockTrack reports whether bits equal the half-frame clock track.
func isClockTrack(bits []bool) bool {
	return slices.Equal(bits, clockBits)
}

// formatText renders a code as "product-generation" with an optional
// "/frame" and "A" suffix, e.g. "115-10/11A".
func formatText(product, generation int, hasHalfFrame bool, frame int, letter bool) string {
	var sb strings.Builder
	sb.Grow(10)
	sb.WriteString(strconv.Itoa(product))
	sb.WriteByte('-')
	sb.WriteString(strconv.Itoa(generation))
	if hasHalfFrame {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(frame))
		if letter {
			sb.WriteByte('A')
		}
	}
	return sb.String()
}
