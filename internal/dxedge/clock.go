package dxedge

import (
	"slices"
	"sort"
)

// Clock is a clock track found on a scan row. Its position anchors the data
// track that has to appear right below it.
type Clock struct {
	RowNumber    int  `json:"row_number"`
	HasHalfFrame bool `json:"has_half_frame"`
	XStart       int  `json:"x_start"`
	XStop        int  `json:"x_stop"`
	// Tolerance is half a module width, in pixels.
	Tolerance int `json:"tolerance"`
}

// XStartInRange reports whether x lies within the tolerance of XStart.
func (c Clock) XStartInRange(x int) bool {
	return c.XStart-c.Tolerance <= x && x <= c.XStart+c.Tolerance
}

// XStopInRange reports whether x lies within the tolerance of XStop.
func (c Clock) XStopInRange(x int) bool {
	return c.XStop-c.Tolerance <= x && x <= c.XStop+c.Tolerance
}

// InRange reports whether two clocks start at about the same position, using
// the larger of both tolerances. Such clocks are treated as the same track
// even if they differ in type or length.
func (c Clock) InRange(other Clock) bool {
	tolerance := max(c.Tolerance, other.Tolerance)
	return c.XStart-tolerance <= other.XStart && other.XStart <= c.XStart+tolerance
}

// ClockSet keeps clocks ordered by XStart. At most one clock is stored per
// XStart value.
type ClockSet struct {
	clocks []Clock
}

// Len returns the number of known clocks.
func (s *ClockSet) Len() int { return len(s.clocks) }

// At returns the i-th clock in XStart order.
func (s *ClockSet) At(i int) Clock { return s.clocks[i] }

// All returns a copy of the clocks in XStart order.
func (s *ClockSet) All() []Clock { return slices.Clone(s.clocks) }

func (s *ClockSet) lowerBound(x int) int {
	return sort.Search(len(s.clocks), func(i int) bool { return s.clocks[i].XStart >= x })
}

// Closest returns the index of the clock whose XStart is nearest to x, or -1
// if the set is empty. On a tie the clock further left wins.
func (s *ClockSet) Closest(x int) int {
	if len(s.clocks) == 0 {
		return -1
	}
	i := s.lowerBound(x)
	if i == 0 {
		return 0
	}
	prev := i - 1
	if i == len(s.clocks) || x-s.clocks[prev].XStart <= s.clocks[i].XStart-x {
		return prev
	}
	return i
}

// Insert adds c and reports whether it was stored. A clock with the same
// XStart already in the set is kept and c is dropped.
func (s *ClockSet) Insert(c Clock) bool {
	i := s.lowerBound(c.XStart)
	if i < len(s.clocks) && s.clocks[i].XStart == c.XStart {
		return false
	}
	s.clocks = slices.Insert(s.clocks, i, c)
	return true
}

// RemoveAt drops the i-th clock.
func (s *ClockSet) RemoveAt(i int) {
	s.clocks = slices.Delete(s.clocks, i, i+1)
}

// replace swaps the i-th clock for c, keeping the set ordered.
func (s *ClockSet) replace(i int, c Clock) {
	s.RemoveAt(i)
	s.Insert(c)
}

// State carries the clocks found so far in one scan. The zero value is an
// empty state. A State must not be shared between scans or goroutines.
type State struct {
	Clocks ClockSet
}

// Reset forgets all clocks.
func (st *State) Reset() { st.Clocks = ClockSet{} }
