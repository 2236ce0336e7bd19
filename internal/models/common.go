package models

import "math"

// Location is an index into the transport matrices.
type Location = int

// Timestamp and Duration are expressed in seconds.
type (
	Timestamp = float64
	Duration  = float64
	Distance  = float64
)

// MaxTime is used for open time window ends.
const MaxTime Timestamp = math.MaxFloat64

// TimeWindow is a closed interval [Start, End].
type TimeWindow struct {
	Start Timestamp
	End   Timestamp
}

// UnlimitedTimeWindow accepts any time.
func UnlimitedTimeWindow() TimeWindow {
	return TimeWindow{Start: 0, End: MaxTime}
}

func (tw TimeWindow) Contains(t Timestamp) bool {
	return t >= tw.Start && t <= tw.End
}

func (tw TimeWindow) Intersects(other TimeWindow) bool {
	return tw.Start <= other.End && other.Start <= tw.End
}

// Overlap returns the length of the intersection, zero for disjoint windows.
func (tw TimeWindow) Overlap(other TimeWindow) Duration {
	return max(0, min(tw.End, other.End)-max(tw.Start, other.Start))
}

// Load is a multi-dimensional demand or capacity. Values are treated as immutable:
// arithmetic returns a new slice.
type Load []int

func (l Load) Add(other Load) Load {
	out := make(Load, max(len(l), len(other)))
	for i := range out {
		out[i] = l.at(i) + other.at(i)
	}
	return out
}

func (l Load) Sub(other Load) Load {
	out := make(Load, max(len(l), len(other)))
	for i := range out {
		out[i] = l.at(i) - other.at(i)
	}
	return out
}

// Max returns the element-wise maximum.
func (l Load) Max(other Load) Load {
	out := make(Load, max(len(l), len(other)))
	for i := range out {
		out[i] = max(l.at(i), other.at(i))
	}
	return out
}

// Fits reports whether every dimension of l is within capacity. Dimensions missing from
// capacity are treated as zero.
func (l Load) Fits(capacity Load) bool {
	for i := 0; i < max(len(l), len(capacity)); i++ {
		if l.at(i) > capacity.at(i) {
			return false
		}
	}
	return true
}

func (l Load) IsZero() bool {
	for _, v := range l {
		if v != 0 {
			return false
		}
	}
	return true
}

func (l Load) at(i int) int {
	if i < len(l) {
		return l[i]
	}
	return 0
}
