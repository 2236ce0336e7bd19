package models

import "math"

// Cost is a scalar cost value.
type Cost = float64

// NoCost marks a cost which was not computed yet. It must never take part in a real comparison.
const NoCost Cost = float64(math.MaxInt32)

// ObjectiveCost splits the cost of a solution into the unavoidable operating cost and the
// cost of violated constraints.
type ObjectiveCost struct {
	Actual  Cost
	Penalty Cost
}

// NewObjectiveCost returns a cost with both components clamped to be non-negative.
func NewObjectiveCost(actual, penalty Cost) ObjectiveCost {
	return ObjectiveCost{Actual: clampCost(actual), Penalty: clampCost(penalty)}
}

// Total returns actual plus penalty.
func (c ObjectiveCost) Total() Cost {
	return c.Actual + c.Penalty
}

func clampCost(v Cost) Cost {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// CompareFloats compares two floats using a small absolute tolerance.
func CompareFloats(a, b float64) int {
	if math.Abs(a-b) < 1e-9 {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
