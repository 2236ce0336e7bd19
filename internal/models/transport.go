package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMatrix is returned for matrices which are not square or do not match.
var ErrInvalidMatrix = errors.New("invalid routing matrix")

// TransportCost provides travel distance and duration between locations for a profile.
type TransportCost interface {
	Duration(profile int, from, to Location, departure Timestamp) Duration
	Distance(profile int, from, to Location, departure Timestamp) Distance
}

// ActivityCost prices the time spent at an activity.
type ActivityCost interface {
	Cost(actor *Actor, activity *Activity, arrival Timestamp) Cost
	EstimateDeparture(actor *Actor, activity *Activity, arrival Timestamp) Timestamp
}

// Matrix is a dense row-major routing matrix of one profile.
type Matrix struct {
	Profile   int
	Durations []float64
	Distances []float64
}

// MatrixTransportCost is a time-independent TransportCost backed by dense matrices.
type MatrixTransportCost struct {
	size      int
	durations map[int][]float64
	distances map[int][]float64
}

func NewMatrixTransportCost(matrices []Matrix) (*MatrixTransportCost, error) {
	if len(matrices) == 0 {
		return nil, fmt.Errorf("%w: no matrices", ErrInvalidMatrix)
	}
	tc := &MatrixTransportCost{durations: map[int][]float64{}, distances: map[int][]float64{}}
	for _, m := range matrices {
		if len(m.Durations) != len(m.Distances) {
			return nil, fmt.Errorf("%w: profile %d has %d durations and %d distances", ErrInvalidMatrix, m.Profile, len(m.Durations), len(m.Distances))
		}
		size := int(math.Round(math.Sqrt(float64(len(m.Durations)))))
		if size*size != len(m.Durations) {
			return nil, fmt.Errorf("%w: profile %d matrix is not square", ErrInvalidMatrix, m.Profile)
		}
		if tc.size != 0 && tc.size != size {
			return nil, fmt.Errorf("%w: profile %d size %d differs from %d", ErrInvalidMatrix, m.Profile, size, tc.size)
		}
		tc.size = size
		tc.durations[m.Profile] = m.Durations
		tc.distances[m.Profile] = m.Distances
	}
	return tc, nil
}

// Size returns the amount of locations.
func (tc *MatrixTransportCost) Size() int { return tc.size }

func (tc *MatrixTransportCost) Duration(profile int, from, to Location, _ Timestamp) Duration {
	return tc.lookup(tc.durations, profile, from, to)
}

func (tc *MatrixTransportCost) Distance(profile int, from, to Location, _ Timestamp) Distance {
	return tc.lookup(tc.distances, profile, from, to)
}

func (tc *MatrixTransportCost) lookup(values map[int][]float64, profile int, from, to Location) float64 {
	m, ok := values[profile]
	if !ok || from < 0 || to < 0 || from >= tc.size || to >= tc.size {
		return 0
	}
	return m[from*tc.size+to]
}

// SimpleActivityCost charges service and waiting time with the vehicle rates.
type SimpleActivityCost struct{}

func (SimpleActivityCost) Cost(actor *Actor, activity *Activity, arrival Timestamp) Cost {
	costs := actor.Vehicle.Costs
	waiting := math.Max(0, activity.Place.TimeWindow.Start-arrival)
	return waiting*costs.PerWaitingTime + activity.Place.Duration*costs.PerServiceTime
}

func (SimpleActivityCost) EstimateDeparture(_ *Actor, activity *Activity, arrival Timestamp) Timestamp {
	return math.Max(arrival, activity.Place.TimeWindow.Start) + activity.Place.Duration
}
