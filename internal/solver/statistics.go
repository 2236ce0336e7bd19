package solver

import (
	"time"

	"vrpcore/internal/models"
)

const improvementWindow = 1000

// HistoryPoint records a new best cost.
type HistoryPoint struct {
	Generation int
	Cost       float64
	Elapsed    time.Duration
}

// Statistics tracks the progress of a refinement run.
type Statistics struct {
	Generation           int
	Improvements         int
	ImprovementAllRatio  float64
	Improvement1000Ratio float64
	// TerminationEstimate is the consumed share of the quota in [0, 1].
	TerminationEstimate float64
	Elapsed             time.Duration
	BestCost            models.ObjectiveCost
	History             []HistoryPoint

	window             [improvementWindow]bool
	windowN            int
	windowIn           int
	windowImprovements int
}

func NewStatistics() *Statistics {
	return &Statistics{BestCost: models.ObjectiveCost{Actual: models.NoCost}}
}

// HasBest reports whether a best cost has been recorded.
func (s *Statistics) HasBest() bool {
	return s.BestCost.Actual != models.NoCost
}

// Record closes a generation.
func (s *Statistics) Record(improved bool, best models.ObjectiveCost, estimate float64, elapsed time.Duration) {
	s.Generation++
	s.Elapsed = elapsed
	s.TerminationEstimate = clamp01(max(s.TerminationEstimate, estimate))

	if s.windowN == improvementWindow && s.window[s.windowIn] {
		s.windowImprovements--
	}
	s.window[s.windowIn] = improved
	s.windowIn = (s.windowIn + 1) % improvementWindow
	if s.windowN < improvementWindow {
		s.windowN++
	}
	if improved {
		s.Improvements++
		s.windowImprovements++
	}
	s.ImprovementAllRatio = float64(s.Improvements) / float64(s.Generation)
	s.Improvement1000Ratio = float64(s.windowImprovements) / float64(s.windowN)

	if !s.HasBest() || best.Total() < s.BestCost.Total() {
		s.BestCost = best
		s.History = append(s.History, HistoryPoint{Generation: s.Generation, Cost: best.Total(), Elapsed: elapsed})
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
