package solver

import (
	"vrpcore/internal/construction"
	"vrpcore/internal/models"
)

// RefinementContext is the state of one solver run.
type RefinementContext struct {
	Problem    *construction.Problem
	Population Population
	Statistics *Statistics
	Quota      construction.Quota
	Random     models.Random
}

func NewRefinementContext(problem *construction.Problem, population Population, quota construction.Quota, random models.Random) *RefinementContext {
	return &RefinementContext{
		Problem:    problem,
		Population: population,
		Statistics: NewStatistics(),
		Quota:      quota,
		Random:     random,
	}
}
