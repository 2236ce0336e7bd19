// Package mutation contains ruin and recreate operators.
package mutation

import (
	"maps"

	"vrpcore/internal/construction"
	"vrpcore/internal/solver"
)

// Mutation produces a new individual from a parent. The parent is never modified.
type Mutation interface {
	Mutate(refinement *solver.RefinementContext, individual *solver.Individual) *solver.Individual
}

// Recreate inserts required jobs back into an individual. It never fails: jobs which cannot
// be inserted end up unassigned.
type Recreate interface {
	Run(refinement *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext
}

// Ruin removes a subset of placed jobs and moves them to required.
type Ruin interface {
	Run(refinement *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext
}

// RuinAndRecreate copies the parent, ruins the copy and recreates it. With a local search
// attached, the recreated child is polished with the given probability.
type RuinAndRecreate struct {
	ruin        Ruin
	recreate    Recreate
	localSearch *LocalSearch
	probability float64
}

func NewRuinAndRecreate(ruin Ruin, recreate Recreate) *RuinAndRecreate {
	return &RuinAndRecreate{ruin: ruin, recreate: recreate}
}

// WithLocalSearch runs ls on a probability share of the children.
func (m *RuinAndRecreate) WithLocalSearch(ls *LocalSearch, probability float64) *RuinAndRecreate {
	m.localSearch = ls
	m.probability = probability
	return m
}

func (m *RuinAndRecreate) Mutate(refinement *solver.RefinementContext, individual *solver.Individual) *solver.Individual {
	child := individual.Copy()
	delete(child.Solution.State, ruinTraceKey)
	delete(child.Solution.State, recreateTraceKey)
	child = m.recreate.Run(refinement, m.ruin.Run(refinement, child))
	if m.localSearch != nil && child.Random.IsHit(m.probability) {
		child = m.localSearch.Improve(child)
	}
	return child
}

// adaptive operators expose their roulette to the mutation which learns for them.
type adaptive interface {
	adaptiveWeights() *AdaptiveWeights
}

// Learn rewards the ruin group and recreate which produced the child.
func (m *RuinAndRecreate) Learn(child *solver.Individual, outcome Outcome) {
	if a, ok := m.ruin.(adaptive); ok {
		if i, ok := traced(child, ruinTraceKey); ok {
			a.adaptiveWeights().Reward(i, outcome)
		}
	}
	if a, ok := m.recreate.(adaptive); ok {
		if i, ok := traced(child, recreateTraceKey); ok {
			a.adaptiveWeights().Reward(i, outcome)
		}
	}
}

// Weights returns the ruin and recreate weights keyed "ruin.<name>" and "recreate.<name>".
func (m *RuinAndRecreate) Weights() map[string]float64 {
	out := map[string]float64{}
	if a, ok := m.ruin.(adaptive); ok {
		maps.Copy(out, a.adaptiveWeights().Snapshot("ruin."))
	}
	if a, ok := m.recreate.(adaptive); ok {
		maps.Copy(out, a.adaptiveWeights().Snapshot("recreate."))
	}
	return out
}

func quotaOf(refinement *solver.RefinementContext) construction.Quota {
	if refinement == nil {
		return nil
	}
	return refinement.Quota
}
