package population

import (
	"fmt"

	"vrpcore/internal/construction"
	"vrpcore/internal/solver"
)

// Greedy keeps only the best individual.
type Greedy struct {
	objective     construction.Objective
	selectionSize int
	best          *entry
	phase         solver.SelectionPhase
}

// NewGreedy creates a greedy population, optionally seeded with a known best individual.
func NewGreedy(objective construction.Objective, selectionSize int, best *solver.Individual) (*Greedy, error) {
	if selectionSize < 1 {
		return nil, fmt.Errorf("%w: greedy selection size must be positive, got %d", ErrInvalidConfig, selectionSize)
	}
	g := &Greedy{objective: objective, selectionSize: selectionSize}
	if best != nil {
		g.Add(best)
	}
	return g, nil
}

func (g *Greedy) Add(individual *solver.Individual) bool {
	e := newEntry(g.objective, individual)
	if g.best == nil || compareEntries(e, g.best) < 0 {
		g.best = e
		return true
	}
	return false
}

func (g *Greedy) AddAll(individuals []*solver.Individual) bool {
	improved := false
	for _, ind := range individuals {
		improved = g.Add(ind) || improved
	}
	return improved
}

func (g *Greedy) OnGeneration(statistics *solver.Statistics) {
	g.phase = nextPhase(g.phase, g.best != nil, statistics)
}

func (g *Greedy) Cmp(a, b *solver.Individual) int {
	return Compare(g.objective, a, b)
}

// Select returns the best individual selection size times.
func (g *Greedy) Select() []*solver.Individual {
	if g.best == nil {
		return nil
	}
	out := make([]*solver.Individual, g.selectionSize)
	for i := range out {
		out[i] = g.best.individual
	}
	return out
}

func (g *Greedy) Ranked() []solver.RankedIndividual {
	if g.best == nil {
		return nil
	}
	return []solver.RankedIndividual{{Individual: g.best.individual, Rank: 0}}
}

func (g *Greedy) Size() int {
	if g.best == nil {
		return 0
	}
	return 1
}

func (g *Greedy) SelectionPhase() solver.SelectionPhase { return g.phase }

func (g *Greedy) String() string {
	if g.best == nil {
		return describe("greedy", g.phase, nil)
	}
	return describe("greedy", g.phase, []*entry{g.best})
}
