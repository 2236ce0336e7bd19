// Package solver holds the contracts shared by the population algorithms, the mutation
// operators and the refinement loop.
package solver

import (
	"fmt"

	"vrpcore/internal/construction"
)

// Individual is a candidate solution.
type Individual = construction.InsertionContext

// SelectionPhase is the stance of a population. Phases are ordered.
type SelectionPhase int

const (
	// Initial means the population is still being built.
	Initial SelectionPhase = iota
	// Exploration means broad sampling of the solution space.
	Exploration
	// Exploitation means narrowing around the best known region.
	Exploitation
)

func (p SelectionPhase) String() string {
	switch p {
	case Initial:
		return "initial"
	case Exploration:
		return "exploration"
	case Exploitation:
		return "exploitation"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// RankedIndividual is an individual with its zero based rank.
type RankedIndividual struct {
	Individual *Individual
	Rank       int
}

// Population keeps candidate solutions. Implementations are not safe for concurrent use:
// the refinement loop is the only writer.
type Population interface {
	fmt.Stringer

	// Add inserts an individual and returns true iff it is now the best known.
	Add(individual *Individual) bool
	// AddAll inserts individuals and returns true iff any of them became the best known.
	AddAll(individuals []*Individual) bool
	// OnGeneration lets the population update bookkeeping and its selection phase.
	OnGeneration(statistics *Statistics)
	// Cmp compares two individuals the way the population ranks them.
	Cmp(a, b *Individual) int
	// Select returns parents for the next generation.
	Select() []*Individual
	// Ranked returns retained individuals, best first.
	Ranked() []RankedIndividual
	Size() int
	SelectionPhase() SelectionPhase
}

// Best returns the best individual of the population or nil.
func Best(p Population) *Individual {
	ranked := p.Ranked()
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0].Individual
}
