package population

import (
	"fmt"
	"sort"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// Elitism keeps up to a fixed amount of the best distinct individuals.
type Elitism struct {
	objective     construction.Objective
	random        models.Random
	maxSize       int
	selectionSize int
	entries       []*entry
	phase         solver.SelectionPhase
}

func NewElitism(objective construction.Objective, random models.Random, maxPopulationSize, selectionSize int) (*Elitism, error) {
	if maxPopulationSize < 1 {
		return nil, fmt.Errorf("%w: elitism size must be positive, got %d", ErrInvalidConfig, maxPopulationSize)
	}
	if selectionSize < 1 {
		return nil, fmt.Errorf("%w: elitism selection size must be positive, got %d", ErrInvalidConfig, selectionSize)
	}
	return &Elitism{objective: objective, random: random, maxSize: maxPopulationSize, selectionSize: selectionSize}, nil
}

func (e *Elitism) Add(individual *solver.Individual) bool {
	return e.AddAll([]*solver.Individual{individual})
}

// AddAll merges individuals, sorts, drops individuals with the same fitness as a better or
// older one and truncates to the archive size.
func (e *Elitism) AddAll(individuals []*solver.Individual) bool {
	if len(individuals) == 0 {
		return false
	}
	added := make([]*entry, 0, len(individuals))
	for _, ind := range individuals {
		added = append(added, newEntry(e.objective, ind))
	}
	return e.addEntries(added)
}

func (e *Elitism) addEntries(added []*entry) bool {
	var prevBest *entry
	if len(e.entries) > 0 {
		prevBest = e.entries[0]
	}

	merged := append(append(make([]*entry, 0, len(e.entries)+len(added)), e.entries...), added...)
	sort.SliceStable(merged, func(i, j int) bool { return compareEntries(merged[i], merged[j]) < 0 })

	kept := merged[:0]
	for _, en := range merged {
		if len(kept) > 0 && compareValues(kept[len(kept)-1].values, en.values) == 0 {
			continue
		}
		kept = append(kept, en)
		if len(kept) == e.maxSize {
			break
		}
	}
	e.entries = append([]*entry(nil), kept...)

	return prevBest == nil || compareEntries(e.entries[0], prevBest) < 0
}

// OnGeneration moves from Initial to Exploration once the archive is full, and to
// Exploitation when the run nears its quota.
func (e *Elitism) OnGeneration(statistics *solver.Statistics) {
	e.phase = nextPhase(e.phase, len(e.entries) >= e.maxSize, statistics)
}

func (e *Elitism) Cmp(a, b *solver.Individual) int {
	return Compare(e.objective, a, b)
}

// Select returns every individual in the initial phase, otherwise the best one followed by
// random picks: from the whole archive when exploring and from its better half when exploiting.
func (e *Elitism) Select() []*solver.Individual {
	switch e.phase {
	case solver.Initial:
		out := make([]*solver.Individual, len(e.entries))
		for i, en := range e.entries {
			out[i] = en.individual
		}
		return out
	case solver.Exploitation:
		return e.sample(e.selectionSize, max(1, (len(e.entries)+1)/2))
	default:
		return e.sample(e.selectionSize, len(e.entries))
	}
}

// sample returns the best individual and n-1 uniform picks among the first pool entries.
func (e *Elitism) sample(n, pool int) []*solver.Individual {
	if len(e.entries) == 0 || n < 1 {
		return nil
	}
	pool = min(pool, len(e.entries))
	out := make([]*solver.Individual, 0, n)
	out = append(out, e.entries[0].individual)
	for len(out) < n {
		out = append(out, e.entries[e.random.UniformInt(0, pool-1)].individual)
	}
	return out
}

func (e *Elitism) Ranked() []solver.RankedIndividual {
	out := make([]solver.RankedIndividual, len(e.entries))
	for i, en := range e.entries {
		out[i] = solver.RankedIndividual{Individual: en.individual, Rank: i}
	}
	return out
}

func (e *Elitism) Size() int { return len(e.entries) }

func (e *Elitism) SelectionPhase() solver.SelectionPhase { return e.phase }

func (e *Elitism) String() string {
	return describe("elitism", e.phase, e.entries)
}

// best returns the best entry or nil.
func (e *Elitism) best() *entry {
	if len(e.entries) == 0 {
		return nil
	}
	return e.entries[0]
}

func (e *Elitism) clear() {
	e.entries = nil
}
