// Package population contains population algorithms which keep and rank individuals.
package population

import (
	"errors"
	"fmt"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// ErrInvalidConfig is returned by constructors for structurally invalid configuration.
var ErrInvalidConfig = errors.New("invalid population configuration")

// exploitationEstimate is the termination estimate after which phases narrow to exploitation.
const exploitationEstimate = 0.8

// entry caches the fitness of a retained individual.
type entry struct {
	individual *solver.Individual
	cost       models.ObjectiveCost
	values     []float64
}

func newEntry(objective construction.Objective, individual *solver.Individual) *entry {
	return &entry{individual: individual, cost: objective.Fitness(individual), values: objective.FitnessValues(individual)}
}

func compareEntries(a, b *entry) int {
	if c := models.CompareFloats(a.cost.Total(), b.cost.Total()); c != 0 {
		return c
	}
	return compareValues(a.values, b.values)
}

func compareValues(a, b []float64) int {
	for i := 0; i < min(len(a), len(b)); i++ {
		if c := models.CompareFloats(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Compare ranks individuals by total cost, then lexicographically by fitness values.
func Compare(objective construction.Objective, a, b *solver.Individual) int {
	return compareEntries(newEntry(objective, a), newEntry(objective, b))
}

// IsSameFitness reports whether both individuals have equal fitness values.
func IsSameFitness(objective construction.Objective, a, b *solver.Individual) bool {
	return compareValues(objective.FitnessValues(a), objective.FitnessValues(b)) == 0
}

// nextPhase advances a phase without ever going back.
func nextPhase(current solver.SelectionPhase, full bool, statistics *solver.Statistics) solver.SelectionPhase {
	switch {
	case current == solver.Initial && full:
		return solver.Exploration
	case current == solver.Exploration && statistics.TerminationEstimate >= exploitationEstimate:
		return solver.Exploitation
	default:
		return current
	}
}

// DefaultSelectionSize returns the amount of parents per generation for the given cpu count.
func DefaultSelectionSize(cpus int) int {
	if cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	return min(cpus, 8)
}

// DefaultPopulation picks Greedy for a single worker and Rosomaxa otherwise.
func DefaultPopulation(objective construction.Objective, random models.Random, cpus int) (solver.Population, error) {
	size := DefaultSelectionSize(cpus)
	if size == 1 {
		return NewGreedy(objective, 1, nil)
	}
	return NewRosomaxa(objective, random, NewRosomaxaConfig(size))
}

// DefaultElitismSize is the archive size of NewElitismPopulation.
const DefaultElitismSize = 4

// NewElitismPopulation creates an elitism population with the default archive size.
func NewElitismPopulation(objective construction.Objective, random models.Random, cpus int) (solver.Population, error) {
	return NewElitism(objective, random, DefaultElitismSize, DefaultSelectionSize(cpus))
}

// describe summarizes entry costs: best, mean and standard deviation.
func describe(name string, phase solver.SelectionPhase, entries []*entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("%s[%s]: empty", name, phase)
	}
	totals := make([]float64, len(entries))
	for i, e := range entries {
		totals[i] = e.cost.Total()
	}
	mean, std := stat.MeanStdDev(totals, nil)
	if len(totals) == 1 {
		std = 0
	}
	return fmt.Sprintf("%s[%s]: size=%d best=%.2f mean=%.2f std=%.2f", name, phase, len(entries), floats.Min(totals), mean, std)
}
