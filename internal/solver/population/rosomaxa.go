package population

import (
	"fmt"
	"math"
	"sort"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

const (
	// plateauGenerations is the minimum run length before a plateau can be detected.
	plateauGenerations = 1000
	plateauRatio       = 0.01
)

// RosomaxaConfig configures the Rosomaxa population.
type RosomaxaConfig struct {
	// SelectionSize is the amount of parents per generation, at least 2.
	SelectionSize int
	// EliteSize is the size of the archive of best individuals.
	EliteSize int
	// NodeSize is the size of the archive kept by every network node.
	NodeSize int
	// SpreadFactor in (0, 1) controls how eagerly the network grows: lower grows slower.
	SpreadFactor float64
	// DistributionFactor spreads accumulated error to neighbours of a node which cannot grow.
	DistributionFactor float64
	LearningRate       float64
	// RebalanceMemory is the amount of generations between network rebalances.
	RebalanceMemory int
	MaxNodes        int
	// ExplorationRatio is the termination estimate at which exploitation starts.
	ExplorationRatio float64
	// AllowPhaseRegression lets exploitation go back to exploration when improvements resume.
	AllowPhaseRegression bool
}

// NewRosomaxaConfig returns defaults for the given selection size.
func NewRosomaxaConfig(selectionSize int) RosomaxaConfig {
	return RosomaxaConfig{
		SelectionSize:      selectionSize,
		EliteSize:          2,
		NodeSize:           2,
		SpreadFactor:       0.25,
		DistributionFactor: 0.25,
		LearningRate:       0.1,
		RebalanceMemory:    100,
		MaxNodes:           64,
		ExplorationRatio:   0.9,
	}
}

func (c RosomaxaConfig) validate() error {
	switch {
	case c.SelectionSize < 2:
		return fmt.Errorf("%w: rosomaxa selection size must be at least 2, got %d", ErrInvalidConfig, c.SelectionSize)
	case c.EliteSize < 1:
		return fmt.Errorf("%w: rosomaxa elite size must be positive, got %d", ErrInvalidConfig, c.EliteSize)
	case c.NodeSize < 1:
		return fmt.Errorf("%w: rosomaxa node size must be positive, got %d", ErrInvalidConfig, c.NodeSize)
	case c.SpreadFactor <= 0 || c.SpreadFactor >= 1:
		return fmt.Errorf("%w: rosomaxa spread factor must be in (0, 1), got %g", ErrInvalidConfig, c.SpreadFactor)
	case c.DistributionFactor <= 0 || c.DistributionFactor > 1:
		return fmt.Errorf("%w: rosomaxa distribution factor must be in (0, 1], got %g", ErrInvalidConfig, c.DistributionFactor)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("%w: rosomaxa learning rate must be in (0, 1], got %g", ErrInvalidConfig, c.LearningRate)
	case c.RebalanceMemory < 1:
		return fmt.Errorf("%w: rosomaxa rebalance memory must be positive, got %d", ErrInvalidConfig, c.RebalanceMemory)
	case c.MaxNodes < minNodes:
		return fmt.Errorf("%w: rosomaxa needs at least %d nodes, got %d", ErrInvalidConfig, minNodes, c.MaxNodes)
	case c.ExplorationRatio < 0 || c.ExplorationRatio > 1:
		return fmt.Errorf("%w: rosomaxa exploration ratio must be in [0, 1], got %g", ErrInvalidConfig, c.ExplorationRatio)
	}
	return nil
}

// Rosomaxa keeps an elite archive plus a growing self-organizing map of small archives over
// the fitness space. While exploring, parents are drawn from different map regions; when
// exploiting, from the elite only.
type Rosomaxa struct {
	objective construction.Objective
	random    models.Random
	config    RosomaxaConfig
	elite     *Elitism
	initial   []*solver.Individual
	network   *network
	phase     solver.SelectionPhase
}

// NewRosomaxa validates the configuration and creates the population.
func NewRosomaxa(objective construction.Objective, random models.Random, config RosomaxaConfig) (*Rosomaxa, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	elite, err := NewElitism(objective, random, config.EliteSize, config.SelectionSize)
	if err != nil {
		return nil, err
	}
	return &Rosomaxa{objective: objective, random: random, config: config, elite: elite}, nil
}

func (r *Rosomaxa) Add(individual *solver.Individual) bool {
	isBest := r.elite.Add(individual)
	if r.network == nil {
		r.initial = append(r.initial, individual)
		if len(r.initial) >= minNodes {
			r.buildNetwork()
		}
		return isBest
	}
	r.network.store(individual, r.input(individual))
	return isBest
}

func (r *Rosomaxa) AddAll(individuals []*solver.Individual) bool {
	improved := false
	for _, ind := range individuals {
		improved = r.Add(ind) || improved
	}
	return improved
}

func (r *Rosomaxa) buildNetwork() {
	inputs := make([][]float64, len(r.initial))
	for i, ind := range r.initial {
		inputs[i] = r.input(ind)
	}
	config := networkConfig{
		spreadFactor:       r.config.SpreadFactor,
		distributionFactor: r.config.DistributionFactor,
		learningRate:       r.config.LearningRate,
		maxNodes:           r.config.MaxNodes,
	}
	r.network = newNetwork(config, r.initial, inputs, func() *Elitism {
		storage, _ := NewElitism(r.objective, r.random, r.config.NodeSize, 1)
		return storage
	})
	r.initial = nil
}

// input maps fitness values to the network space.
func (r *Rosomaxa) input(individual *solver.Individual) []float64 {
	values := r.objective.FitnessValues(individual)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log1p(math.Max(v, 0))
	}
	return out
}

func (r *Rosomaxa) OnGeneration(statistics *solver.Statistics) {
	if r.network != nil && statistics.Generation > 0 && statistics.Generation%r.config.RebalanceMemory == 0 {
		r.network.rebalance()
	}

	plateau := statistics.Generation >= plateauGenerations && statistics.Improvement1000Ratio < plateauRatio
	exploit := statistics.TerminationEstimate >= r.config.ExplorationRatio || plateau

	switch r.phase {
	case solver.Initial:
		if r.network != nil {
			r.phase = solver.Exploration
		}
	case solver.Exploration:
		if exploit {
			r.phase = solver.Exploitation
		}
	case solver.Exploitation:
		if r.config.AllowPhaseRegression && !exploit {
			r.phase = solver.Exploration
		}
	}
}

func (r *Rosomaxa) Cmp(a, b *solver.Individual) int {
	return Compare(r.objective, a, b)
}

func (r *Rosomaxa) Select() []*solver.Individual {
	switch r.phase {
	case solver.Initial:
		out := []*solver.Individual{}
		if best := r.elite.best(); best != nil {
			out = append(out, best.individual)
		}
		for _, ind := range r.initial {
			if len(out) == 0 || ind != out[0] {
				out = append(out, ind)
			}
		}
		return out
	case solver.Exploration:
		return r.selectExploration()
	default:
		return r.elite.sample(r.config.SelectionSize, r.elite.Size())
	}
}

// selectExploration takes the elite best and then one random individual from each of
// randomly ordered network nodes.
func (r *Rosomaxa) selectExploration() []*solver.Individual {
	best := r.elite.best()
	if best == nil {
		return nil
	}
	out := []*solver.Individual{best.individual}
	if r.network != nil {
		nodes := r.network.occupied()
		r.random.Shuffle(len(nodes), func(i, j int) { nodes[i], nodes[j] = nodes[j], nodes[i] })
		for _, nd := range nodes {
			if len(out) >= r.config.SelectionSize {
				break
			}
			entries := nd.storage.entries
			out = append(out, entries[r.random.UniformInt(0, len(entries)-1)].individual)
		}
	}
	if len(out) < r.config.SelectionSize {
		out = append(out, r.elite.sample(r.config.SelectionSize-len(out)+1, r.elite.Size())[1:]...)
	}
	return out
}

// Ranked returns distinct individuals of the elite, the network and the initial buffer.
func (r *Rosomaxa) Ranked() []solver.RankedIndividual {
	entries := r.retained()
	out := make([]solver.RankedIndividual, len(entries))
	for i, e := range entries {
		out[i] = solver.RankedIndividual{Individual: e.individual, Rank: i}
	}
	return out
}

func (r *Rosomaxa) retained() []*entry {
	all := append([]*entry(nil), r.elite.entries...)
	if r.network != nil {
		all = append(all, r.network.entries()...)
	}
	for _, ind := range r.initial {
		all = append(all, newEntry(r.objective, ind))
	}
	sort.SliceStable(all, func(i, j int) bool { return compareEntries(all[i], all[j]) < 0 })

	seen := map[*solver.Individual]bool{}
	out := all[:0]
	for _, e := range all {
		if seen[e.individual] {
			continue
		}
		seen[e.individual] = true
		out = append(out, e)
	}
	return out
}

func (r *Rosomaxa) Size() int { return len(r.retained()) }

// Capacity is the upper bound of Size.
func (r *Rosomaxa) Capacity() int {
	return r.config.EliteSize + r.config.MaxNodes*r.config.NodeSize
}

func (r *Rosomaxa) SelectionPhase() solver.SelectionPhase { return r.phase }

func (r *Rosomaxa) String() string {
	s := describe("rosomaxa", r.phase, r.retained())
	if r.network != nil {
		s += " network: " + r.network.String()
	}
	return s
}
