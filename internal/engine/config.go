package engine

import (
	"cmp"
	"fmt"

	"vrpcore/internal/config"
	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
	"vrpcore/internal/solver/mutation"
	"vrpcore/internal/solver/population"
)

// FromConfig builds a Solver from configuration. Invalid configuration, including a
// population which rejects its settings, is reported here before any generation runs.
func FromConfig(problem *construction.Problem, cfg config.SolverConfig, runID string, observer Observer) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if problem == nil || problem.Objective == nil {
		return nil, fmt.Errorf("%w: problem with objective is required", ErrInvalidSettings)
	}
	random := models.NewRandom(cfg.Seed)

	pop, err := newPopulation(problem.Objective, random, cfg)
	if err != nil {
		return nil, fmt.Errorf("population %s: %w", cfg.Population, err)
	}

	p := cfg.Perturbation
	perturbation := mutation.NewRecreateWithPerturbation(p.Probability, p.Min, p.Max, random)
	return New(problem, Settings{
		RunID:          runID,
		PopulationName: cfg.Population,
		Population:     pop,
		Mutation:       mutation.NewDefaultMutationWith(perturbation),
		Initial:        []mutation.Recreate{mutation.NewRecreateWithCheapest(), perturbation},
		InitialSize:    cfg.InitialSize,
		MaxGenerations: cfg.MaxGenerations,
		TimeLimit:      cfg.TimeLimit,
		Parallelism:    cfg.Parallelism,
		Random:         random,
		Observer:       observer,
	})
}

// newPopulation builds the configured population. Without an explicit selection size the
// defaults of the population package apply.
func newPopulation(objective construction.Objective, random models.Random, cfg config.SolverConfig) (solver.Population, error) {
	defaults := cfg.SelectionSize == 0
	selection := cfg.SelectionSize
	if defaults {
		selection = population.DefaultSelectionSize(cfg.Parallelism)
	}
	switch cfg.Population {
	case config.PopulationDefault:
		return population.DefaultPopulation(objective, random, cmp.Or(cfg.SelectionSize, cfg.Parallelism))
	case config.PopulationGreedy:
		return population.NewGreedy(objective, selection, nil)
	case config.PopulationElitism:
		if defaults && cfg.ElitismMaxSize == population.DefaultElitismSize {
			return population.NewElitismPopulation(objective, random, cfg.Parallelism)
		}
		return population.NewElitism(objective, random, cfg.ElitismMaxSize, selection)
	default:
		if defaults {
			selection = max(selection, 2)
		}
		return population.NewRosomaxa(objective, random, rosomaxaConfig(selection, cfg.Rosomaxa))
	}
}

// rosomaxaConfig overlays the non-zero configured values on the defaults.
func rosomaxaConfig(selection int, c config.RosomaxaConfig) population.RosomaxaConfig {
	rc := population.NewRosomaxaConfig(selection)
	setInt(&rc.EliteSize, c.EliteSize)
	setInt(&rc.NodeSize, c.NodeSize)
	setInt(&rc.RebalanceMemory, c.RebalanceMemory)
	setInt(&rc.MaxNodes, c.MaxNodes)
	setFloat(&rc.SpreadFactor, c.SpreadFactor)
	setFloat(&rc.DistributionFactor, c.DistributionFactor)
	setFloat(&rc.LearningRate, c.LearningRate)
	setFloat(&rc.ExplorationRatio, c.ExplorationRatio)
	rc.AllowPhaseRegression = c.AllowPhaseRegression
	return rc
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
