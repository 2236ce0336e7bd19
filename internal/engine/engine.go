// Package engine runs the refinement loop: it builds the initial population, then evolves it
// generation by generation until the quota is reached.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"vrpcore/internal/construction"
	"vrpcore/internal/metrics"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
	"vrpcore/internal/solver/mutation"
)

// DefaultMaxGenerations applies when no quota is configured at all.
const DefaultMaxGenerations = 3000

const progressInterval = 100

// ErrInvalidSettings is returned by New for incomplete settings.
var ErrInvalidSettings = errors.New("invalid solver settings")

// Progress describes a finished generation.
type Progress struct {
	RunID               string
	Generation          int
	Improved            bool
	BestCost            models.ObjectiveCost
	Phase               solver.SelectionPhase
	PopulationSize      int
	TerminationEstimate float64
	Elapsed             time.Duration
	Duration            time.Duration
	// OperatorWeights are the adaptive operator weights when the mutation learns.
	OperatorWeights map[string]float64
}

// Observer is called by the coordinating goroutine after every generation.
type Observer func(Progress)

// Settings configure a Solver.
type Settings struct {
	RunID          string
	PopulationName string
	Population     solver.Population
	Mutation       mutation.Mutation
	// Initial recreates build the initial individuals: individual i uses Initial[min(i, len-1)].
	Initial     []mutation.Recreate
	InitialSize int
	// Quota is combined with MaxGenerations, TimeLimit and the context of Solve.
	Quota          construction.Quota
	MaxGenerations int
	TimeLimit      time.Duration
	Parallelism    int
	Random         models.Random
	Observer       Observer
}

// Solver evolves a population of solutions for one problem.
type Solver struct {
	problem    *construction.Problem
	settings   Settings
	refinement *solver.RefinementContext
}

// New validates settings and fills defaults.
func New(problem *construction.Problem, settings Settings) (*Solver, error) {
	switch {
	case problem == nil:
		return nil, fmt.Errorf("%w: problem is required", ErrInvalidSettings)
	case problem.Objective == nil:
		return nil, fmt.Errorf("%w: problem has no objective", ErrInvalidSettings)
	case settings.Population == nil:
		return nil, fmt.Errorf("%w: population is required", ErrInvalidSettings)
	case settings.Mutation == nil:
		return nil, fmt.Errorf("%w: mutation is required", ErrInvalidSettings)
	case settings.Parallelism < 0 || settings.InitialSize < 0 || settings.MaxGenerations < 0:
		return nil, fmt.Errorf("%w: negative size", ErrInvalidSettings)
	}
	if settings.Random == nil {
		settings.Random = models.NewRandom(0)
	}
	if len(settings.Initial) == 0 {
		settings.Initial = []mutation.Recreate{mutation.NewRecreateWithCheapest()}
	}
	if settings.InitialSize == 0 {
		settings.InitialSize = 1
	}
	if settings.Parallelism == 0 {
		settings.Parallelism = 1
	}
	if settings.PopulationName == "" {
		settings.PopulationName = "custom"
	}
	return &Solver{problem: problem, settings: settings}, nil
}

// Statistics returns the statistics of the last Solve call or nil.
func (s *Solver) Statistics() *solver.Statistics {
	if s.refinement == nil {
		return nil
	}
	return s.refinement.Statistics
}

// Population returns the population the solver evolves.
func (s *Solver) Population() solver.Population { return s.settings.Population }

func (s *Solver) quota(ctx context.Context) *solver.CompositeQuota {
	maxGenerations := s.settings.MaxGenerations
	if maxGenerations == 0 && s.settings.TimeLimit == 0 && s.settings.Quota == nil {
		maxGenerations = DefaultMaxGenerations
	}
	var generations, timeLimit construction.Quota
	if maxGenerations > 0 {
		generations = solver.NewGenerationQuota(maxGenerations)
	}
	if s.settings.TimeLimit > 0 {
		timeLimit = solver.NewTimeQuota(s.settings.TimeLimit)
	}
	return solver.NewCompositeQuota(s.settings.Quota, generations, timeLimit, solver.NewContextQuota(ctx))
}

// Solve runs the refinement loop and returns the best solution found. Reaching the quota,
// including cancellation of ctx, ends the run normally.
func (s *Solver) Solve(ctx context.Context) (*models.Solution, error) {
	logger := klog.FromContext(ctx).WithValues("run", s.settings.RunID, "population", s.settings.PopulationName)
	start := time.Now()
	quota := s.quota(ctx)
	refinement := solver.NewRefinementContext(s.problem, s.settings.Population, quota, s.settings.Random)
	s.refinement = refinement

	s.initialize(refinement)
	population := refinement.Population
	logger.V(2).Info("Initial population is built", "size", population.Size(), "elapsed", time.Since(start))

	for !quota.IsReached() {
		generationStart := time.Now()
		parents := population.Select()
		children := make([]*solver.Individual, len(parents))

		var g errgroup.Group
		g.SetLimit(s.settings.Parallelism)
		for i, parent := range parents {
			g.Go(func() error {
				children[i] = s.settings.Mutation.Mutate(refinement, parent)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		previous := solver.Best(population)
		improved := population.AddAll(children)
		s.learn(population, previous, children)
		s.closeGeneration(logger, refinement, quota, improved, start, generationStart)
	}

	best := solver.Best(population)
	if best == nil {
		return nil, errors.New("population is empty")
	}
	solution := best.ToSolution()
	stats := refinement.Statistics
	logger.Info("Solve finished", "generations", stats.Generation, "improvements", stats.Improvements,
		"cost", solution.Cost.Total(), "unassigned", len(solution.Unassigned), "routes", len(solution.Routes), "elapsed", time.Since(start))
	return solution, nil
}

// initialize adds InitialSize individuals. The first one is always completed.
func (s *Solver) initialize(refinement *solver.RefinementContext) {
	unbounded := *refinement
	unbounded.Quota = nil
	for i := 0; i < s.settings.InitialSize; i++ {
		current := refinement
		if i == 0 {
			current = &unbounded
		} else if refinement.Quota.IsReached() {
			break
		}
		recreate := s.settings.Initial[min(i, len(s.settings.Initial)-1)]
		individual := recreate.Run(current, construction.NewInsertionContext(s.problem, s.settings.Random))
		refinement.Population.Add(individual)
	}
}

func (s *Solver) closeGeneration(logger klog.Logger, refinement *solver.RefinementContext, quota *solver.CompositeQuota, improved bool, start, generationStart time.Time) {
	population := refinement.Population
	stats := refinement.Statistics

	quota.OnGeneration(stats.Generation + 1)
	best := solver.Best(population)
	bestCost := s.problem.Objective.Fitness(best)
	stats.Record(improved, bestCost, quota.Estimate(), time.Since(start))
	population.OnGeneration(stats)

	progress := Progress{
		RunID:               s.settings.RunID,
		Generation:          stats.Generation,
		Improved:            improved,
		BestCost:            stats.BestCost,
		Phase:               population.SelectionPhase(),
		PopulationSize:      population.Size(),
		TerminationEstimate: stats.TerminationEstimate,
		Elapsed:             stats.Elapsed,
		Duration:            time.Since(generationStart),
	}
	if learner, ok := s.settings.Mutation.(mutation.Learner); ok {
		progress.OperatorWeights = learner.Weights()
	}
	s.record(progress)

	logger.V(2).Info("Generation is done", "generation", progress.Generation, "improved", improved,
		"cost", progress.BestCost.Total(), "phase", progress.Phase, "duration", progress.Duration)
	if progress.Generation%progressInterval == 0 {
		logger.Info("Refinement progress", "generation", progress.Generation, "cost", progress.BestCost.Total(),
			"improvement1000", stats.Improvement1000Ratio, "estimate", progress.TerminationEstimate, "population", population.String())
	}
	if s.settings.Observer != nil {
		s.settings.Observer(progress)
	}
}

func (s *Solver) record(p Progress) {
	name := s.settings.PopulationName
	metrics.SolverGenerations.WithLabelValues(name).Inc()
	if p.Improved {
		metrics.SolverImprovements.WithLabelValues(name).Inc()
	}
	metrics.SolverGenerationDuration.WithLabelValues(name).Observe(p.Duration.Seconds())
	if p.RunID != "" {
		metrics.SolverBestCost.WithLabelValues(p.RunID).Set(p.BestCost.Total())
		metrics.SolverPopulationSize.WithLabelValues(p.RunID).Set(float64(p.PopulationSize))
		metrics.SolverSelectionPhase.WithLabelValues(p.RunID).Set(float64(p.Phase))
		for operator, w := range p.OperatorWeights {
			metrics.SolverOperatorWeight.WithLabelValues(p.RunID, operator).Set(w)
		}
	}
}

// learn reports to a learning mutation whether each child improved on the best individual
// known before the generation, was retained by the population or was dropped.
func (s *Solver) learn(population solver.Population, previous *solver.Individual, children []*solver.Individual) {
	learner, ok := s.settings.Mutation.(mutation.Learner)
	if !ok {
		return
	}
	retained := make(map[*solver.Individual]struct{}, population.Size())
	for _, ranked := range population.Ranked() {
		retained[ranked.Individual] = struct{}{}
	}
	for _, child := range children {
		outcome := mutation.Rejected
		if _, ok := retained[child]; ok {
			outcome = mutation.Accepted
			if previous == nil || population.Cmp(child, previous) < 0 {
				outcome = mutation.Improved
			}
		}
		learner.Learn(child, outcome)
	}
}
