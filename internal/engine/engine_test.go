package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpcore/internal/config"
	"vrpcore/internal/construction"
	ct "vrpcore/internal/construction/constructiontest"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
	"vrpcore/internal/solver/mutation"
	"vrpcore/internal/solver/population"
)

func solverConfig(pop string, generations int) config.SolverConfig {
	cfg := config.DefaultSolverConfig()
	cfg.Population = pop
	cfg.MaxGenerations = generations
	cfg.Seed = 42
	return cfg
}

func routeIDs(sol *models.Solution) [][]string {
	out := make([][]string, 0, len(sol.Routes))
	for _, r := range sol.Routes {
		var ids []string
		for _, j := range r.Tour.Jobs() {
			ids = append(ids, j.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestSolveEmptyJobs(t *testing.T) {
	problem := ct.NewProblem(nil, []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")})
	s, err := FromConfig(problem, solverConfig(config.PopulationGreedy, 5), "", nil)
	require.NoError(t, err)

	sol, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sol.Routes)
	assert.Empty(t, sol.Unassigned)
	assert.Equal(t, 0.0, sol.Cost.Total())
}

func TestSolveSingleJob(t *testing.T) {
	problem := ct.NewProblem([]*models.Job{ct.Job("j1", 2)}, []*models.Vehicle{ct.Vehicle("v1")})
	s, err := FromConfig(problem, solverConfig(config.PopulationElitism, 10), "", nil)
	require.NoError(t, err)

	sol, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sol.Unassigned)
	assert.Equal(t, [][]string{{"j1"}}, routeIDs(sol))
	assert.Equal(t, 2*2*ct.Step, sol.Cost.Actual)
	assert.Equal(t, 10, s.Statistics().Generation)
}

func TestSolveReportsCapacityViolation(t *testing.T) {
	problem := ct.NewProblem([]*models.Job{ct.Job("big", 1, ct.WithDemand(20))}, []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2", ct.WithCapacity(15))})
	s, err := FromConfig(problem, solverConfig(config.PopulationRosomaxa, 10), "", nil)
	require.NoError(t, err)

	sol, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sol.Routes)
	require.Len(t, sol.Unassigned, 1)
	assert.Equal(t, "big", sol.Unassigned[0].Job.ID)
	assert.Equal(t, construction.CapacityConstraintCode, sol.Unassigned[0].Code)
	assert.Greater(t, sol.Cost.Penalty, 0.0)
}

func TestFromConfigRejectsInvalidConfiguration(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(4, 4), []*models.Vehicle{ct.Vehicle("v1")})

	cfg := solverConfig(config.PopulationRosomaxa, 10)
	cfg.SelectionSize = 1
	_, err := FromConfig(problem, cfg, "", func(Progress) { t.Fatalf("no generation should run") })
	assert.True(t, errors.Is(err, population.ErrInvalidConfig), "got %v", err)

	cfg = solverConfig("tabu", 10)
	_, err = FromConfig(problem, cfg, "", nil)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)

	_, err = New(problem, Settings{})
	assert.True(t, errors.Is(err, ErrInvalidSettings), "got %v", err)
}

func TestSolveKeepsPhasesMonotonic(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(20, 8), []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2"), ct.Vehicle("v3")})
	cfg := solverConfig(config.PopulationRosomaxa, 40)
	cfg.Parallelism = 4
	cfg.InitialSize = 3

	var progress []Progress
	s, err := FromConfig(problem, cfg, "run-phases", func(p Progress) { progress = append(progress, p) })
	require.NoError(t, err)
	sol, err := s.Solve(context.Background())
	require.NoError(t, err)

	require.Len(t, progress, 40)
	for i, p := range progress {
		assert.Equal(t, i+1, p.Generation)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Phase, progress[i-1].Phase, "phase regressed at generation %d", p.Generation)
			assert.LessOrEqual(t, p.BestCost.Total(), progress[i-1].BestCost.Total())
		}
	}
	assert.Equal(t, solver.Exploitation, progress[len(progress)-1].Phase)
	assert.Empty(t, sol.Unassigned)
	weights := progress[len(progress)-1].OperatorWeights
	assert.Contains(t, weights, "ruin.neighbour")
	assert.Contains(t, weights, "recreate.regret")

	best := solver.Best(s.Population())
	require.NotNil(t, best)
	require.NoError(t, ct.CheckPartition(best))
}

func TestSolveWithCancelledContextReturnsInitialSolution(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(6, 3), []*models.Vehicle{ct.Vehicle("v1")})
	s, err := FromConfig(problem, solverConfig(config.PopulationGreedy, 100), "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := s.Solve(ctx)
	require.NoError(t, err)
	assert.Empty(t, sol.Unassigned)
	assert.Equal(t, 0, s.Statistics().Generation)
}

func TestSolveIsDeterministicWithSingleWorker(t *testing.T) {
	run := func() *models.Solution {
		problem := ct.NewProblem(ct.Jobs(15, 6), []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")})
		s, err := FromConfig(problem, solverConfig(config.PopulationGreedy, 20), "", nil)
		require.NoError(t, err)
		sol, err := s.Solve(context.Background())
		require.NoError(t, err)
		return sol
	}
	first, second := run(), run()
	assert.Equal(t, first.Cost, second.Cost)
	if diff := cmp.Diff(routeIDs(first), routeIDs(second)); diff != "" {
		t.Fatalf("routes differ (-first +second):\n%s", diff)
	}
}

func TestSolveUsesCustomQuota(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(4, 4), []*models.Vehicle{ct.Vehicle("v1")})
	pop, err := population.NewGreedy(problem.Objective, 1, nil)
	require.NoError(t, err)
	quota := solver.NewGenerationQuota(3)
	s, err := New(problem, Settings{Population: pop, Mutation: nopMutation{}, Quota: quota, Random: models.NewRandom(1)})
	require.NoError(t, err)

	_, err = s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.Statistics().Generation)
	assert.Equal(t, 1.0, s.Statistics().TerminationEstimate)
}

type nopMutation struct{}

func (nopMutation) Mutate(_ *solver.RefinementContext, individual *solver.Individual) *solver.Individual {
	return individual.Copy()
}

// learningCopy copies parents and records the outcomes reported for them.
type learningCopy struct {
	nopMutation
	outcomes []mutation.Outcome
}

func (m *learningCopy) Learn(_ *solver.Individual, outcome mutation.Outcome) {
	m.outcomes = append(m.outcomes, outcome)
}

func (m *learningCopy) Weights() map[string]float64 {
	return map[string]float64{"copy": float64(len(m.outcomes))}
}

func TestSolveReportsOutcomesToLearningMutation(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(4, 4), []*models.Vehicle{ct.Vehicle("v1")})
	pop, err := population.NewGreedy(problem.Objective, 2, nil)
	require.NoError(t, err)
	m := &learningCopy{}
	var progress []Progress
	s, err := New(problem, Settings{Population: pop, Mutation: m, MaxGenerations: 5, Random: models.NewRandom(1),
		Observer: func(p Progress) { progress = append(progress, p) }})
	require.NoError(t, err)

	_, err = s.Solve(context.Background())
	require.NoError(t, err)
	require.Len(t, progress, 5)
	require.NotEmpty(t, m.outcomes)
	// copies never beat the best individual they were made from
	assert.NotContains(t, m.outcomes, mutation.Improved)
	assert.Equal(t, float64(len(m.outcomes)), progress[4].OperatorWeights["copy"])
}

func TestNewPopulationUsesPackageDefaults(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(2, 4), []*models.Vehicle{ct.Vehicle("v1")})
	tests := []struct {
		name        string
		population  string
		parallelism int
		selection   int
		want        solver.Population
	}{
		{"default single worker", config.PopulationDefault, 1, 0, &population.Greedy{}},
		{"default parallel", config.PopulationDefault, 4, 0, &population.Rosomaxa{}},
		{"elitism defaults", config.PopulationElitism, 2, 0, &population.Elitism{}},
		{"elitism explicit selection", config.PopulationElitism, 2, 3, &population.Elitism{}},
		{"rosomaxa single worker", config.PopulationRosomaxa, 1, 0, &population.Rosomaxa{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := solverConfig(tt.population, 5)
			cfg.Parallelism = tt.parallelism
			cfg.SelectionSize = tt.selection
			pop, err := newPopulation(problem.Objective, models.NewRandom(1), cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, pop)
		})
	}

	cfg := solverConfig(config.PopulationDefault, 5)
	s, err := FromConfig(problem, cfg, "", nil)
	require.NoError(t, err)
	_, err = s.Solve(context.Background())
	require.NoError(t, err)
}
