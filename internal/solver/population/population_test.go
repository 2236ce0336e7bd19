package population

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// stubObjective reads the cost and route count from the solution state.
type stubObjective struct{}

func (stubObjective) Fitness(ctx *construction.InsertionContext) models.ObjectiveCost {
	return models.NewObjectiveCost(ctx.Solution.State["cost"].(float64), 0)
}

func (stubObjective) FitnessValues(ctx *construction.InsertionContext) []float64 {
	return []float64{ctx.Solution.State["routes"].(float64), ctx.Solution.State["cost"].(float64)}
}

func individual(cost float64) *solver.Individual {
	return individualWithRoutes(cost, 1)
}

func individualWithRoutes(cost, routes float64) *solver.Individual {
	return &construction.InsertionContext{Solution: &construction.SolutionContext{State: map[string]any{"cost": cost, "routes": routes}}}
}

func costs(ranked []solver.RankedIndividual) []float64 {
	out := make([]float64, len(ranked))
	for i, r := range ranked {
		out[i] = r.Individual.Solution.State["cost"].(float64)
	}
	return out
}

func TestGreedyKeepsBest(t *testing.T) {
	g, err := NewGreedy(stubObjective{}, 3, nil)
	require.NoError(t, err)
	assert.Nil(t, g.Select())

	assert.True(t, g.Add(individual(10)))
	assert.False(t, g.Add(individual(10)))
	assert.False(t, g.Add(individual(12)))
	assert.True(t, g.AddAll([]*solver.Individual{individual(11), individual(5)}))
	assert.Equal(t, 1, g.Size())
	assert.Equal(t, []float64{5}, costs(g.Ranked()))

	selected := g.Select()
	require.Len(t, selected, 3)
	assert.Same(t, selected[0], selected[2])

	_, err = NewGreedy(stubObjective{}, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestElitismAddReturnsTrueOnlyForNewBest(t *testing.T) {
	e, err := NewElitism(stubObjective{}, models.NewRandom(1), 3, 2)
	require.NoError(t, err)

	assert.True(t, e.Add(individual(10)))
	assert.False(t, e.Add(individual(12)))
	assert.False(t, e.Add(individual(10)), "same fitness is not better")
	assert.True(t, e.Add(individual(9)))
	assert.False(t, e.AddAll(nil))
	assert.Equal(t, []float64{9, 10, 12}, costs(e.Ranked()))
}

func TestElitismTruncatesToBestDistinct(t *testing.T) {
	random := models.NewRandom(3)
	e, err := NewElitism(stubObjective{}, random, 5, 2)
	require.NoError(t, err)

	var all []float64
	for i := 0; i < 40; i++ {
		c := float64(random.UniformInt(1, 30))
		all = append(all, c)
		e.Add(individual(c))
		assert.LessOrEqual(t, e.Size(), 5)
	}

	distinct := map[float64]bool{}
	var want []float64
	for _, c := range all {
		if !distinct[c] {
			distinct[c] = true
			want = append(want, c)
		}
	}
	sort.Float64s(want)
	assert.Equal(t, want[:5], costs(e.Ranked()))
}

func TestElitismAddAllMatchesSequentialAdd(t *testing.T) {
	values := []float64{7, 3, 9, 3, 1, 8, 2, 2}
	batch, _ := NewElitism(stubObjective{}, models.NewRandom(1), 4, 2)
	sequential, _ := NewElitism(stubObjective{}, models.NewRandom(1), 4, 2)

	var inds []*solver.Individual
	anyBest := false
	for _, v := range values {
		inds = append(inds, individual(v))
	}
	for _, ind := range inds {
		anyBest = sequential.Add(ind) || anyBest
	}
	assert.Equal(t, anyBest, batch.AddAll(inds))
	assert.Equal(t, costs(sequential.Ranked()), costs(batch.Ranked()))
}

func TestElitismTieBreaksOnFitnessValues(t *testing.T) {
	e, _ := NewElitism(stubObjective{}, models.NewRandom(1), 2, 2)
	twoRoutes := individualWithRoutes(10, 2)
	oneRoute := individualWithRoutes(10, 1)
	e.AddAll([]*solver.Individual{twoRoutes, oneRoute})

	ranked := e.Ranked()
	require.Len(t, ranked, 2)
	assert.Same(t, oneRoute, ranked[0].Individual)
	assert.Equal(t, -1, e.Cmp(oneRoute, twoRoutes))
	assert.False(t, IsSameFitness(stubObjective{}, oneRoute, twoRoutes))
}

func TestElitismSelectByPhase(t *testing.T) {
	e, _ := NewElitism(stubObjective{}, models.NewRandom(5), 4, 3)
	e.AddAll([]*solver.Individual{individual(4), individual(2)})
	assert.Len(t, e.Select(), 2, "initial phase selects everyone")

	stats := solver.NewStatistics()
	e.OnGeneration(stats)
	assert.Equal(t, solver.Initial, e.SelectionPhase())

	e.AddAll([]*solver.Individual{individual(3), individual(1), individual(5)})
	e.OnGeneration(stats)
	assert.Equal(t, solver.Exploration, e.SelectionPhase())
	selected := e.Select()
	require.Len(t, selected, 3)
	assert.Equal(t, 1.0, selected[0].Solution.State["cost"])

	stats.TerminationEstimate = 0.95
	e.OnGeneration(stats)
	assert.Equal(t, solver.Exploitation, e.SelectionPhase())
	for _, ind := range e.Select() {
		assert.LessOrEqual(t, ind.Solution.State["cost"].(float64), 2.0)
	}
}

func TestNewRosomaxaRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*RosomaxaConfig){
		"selection size": func(c *RosomaxaConfig) { c.SelectionSize = 1 },
		"elite size":     func(c *RosomaxaConfig) { c.EliteSize = 0 },
		"node size":      func(c *RosomaxaConfig) { c.NodeSize = 0 },
		"spread factor":  func(c *RosomaxaConfig) { c.SpreadFactor = 1 },
		"learning rate":  func(c *RosomaxaConfig) { c.LearningRate = 0 },
		"max nodes":      func(c *RosomaxaConfig) { c.MaxNodes = 3 },
		"rebalance":      func(c *RosomaxaConfig) { c.RebalanceMemory = 0 },
		"exploration":    func(c *RosomaxaConfig) { c.ExplorationRatio = 1.5 },
		"distribution":   func(c *RosomaxaConfig) { c.DistributionFactor = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := NewRosomaxaConfig(4)
			mutate(&config)
			r, err := NewRosomaxa(stubObjective{}, models.NewRandom(1), config)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestRosomaxaPhasesNeverRegress(t *testing.T) {
	random := models.NewRandom(9)
	r, err := NewRosomaxa(stubObjective{}, random, NewRosomaxaConfig(4))
	require.NoError(t, err)

	stats := solver.NewStatistics()
	best := models.NoCost
	prev := r.SelectionPhase()
	for gen := 1; gen <= 200; gen++ {
		var children []*solver.Individual
		for i := 0; i < 3; i++ {
			children = append(children, individualWithRoutes(float64(random.UniformInt(100, 1000)), float64(random.UniformInt(1, 5))))
		}
		improved := r.AddAll(children)
		bestInd := solver.Best(r)
		require.NotNil(t, bestInd)
		cost := bestInd.Solution.State["cost"].(float64)
		assert.LessOrEqual(t, cost, best)
		best = cost

		stats.Record(improved, models.NewObjectiveCost(cost, 0), float64(gen)/200, 0)
		r.OnGeneration(stats)
		assert.GreaterOrEqual(t, r.SelectionPhase(), prev)
		prev = r.SelectionPhase()
		assert.LessOrEqual(t, r.Size(), r.Capacity())

		selected := r.Select()
		assert.NotEmpty(t, selected)
		assert.Same(t, bestInd, selected[0])
	}
	assert.Equal(t, solver.Exploitation, r.SelectionPhase())
}

func TestRosomaxaExplorationSelectsSelectionSize(t *testing.T) {
	random := models.NewRandom(2)
	r, err := NewRosomaxa(stubObjective{}, random, NewRosomaxaConfig(4))
	require.NoError(t, err)
	for i := 0; i < 30; i++ {
		r.Add(individualWithRoutes(float64(random.UniformInt(10, 5000)), float64(random.UniformInt(1, 9))))
	}
	r.OnGeneration(&solver.Statistics{Generation: 1})
	require.Equal(t, solver.Exploration, r.SelectionPhase())
	assert.Len(t, r.Select(), 4)
	assert.Contains(t, r.String(), "rosomaxa[exploration]")
}

func TestRosomaxaPhaseRegressionIsOptIn(t *testing.T) {
	for _, allow := range []bool{false, true} {
		config := NewRosomaxaConfig(2)
		config.AllowPhaseRegression = allow
		r, err := NewRosomaxa(stubObjective{}, models.NewRandom(1), config)
		require.NoError(t, err)
		for i := 1; i <= 4; i++ {
			r.Add(individual(float64(i)))
		}
		r.OnGeneration(&solver.Statistics{Generation: 1})
		require.Equal(t, solver.Exploration, r.SelectionPhase())

		r.OnGeneration(&solver.Statistics{Generation: 1000, Improvement1000Ratio: 0})
		require.Equal(t, solver.Exploitation, r.SelectionPhase())

		r.OnGeneration(&solver.Statistics{Generation: 1001, Improvement1000Ratio: 0.5})
		if allow {
			assert.Equal(t, solver.Exploration, r.SelectionPhase())
		} else {
			assert.Equal(t, solver.Exploitation, r.SelectionPhase())
		}
	}
}

func TestDefaultPopulation(t *testing.T) {
	p, err := DefaultPopulation(stubObjective{}, models.NewRandom(1), 1)
	require.NoError(t, err)
	assert.IsType(t, &Greedy{}, p)

	p, err = DefaultPopulation(stubObjective{}, models.NewRandom(1), 4)
	require.NoError(t, err)
	assert.IsType(t, &Rosomaxa{}, p)

	p, err = NewElitismPopulation(stubObjective{}, models.NewRandom(1), 16)
	require.NoError(t, err)
	assert.IsType(t, &Elitism{}, p)
}

func TestNetworkKeepsInputsOfRetainedIndividualsOnly(t *testing.T) {
	random := models.NewRandom(5)
	initial := []*solver.Individual{individual(10), individual(20), individual(30), individual(40)}
	inputs := [][]float64{{1, 10}, {1, 20}, {2, 30}, {2, 40}}
	config := networkConfig{spreadFactor: 0.25, distributionFactor: 0.25, learningRate: 0.1, maxNodes: 8}
	n := newNetwork(config, initial, inputs, func() *Elitism {
		storage, _ := NewElitism(stubObjective{}, random, 2, 1)
		return storage
	})

	for i := 0; i < 200; i++ {
		cost := float64(random.UniformInt(1, 1000))
		n.store(individual(cost), []float64{float64(random.UniformInt(1, 3)), cost})
		require.Len(t, n.inputs, n.size(), "after store %d", i)
	}
	for _, nd := range n.nodes {
		for _, r := range nd.storage.Ranked() {
			assert.Contains(t, n.inputs, r.Individual)
		}
	}
	n.rebalance()
	assert.Len(t, n.inputs, n.size())
}
