package mutation

import (
	"sync"

	"gonum.org/v1/gonum/floats"

	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// Outcome is what happened to a child once the population saw it.
type Outcome int

const (
	// Rejected children were not retained by the population.
	Rejected Outcome = iota
	// Accepted children were retained without improving the best known individual.
	Accepted
	// Improved children became the best known individual.
	Improved
)

func (o Outcome) String() string {
	switch o {
	case Improved:
		return "improved"
	case Accepted:
		return "accepted"
	default:
		return "rejected"
	}
}

// Learner is a mutation which adapts its operator choice to the outcome of its children.
type Learner interface {
	// Learn is called by the refinement loop once per child, after the population added it.
	Learn(child *solver.Individual, outcome Outcome)
	// Weights returns the current operator weights by operator name.
	Weights() map[string]float64
}

// Weight updates of the operator roulette.
const (
	RewardImproved = 0.1
	RewardAccepted = 0.01
	DecayRejected  = 0.999
	MinWeight      = 0.01
)

// AdaptiveWeights is a roulette wheel over named operators. Operators whose children improve
// or join the population gain weight, the others slowly decay towards MinWeight.
// It is safe for concurrent use.
type AdaptiveWeights struct {
	mu      sync.Mutex
	names   []string
	weights []float64
}

// NewAdaptiveWeights normalizes the initial weights so they sum to one.
func NewAdaptiveWeights(names []string, initial []float64) *AdaptiveWeights {
	total := 0.0
	for _, w := range initial {
		total += max(w, 0)
	}
	weights := make([]float64, len(initial))
	for i, w := range initial {
		if total > 0 {
			weights[i] = max(max(w, 0)/total, MinWeight)
		} else {
			weights[i] = 1 / float64(len(initial))
		}
	}
	return &AdaptiveWeights{names: names, weights: weights}
}

// Pick returns an operator index chosen proportionally to the current weights.
func (a *AdaptiveWeights) Pick(random models.Random) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	r := random.UniformReal(0, floats.Sum(a.weights))
	acc := 0.0
	for i, w := range a.weights {
		acc += w
		if r < acc {
			return i
		}
	}
	return len(a.weights) - 1
}

// Reward updates the weight of operator i for the outcome of one of its children.
func (a *AdaptiveWeights) Reward(i int, outcome Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.weights) {
		return
	}
	switch outcome {
	case Improved:
		a.weights[i] += RewardImproved
	case Accepted:
		a.weights[i] += RewardAccepted
	default:
		a.weights[i] = max(MinWeight, a.weights[i]*DecayRejected)
	}
}

// Snapshot returns the weights by operator name, prefixed.
func (a *AdaptiveWeights) Snapshot(prefix string) map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]float64, len(a.weights))
	for i, w := range a.weights {
		out[prefix+a.names[i]] = w
	}
	return out
}

// State keys under which a child remembers the operators which produced it.
const (
	ruinTraceKey     = "mutation.ruin"
	recreateTraceKey = "mutation.recreate"
)

func trace(ctx *solver.Individual, key string, operator int) {
	ctx.Solution.State[key] = operator
}

func traced(ctx *solver.Individual, key string) (int, bool) {
	i, ok := ctx.Solution.State[key].(int)
	return i, ok
}
