package mutation

import (
	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// selectorRecreate runs the insertion heuristic with a fixed selector configuration.
type selectorRecreate struct {
	jobSelector    construction.JobSelector
	routeSelector  construction.RouteSelector
	resultSelector construction.ResultSelector
	heuristic      construction.InsertionHeuristic
}

func (r *selectorRecreate) Run(refinement *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	return r.heuristic.Process(ctx, r.jobSelector, r.routeSelector, r.resultSelector, quotaOf(refinement))
}

// RecreateWithCheapest always inserts the cheapest job at its cheapest position.
type RecreateWithCheapest struct {
	selectorRecreate
}

func NewRecreateWithCheapest() *RecreateWithCheapest {
	return &RecreateWithCheapest{selectorRecreate{
		jobSelector:    construction.AllJobSelector{},
		routeSelector:  construction.AllRouteSelector{},
		resultSelector: construction.BestResultSelector{},
	}}
}

// RecreateWithGaps considers only a random prefix of the required jobs on every pass.
type RecreateWithGaps struct {
	selectorRecreate
}

func NewRecreateWithGaps(min int) *RecreateWithGaps {
	return &RecreateWithGaps{selectorRecreate{
		jobSelector:    construction.GapsJobSelector{Min: min},
		routeSelector:  construction.AllRouteSelector{},
		resultSelector: construction.BestResultSelector{},
	}}
}

// Default perturbation parameters.
const (
	DefaultPerturbationProbability = 0.05
	DefaultPerturbationMin         = 0.75
	DefaultPerturbationMax         = 1.25
)

// RecreateWithPerturbation randomizes insertion costs to escape local optima.
type RecreateWithPerturbation struct {
	selectorRecreate
}

// NewRecreateWithPerturbation multiplies the cost of a probability share of insertion
// results, and both sides of every position cost comparison, by a uniform factor in [min, max).
func NewRecreateWithPerturbation(probability, min, max float64, random models.Random) *RecreateWithPerturbation {
	return &RecreateWithPerturbation{selectorRecreate{
		jobSelector:    construction.AllJobSelector{},
		routeSelector:  construction.AllRouteSelector{},
		resultSelector: NewCostPerturbationResultSelector(probability, min, max, random),
	}}
}

func NewRecreateWithPerturbationDefaults(random models.Random) *RecreateWithPerturbation {
	return NewRecreateWithPerturbation(DefaultPerturbationProbability, DefaultPerturbationMin, DefaultPerturbationMax, random)
}

// CostPerturbationResultSelector is a result selector with noisy costs.
type CostPerturbationResultSelector struct {
	probability float64
	min, max    float64
	random      models.Random
}

func NewCostPerturbationResultSelector(probability, min, max float64, random models.Random) *CostPerturbationResultSelector {
	return &CostPerturbationResultSelector{probability: probability, min: min, max: max, random: random}
}

func (s *CostPerturbationResultSelector) SelectInsertion(_ *construction.InsertionContext, left, right construction.InsertionResult) construction.InsertionResult {
	return construction.ChooseBestResult(s.perturb(left), s.perturb(right))
}

func (s *CostPerturbationResultSelector) SelectCost(_ *construction.RouteContext, left, right float64) construction.Either {
	left *= s.random.UniformReal(s.min, s.max)
	right *= s.random.UniformReal(s.min, s.max)
	if left < right {
		return construction.Left
	}
	return construction.Right
}

func (s *CostPerturbationResultSelector) perturb(result construction.InsertionResult) construction.InsertionResult {
	if !s.random.IsHit(s.probability) {
		return result
	}
	success, ok := result.(*construction.InsertionSuccess)
	if !ok {
		return result
	}
	perturbed := *success
	perturbed.Cost *= s.random.UniformReal(s.min, s.max)
	return &perturbed
}

// RecreateWithRegret inserts first the jobs with the largest cost gap between their best
// and second best route.
type RecreateWithRegret struct {
	selectorRecreate
}

func NewRecreateWithRegret() *RecreateWithRegret {
	return &RecreateWithRegret{selectorRecreate{
		jobSelector:    construction.AllJobSelector{},
		routeSelector:  construction.AllRouteSelector{},
		resultSelector: construction.RegretResultSelector{},
	}}
}

// NamedRecreate is a recreate with its name and initial weight.
type NamedRecreate struct {
	Name     string
	Recreate Recreate
	Weight   float64
}

// AdaptiveRecreate picks one of its recreates from an adaptive roulette.
type AdaptiveRecreate struct {
	recreates []Recreate
	weights   *AdaptiveWeights
}

func NewAdaptiveRecreate(recreates []NamedRecreate) *AdaptiveRecreate {
	r := &AdaptiveRecreate{}
	names := make([]string, len(recreates))
	initial := make([]float64, len(recreates))
	for i, nr := range recreates {
		r.recreates = append(r.recreates, nr.Recreate)
		names[i] = nr.Name
		initial[i] = nr.Weight
	}
	r.weights = NewAdaptiveWeights(names, initial)
	return r
}

func (r *AdaptiveRecreate) Run(refinement *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	i := r.weights.Pick(ctx.Random)
	trace(ctx, recreateTraceKey, i)
	return r.recreates[i].Run(refinement, ctx)
}

func (r *AdaptiveRecreate) adaptiveWeights() *AdaptiveWeights { return r.weights }
