package construction

import "vrpcore/internal/models"

// Either is the outcome of a cost comparison.
type Either int

const (
	Left Either = iota
	Right
)

// JobSelector picks the required jobs considered in one pass.
type JobSelector interface {
	Select(ctx *InsertionContext) []*models.Job
}

// RouteSelector picks candidate routes for the jobs of one pass.
type RouteSelector interface {
	Select(ctx *InsertionContext, jobs []*models.Job) []*RouteContext
}

// ResultSelector decides between competing insertion results and costs.
type ResultSelector interface {
	SelectInsertion(ctx *InsertionContext, left, right InsertionResult) InsertionResult
	SelectCost(route *RouteContext, left, right float64) Either
}

// AllJobSelector returns every required job in an order shuffled by the individual's random.
type AllJobSelector struct{}

func (AllJobSelector) Select(ctx *InsertionContext) []*models.Job {
	required := ctx.Solution.Required
	ctx.Random.Shuffle(len(required), func(i, j int) { required[i], required[j] = required[j], required[i] })
	return required
}

// GapsJobSelector returns a shuffled random prefix of at least Min required jobs.
type GapsJobSelector struct {
	Min int
}

func (s GapsJobSelector) Select(ctx *InsertionContext) []*models.Job {
	jobs := AllJobSelector{}.Select(ctx)
	if len(jobs) == 0 {
		return jobs
	}
	lower := min(max(s.Min, 1), len(jobs))
	return jobs[:ctx.Random.UniformInt(lower, len(jobs))]
}

// AllRouteSelector returns existing routes plus one new route per free vehicle type.
type AllRouteSelector struct{}

func (AllRouteSelector) Select(ctx *InsertionContext, _ []*models.Job) []*RouteContext {
	routes := make([]*RouteContext, 0, len(ctx.Solution.Routes)+1)
	routes = append(routes, ctx.Solution.Routes...)
	for _, actor := range ctx.Solution.Registry.Next() {
		rc := NewRouteContext(actor)
		ctx.Problem.Constraint.AcceptRouteState(rc)
		routes = append(routes, rc)
	}
	return routes
}

// BestResultSelector picks the cheapest result.
type BestResultSelector struct{}

func (BestResultSelector) SelectInsertion(_ *InsertionContext, left, right InsertionResult) InsertionResult {
	return ChooseBestResult(left, right)
}

func (BestResultSelector) SelectCost(_ *RouteContext, left, right float64) Either {
	if left < right {
		return Left
	}
	return Right
}

// RegretResultSelector inserts first the job which loses most when its best route is taken:
// the one with the largest gap between its best and second best route. Equal regrets and
// positions within a route fall back to the cheapest result.
type RegretResultSelector struct{}

func (RegretResultSelector) SelectInsertion(_ *InsertionContext, left, right InsertionResult) InsertionResult {
	l, lok := left.(*InsertionSuccess)
	r, rok := right.(*InsertionSuccess)
	if lok && rok && l.Regret != r.Regret {
		if r.Regret > l.Regret {
			return r
		}
		return l
	}
	return ChooseBestResult(left, right)
}

func (RegretResultSelector) SelectCost(route *RouteContext, left, right float64) Either {
	return BestResultSelector{}.SelectCost(route, left, right)
}
