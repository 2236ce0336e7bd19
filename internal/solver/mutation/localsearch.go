package mutation

import (
	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// Default local search settings.
const (
	DefaultLocalSearchAttempts    = 32
	DefaultLocalSearchProbability = 0.1
)

const (
	moveTwoOpt = iota
	moveRelocate
	moveCrossExchange
	moveTwoOptStar
)

const improvementEpsilon = 1e-9

// routeCoster is implemented by objectives which price routes independently.
type routeCoster interface {
	RouteCost(route *models.Route) float64
}

// LocalSearch tries random intra and inter route moves and keeps the feasible ones which do
// not increase the cost. 2-opt reverses a segment of one route and relocate moves one job
// within its route. Cross exchange swaps two jobs of different routes, 2-opt* swaps their
// tails. Cost neutral moves are kept on a coin flip. Objectives without route costs leave
// individuals unchanged.
type LocalSearch struct {
	attempts int
	weights  []int
}

func NewLocalSearch(attempts int) *LocalSearch {
	return &LocalSearch{attempts: max(attempts, 1), weights: []int{2, 2, 1, 1}}
}

// Mutate improves a copy of the individual.
func (l *LocalSearch) Mutate(_ *solver.RefinementContext, individual *solver.Individual) *solver.Individual {
	return l.Improve(individual.Copy())
}

// Improve applies moves to ctx in place and returns it.
func (l *LocalSearch) Improve(ctx *construction.InsertionContext) *construction.InsertionContext {
	coster, ok := ctx.Problem.Objective.(routeCoster)
	if !ok || len(ctx.Solution.Routes) == 0 {
		return ctx
	}
	changed := false
	for i := 0; i < l.attempts; i++ {
		var applied bool
		switch ctx.Random.Weighted(l.weights) {
		case moveTwoOpt:
			applied = twoOpt(ctx, coster)
		case moveRelocate:
			applied = relocate(ctx, coster)
		case moveCrossExchange:
			applied = crossExchange(ctx, coster)
		default:
			applied = twoOptStar(ctx, coster)
		}
		changed = changed || applied
	}
	if changed {
		dropEmptyRoutes(ctx)
		ctx.Problem.Constraint.AcceptSolutionState(ctx.Solution)
	}
	return ctx
}

func twoOpt(ctx *construction.InsertionContext, coster routeCoster) bool {
	ri := ctx.Random.UniformInt(0, len(ctx.Solution.Routes)-1)
	rc := ctx.Solution.Routes[ri]
	acts := jobActivities(rc)
	if len(acts) < 2 {
		return false
	}
	i := ctx.Random.UniformInt(0, len(acts)-2)
	k := ctx.Random.UniformInt(i+1, len(acts)-1)
	order := append([]*models.Activity(nil), acts...)
	for a, b := i, k; a < b; a, b = a+1, b-1 {
		order[a], order[b] = order[b], order[a]
	}
	candidate, ok := rebuildRoute(ctx, rc.Route.Actor, order)
	if !ok || !accept(ctx, coster.RouteCost(rc.Route), coster.RouteCost(candidate.Route)) {
		return false
	}
	ctx.Solution.Routes[ri] = candidate
	return true
}

func relocate(ctx *construction.InsertionContext, coster routeCoster) bool {
	ri := ctx.Random.UniformInt(0, len(ctx.Solution.Routes)-1)
	rc := ctx.Solution.Routes[ri]
	acts := jobActivities(rc)
	if len(acts) < 2 {
		return false
	}
	from := ctx.Random.UniformInt(0, len(acts)-1)
	to := ctx.Random.UniformInt(0, len(acts)-2)
	moved := acts[from]
	order := append(append([]*models.Activity(nil), acts[:from]...), acts[from+1:]...)
	order = append(order[:to], append([]*models.Activity{moved}, order[to:]...)...)
	candidate, ok := rebuildRoute(ctx, rc.Route.Actor, order)
	if !ok || !accept(ctx, coster.RouteCost(rc.Route), coster.RouteCost(candidate.Route)) {
		return false
	}
	ctx.Solution.Routes[ri] = candidate
	return true
}

func crossExchange(ctx *construction.InsertionContext, coster routeCoster) bool {
	ai, bi, ok := routePair(ctx)
	if !ok {
		return false
	}
	a, b := ctx.Solution.Routes[ai], ctx.Solution.Routes[bi]
	actsA, actsB := jobActivities(a), jobActivities(b)
	if len(actsA) == 0 || len(actsB) == 0 {
		return false
	}
	i := ctx.Random.UniformInt(0, len(actsA)-1)
	j := ctx.Random.UniformInt(0, len(actsB)-1)
	orderA := append([]*models.Activity(nil), actsA...)
	orderB := append([]*models.Activity(nil), actsB...)
	orderA[i], orderB[j] = actsB[j], actsA[i]
	return replacePair(ctx, coster, ai, bi, orderA, orderB)
}

func twoOptStar(ctx *construction.InsertionContext, coster routeCoster) bool {
	ai, bi, ok := routePair(ctx)
	if !ok {
		return false
	}
	actsA, actsB := jobActivities(ctx.Solution.Routes[ai]), jobActivities(ctx.Solution.Routes[bi])
	i := ctx.Random.UniformInt(0, len(actsA))
	j := ctx.Random.UniformInt(0, len(actsB))
	orderA := append(append([]*models.Activity(nil), actsA[:i]...), actsB[j:]...)
	orderB := append(append([]*models.Activity(nil), actsB[:j]...), actsA[i:]...)
	return replacePair(ctx, coster, ai, bi, orderA, orderB)
}

func routePair(ctx *construction.InsertionContext) (int, int, bool) {
	n := len(ctx.Solution.Routes)
	if n < 2 {
		return 0, 0, false
	}
	a := ctx.Random.UniformInt(0, n-1)
	b := ctx.Random.UniformInt(0, n-2)
	if b >= a {
		b++
	}
	return a, b, true
}

func replacePair(ctx *construction.InsertionContext, coster routeCoster, ai, bi int, orderA, orderB []*models.Activity) bool {
	a, b := ctx.Solution.Routes[ai], ctx.Solution.Routes[bi]
	candidateA, ok := rebuildRoute(ctx, a.Route.Actor, orderA)
	if !ok {
		return false
	}
	candidateB, ok := rebuildRoute(ctx, b.Route.Actor, orderB)
	if !ok {
		return false
	}
	before := coster.RouteCost(a.Route) + coster.RouteCost(b.Route)
	after := coster.RouteCost(candidateA.Route) + coster.RouteCost(candidateB.Route)
	if !accept(ctx, before, after) {
		return false
	}
	ctx.Solution.Routes[ai], ctx.Solution.Routes[bi] = candidateA, candidateB
	return true
}

func accept(ctx *construction.InsertionContext, before, after float64) bool {
	switch {
	case after < before-improvementEpsilon:
		return true
	case after <= before+improvementEpsilon:
		return ctx.Random.IsHeadNotTails()
	default:
		return false
	}
}

// jobActivities returns the job activities of a route in tour order.
func jobActivities(rc *construction.RouteContext) []*models.Activity {
	var out []*models.Activity
	for _, a := range rc.Route.Tour.All() {
		if a.Job != nil {
			out = append(out, a)
		}
	}
	return out
}

// rebuildRoute appends copies of the activities to an empty route of the actor. It fails when
// any of them violates a hard constraint at its new position.
func rebuildRoute(ctx *construction.InsertionContext, actor *models.Actor, activities []*models.Activity) (*construction.RouteContext, bool) {
	pipeline := ctx.Problem.Constraint
	rc := construction.NewRouteContext(actor)
	pipeline.AcceptRouteState(rc)
	for _, act := range activities {
		if v := pipeline.EvaluateHardRoute(ctx.Solution, rc, act.Job); v != nil {
			return nil, false
		}
		tour := rc.Route.Tour
		idx := tour.Legs() - 1
		target := &models.Activity{Place: act.Place, Job: act.Job}
		ac := &construction.ActivityContext{Index: idx, Prev: tour.Get(idx), Target: target, Next: tour.Get(idx + 1)}
		if v := pipeline.EvaluateHardActivity(rc, ac); v != nil {
			return nil, false
		}
		tour.Insert(target, idx+1)
		pipeline.AcceptRouteState(rc)
	}
	return rc, true
}

// dropEmptyRoutes removes routes left without jobs and frees their actors.
func dropEmptyRoutes(ctx *construction.InsertionContext) {
	sol := ctx.Solution
	routes := sol.Routes[:0]
	for _, rc := range sol.Routes {
		if rc.Route.Tour.HasJobs() {
			routes = append(routes, rc)
			continue
		}
		sol.Registry.Free(rc.Route.Actor)
	}
	clear(sol.Routes[len(routes):])
	sol.Routes = routes
}
