package construction

import (
	"math"

	"vrpcore/internal/models"
)

// evaluateJobInsertion reduces the insertion results of a job over the candidate routes and
// records the regret of the selected one.
func evaluateJobInsertion(ctx *InsertionContext, job *models.Job, routes []*RouteContext, selector ResultSelector) InsertionResult {
	var result InsertionResult = &InsertionFailure{Code: NoRouteConstraintCode, Job: job}
	best, second := math.Inf(1), math.Inf(1)
	for _, rc := range routes {
		r := evaluateJobInsertionInRoute(ctx, rc, job, selector)
		if s, ok := r.(*InsertionSuccess); ok {
			switch {
			case s.Cost < best:
				best, second = s.Cost, best
			case s.Cost < second:
				second = s.Cost
			}
		}
		result = selector.SelectInsertion(ctx, result, r)
	}
	if s, ok := result.(*InsertionSuccess); ok {
		s.Regret = second - best
	}
	return result
}

// evaluateJobInsertionInRoute finds the best position of the job in one route. Every time
// window of the job is tried as an alternative.
func evaluateJobInsertionInRoute(ctx *InsertionContext, rc *RouteContext, job *models.Job, selector ResultSelector) InsertionResult {
	pipeline := ctx.Problem.Constraint
	if v := pipeline.EvaluateHardRoute(ctx.Solution, rc, job); v != nil {
		return &InsertionFailure{Code: v.Code, Job: job}
	}
	routeCost := pipeline.EvaluateSoftRoute(ctx.Solution, rc, job)

	tour := rc.Route.Tour
	code := NoRouteConstraintCode
	bestCost := models.NoCost
	var best *InsertionSuccess
	for _, tw := range job.TimeWindows() {
		target := &models.Activity{
			Place: models.ActivityPlace{Location: job.Place.Location, Duration: job.Place.Duration, TimeWindow: tw},
			Job:   job,
		}
		for idx := 0; idx < tour.Legs(); idx++ {
			ac := &ActivityContext{Index: idx, Prev: tour.Get(idx), Target: target, Next: tour.Get(idx + 1)}
			if v := pipeline.EvaluateHardActivity(rc, ac); v != nil {
				code = v.Code
				if v.Stopped {
					break
				}
				continue
			}
			cost := routeCost + pipeline.EvaluateSoftActivity(rc, ac)
			if best == nil || selector.SelectCost(rc, cost, bestCost) == Left {
				bestCost = cost
				best = &InsertionSuccess{
					Cost:       cost,
					Job:        job,
					Activities: []Placement{{Activity: target.Copy(), Index: idx + 1}},
					Context:    rc,
				}
			}
		}
	}
	if best == nil {
		return &InsertionFailure{Code: code, Job: job}
	}
	return best
}
