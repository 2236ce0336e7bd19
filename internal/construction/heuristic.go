package construction

import (
	"k8s.io/klog/v2"

	"vrpcore/internal/models"
)

// InsertionHeuristic rebuilds a solution by committing the best placement one job at a time.
type InsertionHeuristic struct{}

// Process inserts required jobs until none are left or the quota is reached. Jobs which
// cannot be placed end up unassigned with the code of their last violation.
func (h *InsertionHeuristic) Process(ctx *InsertionContext, jobSelector JobSelector, routeSelector RouteSelector, resultSelector ResultSelector, quota Quota) *InsertionContext {
	prepareInsertionContext(ctx)

	for len(ctx.Solution.Required) > 0 && !isQuotaReached(quota) {
		jobs := jobSelector.Select(ctx)
		if len(jobs) == 0 {
			break
		}
		routes := routeSelector.Select(ctx, jobs)

		var result InsertionResult
		failures := make([]*InsertionFailure, 0, len(jobs))
		for _, job := range jobs {
			r := evaluateJobInsertion(ctx, job, routes, resultSelector)
			if f, ok := r.(*InsertionFailure); ok {
				failures = append(failures, f)
			}
			if result == nil {
				result = r
			} else {
				result = resultSelector.SelectInsertion(ctx, result, r)
			}
		}

		if success, ok := result.(*InsertionSuccess); ok {
			applyInsertionSuccess(ctx, success)
		} else {
			for _, f := range failures {
				ctx.Solution.RemoveRequired(f.Job)
				ctx.Solution.Unassigned[f.Job] = f.Code
				klog.V(4).InfoS("Job is unassigned", "job", f.Job.ID, "code", f.Code)
			}
		}
	}

	finalizeInsertionContext(ctx)
	return ctx
}

// prepareInsertionContext moves unassigned jobs back to required in a stable order.
func prepareInsertionContext(ctx *InsertionContext) {
	sol := ctx.Solution
	if len(sol.Unassigned) > 0 {
		jobs := make([]*models.Job, 0, len(sol.Unassigned))
		for j := range sol.Unassigned {
			jobs = append(jobs, j)
		}
		models.SortJobs(jobs)
		sol.Required = append(sol.Required, jobs...)
		clear(sol.Unassigned)
	}
	ctx.Problem.Constraint.AcceptSolutionState(sol)
}

func applyInsertionSuccess(ctx *InsertionContext, success *InsertionSuccess) {
	sol := ctx.Solution
	idx := sol.RouteIndex(success.Context)
	if idx < 0 {
		sol.Registry.Use(success.Context.Route.Actor)
		sol.Routes = append(sol.Routes, success.Context)
		idx = len(sol.Routes) - 1
	}
	for _, p := range success.Activities {
		success.Context.Route.Tour.Insert(p.Activity, p.Index)
	}
	sol.RemoveRequired(success.Job)
	ctx.Problem.Constraint.AcceptInsertion(sol, idx, success.Job)
}

// finalizeInsertionContext drops empty routes and returns their actors to the registry.
func finalizeInsertionContext(ctx *InsertionContext) {
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
	ctx.Problem.Constraint.AcceptSolutionState(sol)
}
