package construction

import (
	"sort"

	"vrpcore/internal/models"
)

// RouteContext is a route with its cached state.
type RouteContext struct {
	Route *models.Route
	State *RouteState
	stale bool
}

// NewRouteContext creates an empty route for the actor.
func NewRouteContext(actor *models.Actor) *RouteContext {
	return &RouteContext{Route: models.NewRoute(actor), State: NewRouteState(), stale: true}
}

// MarkStale flags the route state for recomputation.
func (rc *RouteContext) MarkStale() { rc.stale = true }

func (rc *RouteContext) IsStale() bool { return rc.stale }

func (rc *RouteContext) Copy() *RouteContext {
	return &RouteContext{Route: rc.Route.Copy(), State: rc.State.Copy(), stale: rc.stale}
}

// SolutionContext is the solution-in-progress of an individual. Every job of the problem is
// in exactly one of required, ignored, unassigned, locked or placed-but-not-locked.
type SolutionContext struct {
	Required   []*models.Job
	Ignored    []*models.Job
	Unassigned map[*models.Job]int
	// Locked contains placed jobs which must stay where they are.
	Locked   map[*models.Job]struct{}
	Routes   []*RouteContext
	Registry *models.Registry
	State    map[string]any
}

// RouteIndex returns the index of the route context or -1.
func (s *SolutionContext) RouteIndex(rc *RouteContext) int {
	for i, r := range s.Routes {
		if r == rc {
			return i
		}
	}
	return -1
}

// RouteOf returns the route serving the job.
func (s *SolutionContext) RouteOf(job *models.Job) (*RouteContext, bool) {
	for _, r := range s.Routes {
		if r.Route.Tour.Contains(job) {
			return r, true
		}
	}
	return nil, false
}

// RemoveRequired drops the job from the required list.
func (s *SolutionContext) RemoveRequired(job *models.Job) bool {
	for i, j := range s.Required {
		if j == job {
			s.Required = append(s.Required[:i], s.Required[i+1:]...)
			return true
		}
	}
	return false
}

// PlacedCount returns the amount of jobs served by routes.
func (s *SolutionContext) PlacedCount() int {
	n := 0
	for _, r := range s.Routes {
		n += r.Route.Tour.JobCount()
	}
	return n
}

func (s *SolutionContext) Copy() *SolutionContext {
	c := &SolutionContext{
		Required:   append([]*models.Job(nil), s.Required...),
		Ignored:    append([]*models.Job(nil), s.Ignored...),
		Unassigned: make(map[*models.Job]int, len(s.Unassigned)),
		Locked:     make(map[*models.Job]struct{}, len(s.Locked)),
		Routes:     make([]*RouteContext, len(s.Routes)),
		Registry:   s.Registry.Copy(),
		State:      make(map[string]any, len(s.State)),
	}
	for j, code := range s.Unassigned {
		c.Unassigned[j] = code
	}
	for j := range s.Locked {
		c.Locked[j] = struct{}{}
	}
	for i, r := range s.Routes {
		c.Routes[i] = r.Copy()
	}
	for k, v := range s.State {
		c.State[k] = v
	}
	return c
}

// InsertionContext is an individual: a solution in progress with the problem it solves and
// its own random source.
type InsertionContext struct {
	Problem  *Problem
	Solution *SolutionContext
	Random   models.Random
}

// NewInsertionContext creates an individual with every job required and no routes.
func NewInsertionContext(problem *Problem, random models.Random) *InsertionContext {
	sol := &SolutionContext{
		Required:   append([]*models.Job(nil), problem.Jobs.All()...),
		Unassigned: map[*models.Job]int{},
		Locked:     map[*models.Job]struct{}{},
		Registry:   models.NewRegistry(problem.Fleet),
		State:      map[string]any{},
	}
	return &InsertionContext{Problem: problem, Solution: sol, Random: random}
}

// Copy deep-copies the solution. Problem and Random are shared.
func (ctx *InsertionContext) Copy() *InsertionContext {
	return &InsertionContext{Problem: ctx.Problem, Solution: ctx.Solution.Copy(), Random: ctx.Random}
}

// UnassignedCount counts unassigned and still required jobs.
func (ctx *InsertionContext) UnassignedCount() int {
	return len(ctx.Solution.Unassigned) + len(ctx.Solution.Required)
}

// ToSolution extracts the external solution. Jobs which are still required are reported as
// unassigned with code zero.
func (ctx *InsertionContext) ToSolution() *models.Solution {
	sol := &models.Solution{Ignored: append([]*models.Job(nil), ctx.Solution.Ignored...)}
	for _, r := range ctx.Solution.Routes {
		if r.Route.Tour.HasJobs() {
			sol.Routes = append(sol.Routes, r.Route.Copy())
		}
	}
	for j, code := range ctx.Solution.Unassigned {
		sol.Unassigned = append(sol.Unassigned, models.UnassignedJob{Job: j, Code: code})
	}
	for _, j := range ctx.Solution.Required {
		sol.Unassigned = append(sol.Unassigned, models.UnassignedJob{Job: j})
	}
	sort.Slice(sol.Unassigned, func(i, k int) bool { return sol.Unassigned[i].Job.ID < sol.Unassigned[k].Job.ID })
	if ctx.Problem.Objective != nil {
		sol.Cost = ctx.Problem.Objective.Fitness(ctx)
	}
	return sol
}
