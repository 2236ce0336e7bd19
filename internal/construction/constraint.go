package construction

import "vrpcore/internal/models"

// Violation codes reported for unassigned jobs.
const (
	NoRouteConstraintCode  = 1
	TimeConstraintCode     = 2
	CapacityConstraintCode = 3
	SkillConstraintCode    = 4
	LockingConstraintCode  = 5
)

// RouteConstraintViolation rejects a job for a whole route.
type RouteConstraintViolation struct {
	Code int
}

// ActivityConstraintViolation rejects one placement. Stopped means no later position in
// the tour can be feasible either.
type ActivityConstraintViolation struct {
	Code    int
	Stopped bool
}

// ActivityContext describes a candidate placement of Target between Prev and Next.
// Next is nil when Prev is the last activity of an open tour.
type ActivityContext struct {
	Index  int
	Prev   *models.Activity
	Target *models.Activity
	Next   *models.Activity
}

type HardRouteConstraint interface {
	EvaluateJob(solution *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation
}

type SoftRouteConstraint interface {
	EstimateJob(solution *SolutionContext, route *RouteContext, job *models.Job) float64
}

type HardActivityConstraint interface {
	EvaluateActivity(route *RouteContext, activity *ActivityContext) *ActivityConstraintViolation
}

type SoftActivityConstraint interface {
	EstimateActivity(route *RouteContext, activity *ActivityContext) float64
}

// StateUpdater keeps cached state in sync with the solution.
type StateUpdater interface {
	AcceptInsertion(solution *SolutionContext, routeIndex int, job *models.Job)
	AcceptRouteState(route *RouteContext)
	AcceptSolutionState(solution *SolutionContext)
}

// ConstraintModule is a named bundle of constraints. A module implements any subset of the
// constraint and state updater interfaces.
type ConstraintModule interface {
	Name() string
}

// ConstraintPipeline evaluates feasibility and cost of placements across all modules.
// It is read-only after construction and safe for concurrent use.
type ConstraintPipeline struct {
	modules      []ConstraintModule
	hardRoute    []HardRouteConstraint
	softRoute    []SoftRouteConstraint
	hardActivity []HardActivityConstraint
	softActivity []SoftActivityConstraint
	updaters     []StateUpdater
}

func NewConstraintPipeline(modules ...ConstraintModule) *ConstraintPipeline {
	p := &ConstraintPipeline{}
	for _, m := range modules {
		p.add(m)
	}
	return p
}

func (p *ConstraintPipeline) add(m ConstraintModule) {
	p.modules = append(p.modules, m)
	if c, ok := m.(HardRouteConstraint); ok {
		p.hardRoute = append(p.hardRoute, c)
	}
	if c, ok := m.(SoftRouteConstraint); ok {
		p.softRoute = append(p.softRoute, c)
	}
	if c, ok := m.(HardActivityConstraint); ok {
		p.hardActivity = append(p.hardActivity, c)
	}
	if c, ok := m.(SoftActivityConstraint); ok {
		p.softActivity = append(p.softActivity, c)
	}
	if u, ok := m.(StateUpdater); ok {
		p.updaters = append(p.updaters, u)
	}
}

// Modules returns module names in evaluation order.
func (p *ConstraintPipeline) Modules() []string {
	names := make([]string, len(p.modules))
	for i, m := range p.modules {
		names[i] = m.Name()
	}
	return names
}

// EvaluateHardRoute returns the first route violation.
func (p *ConstraintPipeline) EvaluateHardRoute(solution *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation {
	for _, c := range p.hardRoute {
		if v := c.EvaluateJob(solution, route, job); v != nil {
			return v
		}
	}
	return nil
}

func (p *ConstraintPipeline) EvaluateSoftRoute(solution *SolutionContext, route *RouteContext, job *models.Job) float64 {
	cost := 0.0
	for _, c := range p.softRoute {
		cost += c.EstimateJob(solution, route, job)
	}
	return cost
}

// EvaluateHardActivity returns the first activity violation.
func (p *ConstraintPipeline) EvaluateHardActivity(route *RouteContext, activity *ActivityContext) *ActivityConstraintViolation {
	for _, c := range p.hardActivity {
		if v := c.EvaluateActivity(route, activity); v != nil {
			return v
		}
	}
	return nil
}

func (p *ConstraintPipeline) EvaluateSoftActivity(route *RouteContext, activity *ActivityContext) float64 {
	cost := 0.0
	for _, c := range p.softActivity {
		cost += c.EstimateActivity(route, activity)
	}
	return cost
}

// AcceptInsertion notifies modules about a committed job and refreshes the route state.
func (p *ConstraintPipeline) AcceptInsertion(solution *SolutionContext, routeIndex int, job *models.Job) {
	for _, u := range p.updaters {
		u.AcceptInsertion(solution, routeIndex, job)
	}
	p.AcceptRouteState(solution.Routes[routeIndex])
}

func (p *ConstraintPipeline) AcceptRouteState(route *RouteContext) {
	for _, u := range p.updaters {
		u.AcceptRouteState(route)
	}
	route.stale = false
}

// AcceptSolutionState refreshes stale routes, then lets modules update solution level state.
func (p *ConstraintPipeline) AcceptSolutionState(solution *SolutionContext) {
	for _, r := range solution.Routes {
		if r.stale {
			p.AcceptRouteState(r)
		}
	}
	for _, u := range p.updaters {
		u.AcceptSolutionState(solution)
	}
}
