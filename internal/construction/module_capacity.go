package construction

import "vrpcore/internal/models"

// CapacityModule enforces multi-dimensional static pickup and delivery capacity.
type CapacityModule struct{}

func NewCapacityModule() *CapacityModule { return &CapacityModule{} }

func (m *CapacityModule) Name() string { return "capacity" }

func (m *CapacityModule) EvaluateJob(_ *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation {
	if !job.Demand.Size().Fits(route.Route.Actor.Vehicle.Capacity) {
		return &RouteConstraintViolation{Code: CapacityConstraintCode}
	}
	return nil
}

func (m *CapacityModule) EvaluateActivity(route *RouteContext, ac *ActivityContext) *ActivityConstraintViolation {
	job := ac.Target.Job
	if job == nil {
		return nil
	}
	capacity := route.Route.Actor.Vehicle.Capacity
	demand := job.Demand

	// delivery is carried from the start up to the target, pickup from the target to the end
	if !route.State.ActivityLoad(MaxPastLoadKey, ac.Index).Add(demand.Delivery).Fits(capacity) {
		return &ActivityConstraintViolation{Code: CapacityConstraintCode}
	}
	if !route.State.ActivityLoad(CurrentLoadKey, ac.Index).Add(demand.Pickup).Fits(capacity) {
		return &ActivityConstraintViolation{Code: CapacityConstraintCode}
	}
	if ac.Next != nil && !route.State.ActivityLoad(MaxFutureLoadKey, ac.Index+1).Add(demand.Pickup).Fits(capacity) {
		return &ActivityConstraintViolation{Code: CapacityConstraintCode}
	}
	return nil
}

func (m *CapacityModule) AcceptInsertion(*SolutionContext, int, *models.Job) {}

func (m *CapacityModule) AcceptRouteState(route *RouteContext) {
	acts := route.Route.Tour.All()
	load := models.Load{}
	for _, a := range acts {
		if a.Job != nil {
			load = load.Add(a.Job.Demand.Delivery)
		}
	}

	current := make([]any, len(acts))
	past := make([]any, len(acts))
	future := make([]any, len(acts))
	maxPast := load
	for i, a := range acts {
		if a.Job != nil {
			load = load.Sub(a.Job.Demand.Delivery).Add(a.Job.Demand.Pickup)
		}
		current[i] = load
		maxPast = maxPast.Max(load)
		past[i] = maxPast
	}
	maxFuture := models.Load{}
	for i := len(acts) - 1; i >= 0; i-- {
		maxFuture = maxFuture.Max(current[i].(models.Load))
		future[i] = maxFuture
	}
	route.State.PutActivityValues(CurrentLoadKey, current)
	route.State.PutActivityValues(MaxPastLoadKey, past)
	route.State.PutActivityValues(MaxFutureLoadKey, future)
}

func (m *CapacityModule) AcceptSolutionState(*SolutionContext) {}

// SkillsModule requires vehicles to provide every skill a job asks for.
type SkillsModule struct{}

func NewSkillsModule() *SkillsModule { return &SkillsModule{} }

func (m *SkillsModule) Name() string { return "skills" }

func (m *SkillsModule) EvaluateJob(_ *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation {
	if !route.Route.Actor.Vehicle.HasSkills(job.Skills) {
		return &RouteConstraintViolation{Code: SkillConstraintCode}
	}
	return nil
}

// LockingModule pins locked jobs to their vehicle and keeps the locked set of a solution.
type LockingModule struct {
	vehicles map[*models.Job]string
}

func NewLockingModule(locks []models.Lock) *LockingModule {
	m := &LockingModule{vehicles: map[*models.Job]string{}}
	for _, l := range locks {
		for _, j := range l.Jobs {
			m.vehicles[j] = l.VehicleID
		}
	}
	return m
}

func (m *LockingModule) Name() string { return "locking" }

func (m *LockingModule) EvaluateJob(_ *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation {
	if id, ok := m.vehicles[job]; ok && route.Route.Actor.Vehicle.ID != id {
		return &RouteConstraintViolation{Code: LockingConstraintCode}
	}
	return nil
}

func (m *LockingModule) AcceptInsertion(solution *SolutionContext, _ int, job *models.Job) {
	if _, ok := m.vehicles[job]; ok {
		solution.Locked[job] = struct{}{}
	}
}

func (m *LockingModule) AcceptRouteState(*RouteContext) {}

// AcceptSolutionState rebuilds the locked set from the placed jobs.
func (m *LockingModule) AcceptSolutionState(solution *SolutionContext) {
	if len(m.vehicles) == 0 {
		return
	}
	for j := range solution.Locked {
		delete(solution.Locked, j)
	}
	for _, r := range solution.Routes {
		for _, j := range r.Route.Tour.Jobs() {
			if _, ok := m.vehicles[j]; ok {
				solution.Locked[j] = struct{}{}
			}
		}
	}
}
