package construction

import (
	"math"

	"vrpcore/internal/models"
)

// TransportModule propagates schedules, enforces time windows and shift end, and prices legs.
type TransportModule struct {
	transport models.TransportCost
	activity  models.ActivityCost
}

func NewTransportModule(transport models.TransportCost, activity models.ActivityCost) *TransportModule {
	return &TransportModule{transport: transport, activity: activity}
}

func (m *TransportModule) Name() string { return "transport" }

// EvaluateJob rejects jobs whose time windows cannot overlap the vehicle shift.
func (m *TransportModule) EvaluateJob(_ *SolutionContext, route *RouteContext, job *models.Job) *RouteConstraintViolation {
	shift := route.Route.Actor.Vehicle.Shift
	window := models.TimeWindow{Start: shift.Start.Time, End: models.MaxTime}
	if shift.End != nil {
		window.End = shift.End.Time
	}
	for _, tw := range job.TimeWindows() {
		if tw.Intersects(window) {
			return nil
		}
	}
	return &RouteConstraintViolation{Code: TimeConstraintCode}
}

// EstimateJob charges the vehicle fixed cost when the route is not used yet.
func (m *TransportModule) EstimateJob(_ *SolutionContext, route *RouteContext, _ *models.Job) float64 {
	if route.Route.Tour.HasJobs() {
		return 0
	}
	return route.Route.Actor.Vehicle.Costs.Fixed
}

func (m *TransportModule) EvaluateActivity(route *RouteContext, ac *ActivityContext) *ActivityConstraintViolation {
	actor := route.Route.Actor
	profile := actor.Vehicle.Profile

	departure := ac.Prev.Schedule.Departure
	arrival := departure + m.transport.Duration(profile, ac.Prev.Place.Location, ac.Target.Place.Location, departure)
	if arrival > ac.Target.Place.TimeWindow.End {
		return &ActivityConstraintViolation{Code: TimeConstraintCode, Stopped: true}
	}
	if ac.Next == nil {
		return nil
	}

	targetDeparture := m.activity.EstimateDeparture(actor, ac.Target, arrival)
	nextArrival := targetDeparture + m.transport.Duration(profile, ac.Target.Place.Location, ac.Next.Place.Location, targetDeparture)
	latest, ok := route.State.ActivityFloat(LatestArrivalKey, ac.Index+1)
	if !ok {
		latest = ac.Next.Place.TimeWindow.End
	}
	if nextArrival > latest {
		return &ActivityConstraintViolation{Code: TimeConstraintCode}
	}
	return nil
}

// EstimateActivity returns the cost delta of placing the target between prev and next.
func (m *TransportModule) EstimateActivity(route *RouteContext, ac *ActivityContext) float64 {
	actor := route.Route.Actor

	prevDeparture := ac.Prev.Schedule.Departure
	toTarget, arrival := m.legCost(actor, ac.Prev, ac.Target, prevDeparture)
	cost := toTarget + m.activity.Cost(actor, ac.Target, arrival)
	if ac.Next == nil {
		return cost
	}

	departure := m.activity.EstimateDeparture(actor, ac.Target, arrival)
	toNext, nextArrival := m.legCost(actor, ac.Target, ac.Next, departure)
	old, _ := m.legCost(actor, ac.Prev, ac.Next, prevDeparture)
	waitingDelta := m.activity.Cost(actor, ac.Next, nextArrival) - m.activity.Cost(actor, ac.Next, ac.Next.Schedule.Arrival)

	return cost + toNext - old + waitingDelta
}

func (m *TransportModule) legCost(actor *models.Actor, from, to *models.Activity, departure float64) (cost, arrival float64) {
	v := actor.Vehicle
	distance := m.transport.Distance(v.Profile, from.Place.Location, to.Place.Location, departure)
	duration := m.transport.Duration(v.Profile, from.Place.Location, to.Place.Location, departure)
	return distance*v.Costs.PerDistance + duration*v.Costs.PerDrivingTime, departure + duration
}

func (m *TransportModule) AcceptInsertion(*SolutionContext, int, *models.Job) {}

func (m *TransportModule) AcceptRouteState(route *RouteContext) {
	actor := route.Route.Actor
	profile := actor.Vehicle.Profile
	acts := route.Route.Tour.All()

	start := acts[0]
	start.Schedule = models.Schedule{Arrival: actor.Vehicle.Shift.Start.Time, Departure: actor.Vehicle.Shift.Start.Time}
	distance := 0.0
	for i := 1; i < len(acts); i++ {
		prev, act := acts[i-1], acts[i]
		arrival := prev.Schedule.Departure + m.transport.Duration(profile, prev.Place.Location, act.Place.Location, prev.Schedule.Departure)
		act.Schedule = models.Schedule{Arrival: arrival, Departure: m.activity.EstimateDeparture(actor, act, arrival)}
		distance += m.transport.Distance(profile, prev.Place.Location, act.Place.Location, prev.Schedule.Departure)
	}

	// latest arrivals are propagated backwards from the tour end
	latest := make([]any, len(acts))
	last := len(acts) - 1
	latest[last] = acts[last].Place.TimeWindow.End
	for i := last - 1; i >= 0; i-- {
		act, next := acts[i], acts[i+1]
		travel := m.transport.Duration(profile, act.Place.Location, next.Place.Location, act.Schedule.Departure)
		latest[i] = math.Min(act.Place.TimeWindow.End, latest[i+1].(float64)-travel-act.Place.Duration)
	}
	route.State.PutActivityValues(LatestArrivalKey, latest)
	route.State.PutRouteValue(TotalDistanceKey, distance)
	route.State.PutRouteValue(TotalDurationKey, acts[last].Schedule.Departure-start.Schedule.Departure)
}

func (m *TransportModule) AcceptSolutionState(*SolutionContext) {}
