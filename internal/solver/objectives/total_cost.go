// Package objectives contains objective functions used to rank individuals.
package objectives

import (
	"vrpcore/internal/construction"
	"vrpcore/internal/models"
)

// DefaultUnassignedPenalty is the penalty per unassigned job when none is configured.
const DefaultUnassignedPenalty = 1e6

// TotalCost prices used routes and penalizes unassigned jobs.
type TotalCost struct {
	transport models.TransportCost
	activity  models.ActivityCost
	penalty   float64
}

// NewTotalCost creates the objective. A non-positive penalty selects DefaultUnassignedPenalty.
func NewTotalCost(transport models.TransportCost, activity models.ActivityCost, unassignedPenalty float64) *TotalCost {
	if unassignedPenalty <= 0 {
		unassignedPenalty = DefaultUnassignedPenalty
	}
	return &TotalCost{transport: transport, activity: activity, penalty: unassignedPenalty}
}

func (o *TotalCost) Fitness(ctx *construction.InsertionContext) models.ObjectiveCost {
	return models.NewObjectiveCost(o.actual(ctx), float64(ctx.UnassignedCount())*o.penalty)
}

// FitnessValues returns unassigned job count, used route count and actual cost.
func (o *TotalCost) FitnessValues(ctx *construction.InsertionContext) []float64 {
	return []float64{float64(ctx.UnassignedCount()), float64(usedRoutes(ctx)), o.actual(ctx)}
}

func (o *TotalCost) actual(ctx *construction.InsertionContext) float64 {
	total := 0.0
	for _, rc := range ctx.Solution.Routes {
		total += o.RouteCost(rc.Route)
	}
	return total
}

// RouteCost returns fixed, travel, service and waiting cost of a route. Empty routes cost nothing.
func (o *TotalCost) RouteCost(route *models.Route) float64 {
	if !route.Tour.HasJobs() {
		return 0
	}
	actor := route.Actor
	v := actor.Vehicle
	cost := v.Costs.Fixed
	acts := route.Tour.All()
	for i := 1; i < len(acts); i++ {
		prev, act := acts[i-1], acts[i]
		departure := prev.Schedule.Departure
		cost += o.transport.Distance(v.Profile, prev.Place.Location, act.Place.Location, departure) * v.Costs.PerDistance
		cost += o.transport.Duration(v.Profile, prev.Place.Location, act.Place.Location, departure) * v.Costs.PerDrivingTime
		cost += o.activity.Cost(actor, act, act.Schedule.Arrival)
	}
	return cost
}

func usedRoutes(ctx *construction.InsertionContext) int {
	n := 0
	for _, rc := range ctx.Solution.Routes {
		if rc.Route.Tour.HasJobs() {
			n++
		}
	}
	return n
}
