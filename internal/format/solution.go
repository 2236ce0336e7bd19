package format

import (
    "vrpcore/internal/construction"
    "vrpcore/internal/models"
)

type CostDoc struct {
    Total   float64 `json:"total" yaml:"total"`
    Actual  float64 `json:"actual" yaml:"actual"`
    Penalty float64 `json:"penalty" yaml:"penalty"`
}

type StopDoc struct {
    Kind      string  `json:"kind" yaml:"kind"`
    JobID     string  `json:"jobId,omitempty" yaml:"job_id,omitempty"`
    Location  int     `json:"location" yaml:"location"`
    Arrival   float64 `json:"arrival" yaml:"arrival"`
    Departure float64 `json:"departure" yaml:"departure"`
}

type RouteDoc struct {
    VehicleID string    `json:"vehicleId" yaml:"vehicle_id"`
    TypeID    string    `json:"typeId" yaml:"type_id"`
    Distance  float64   `json:"distance" yaml:"distance"`
    Duration  float64   `json:"duration" yaml:"duration"`
    Stops     []StopDoc `json:"stops" yaml:"stops"`
}

type UnassignedDoc struct {
    JobID  string `json:"jobId" yaml:"job_id"`
    Code   int    `json:"code" yaml:"code"`
    Reason string `json:"reason" yaml:"reason"`
}

// SolutionDoc is the service representation of a solution.
type SolutionDoc struct {
    Cost       CostDoc         `json:"cost" yaml:"cost"`
    Routes     []RouteDoc      `json:"routes" yaml:"routes"`
    Unassigned []UnassignedDoc `json:"unassigned" yaml:"unassigned"`
}

// Reason describes an unassigned code.
func Reason(code int) string {
    switch code {
    case 0:
        return "not processed before the run ended"
    case construction.NoRouteConstraintCode:
        return "no vehicle available"
    case construction.TimeConstraintCode:
        return "cannot be served within time windows"
    case construction.CapacityConstraintCode:
        return "does not fit vehicle capacity"
    case construction.SkillConstraintCode:
        return "no vehicle with required skills"
    case construction.LockingConstraintCode:
        return "locked to another vehicle"
    default:
        return "rejected by constraint"
    }
}

// FromSolution renders a solution. Distances are taken from transport along the tours.
func FromSolution(sol *models.Solution, transport models.TransportCost) *SolutionDoc {
    doc := &SolutionDoc{
        Cost:       CostDoc{Total: sol.Cost.Total(), Actual: sol.Cost.Actual, Penalty: sol.Cost.Penalty},
        Routes:     []RouteDoc{},
        Unassigned: []UnassignedDoc{},
    }
    for _, r := range sol.Routes {
        vehicle := r.Actor.Vehicle
        rd := RouteDoc{VehicleID: vehicle.ID, TypeID: vehicle.TypeID}
        activities := r.Tour.All()
        for i, a := range activities {
            stop := StopDoc{Kind: "job", Location: a.Place.Location, Arrival: a.Schedule.Arrival, Departure: a.Schedule.Departure}
            switch {
            case a.Job != nil:
                stop.JobID = a.Job.ID
            case i == 0:
                stop.Kind = "start"
            default:
                stop.Kind = "end"
            }
            rd.Stops = append(rd.Stops, stop)
            if i > 0 && transport != nil {
                prev := activities[i-1]
                rd.Distance += transport.Distance(vehicle.Profile, prev.Place.Location, a.Place.Location, prev.Schedule.Departure)
            }
        }
        if n := len(activities); n > 0 {
            rd.Duration = activities[n-1].Schedule.Departure - activities[0].Schedule.Departure
        }
        doc.Routes = append(doc.Routes, rd)
    }
    for _, u := range sol.Unassigned {
        doc.Unassigned = append(doc.Unassigned, UnassignedDoc{JobID: u.Job.ID, Code: u.Code, Reason: Reason(u.Code)})
    }
    return doc
}
