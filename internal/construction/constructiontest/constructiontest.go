// Package constructiontest builds small problems and individuals for tests.
package constructiontest

import (
	"fmt"
	"math"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver/objectives"
)

// Step is the distance and duration between two neighbouring locations of a line matrix.
const Step = 10.0

// LineTransport places locations 0..size-1 on a line, Step apart.
func LineTransport(size int) *models.MatrixTransportCost {
	values := make([]float64, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			values[i*size+j] = math.Abs(float64(i-j)) * Step
		}
	}
	tc, err := models.NewMatrixTransportCost([]models.Matrix{{Profile: 0, Durations: values, Distances: values}})
	if err != nil {
		panic(err)
	}
	return tc
}

type JobOption func(*models.Job)

func WithDemand(delivery int) JobOption {
	return func(j *models.Job) { j.Demand.Delivery = models.Load{delivery} }
}

func WithPickup(pickup int) JobOption {
	return func(j *models.Job) { j.Demand.Pickup = models.Load{pickup} }
}

func WithSkills(skills ...string) JobOption {
	return func(j *models.Job) { j.Skills = skills }
}

func WithTimeWindow(start, end float64) JobOption {
	return func(j *models.Job) {
		j.Place.TimeWindows = append(j.Place.TimeWindows, models.TimeWindow{Start: start, End: end})
	}
}

func WithServiceDuration(d float64) JobOption {
	return func(j *models.Job) { j.Place.Duration = d }
}

// Job creates a job at the location with a delivery demand of one.
func Job(id string, location int, opts ...JobOption) *models.Job {
	j := &models.Job{ID: id, Place: models.Place{Location: location}, Demand: models.Demand{Delivery: models.Load{1}}}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Jobs creates n jobs spread over locations 1..locations.
func Jobs(n, locations int) []*models.Job {
	out := make([]*models.Job, n)
	for i := range out {
		out[i] = Job(fmt.Sprintf("job%02d", i), 1+i%locations)
	}
	return out
}

type VehicleOption func(*models.Vehicle)

func WithCapacity(c int) VehicleOption {
	return func(v *models.Vehicle) { v.Capacity = models.Load{c} }
}

func WithVehicleSkills(skills ...string) VehicleOption {
	return func(v *models.Vehicle) { v.Skills = skills }
}

func WithType(typeID string) VehicleOption {
	return func(v *models.Vehicle) { v.TypeID = typeID }
}

func WithFixedCost(c float64) VehicleOption {
	return func(v *models.Vehicle) { v.Costs.Fixed = c }
}

func WithShiftEnd(t float64) VehicleOption {
	return func(v *models.Vehicle) { v.Shift.End = &models.ShiftPlace{Location: 0, Time: t} }
}

// OpenEnd removes the shift end so tours finish at the last job.
func OpenEnd() VehicleOption {
	return func(v *models.Vehicle) { v.Shift.End = nil }
}

// Vehicle creates a vehicle of its own type, depot at location 0, capacity 10 and a cost
// of one per distance unit.
func Vehicle(id string, opts ...VehicleOption) *models.Vehicle {
	v := &models.Vehicle{
		ID:       id,
		TypeID:   id,
		Capacity: models.Load{10},
		Costs:    models.VehicleCosts{PerDistance: 1},
		Shift:    models.Shift{Start: models.ShiftPlace{Location: 0}, End: &models.ShiftPlace{Location: 0, Time: 100000}},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

type problemConfig struct {
	locks   []models.Lock
	penalty float64
}

type ProblemOption func(*problemConfig)

func WithLocks(locks ...models.Lock) ProblemOption {
	return func(c *problemConfig) { c.locks = locks }
}

func WithUnassignedPenalty(p float64) ProblemOption {
	return func(c *problemConfig) { c.penalty = p }
}

// NewProblem builds a problem on a line matrix large enough for all job locations.
func NewProblem(jobs []*models.Job, vehicles []*models.Vehicle, opts ...ProblemOption) *construction.Problem {
	cfg := &problemConfig{}
	for _, o := range opts {
		o(cfg)
	}
	size := 2
	for _, j := range jobs {
		size = max(size, j.Place.Location+1)
	}
	transport := LineTransport(size)
	activity := models.SimpleActivityCost{}
	return &construction.Problem{
		Fleet:      models.NewFleet(vehicles),
		Jobs:       models.NewJobs(jobs),
		Locks:      cfg.locks,
		Constraint: construction.NewDefaultConstraintPipeline(transport, activity, cfg.locks),
		Transport:  transport,
		Activity:   activity,
		Objective:  objectives.NewTotalCost(transport, activity, cfg.penalty),
		Extras:     map[string]any{},
	}
}

// Individual creates an empty individual with a seeded random.
func Individual(problem *construction.Problem, seed int64) *construction.InsertionContext {
	return construction.NewInsertionContext(problem, models.NewRandom(seed))
}

// Construct runs the cheapest insertion on a new individual.
func Construct(problem *construction.Problem, seed int64) *construction.InsertionContext {
	h := &construction.InsertionHeuristic{}
	return h.Process(Individual(problem, seed), construction.AllJobSelector{}, construction.AllRouteSelector{}, construction.BestResultSelector{}, nil)
}

// CheckPartition verifies that every job is in exactly one of required, ignored,
// unassigned, locked or placed.
func CheckPartition(ctx *construction.InsertionContext) error {
	seen := map[*models.Job]string{}
	mark := func(j *models.Job, set string) error {
		if prev, ok := seen[j]; ok {
			return fmt.Errorf("job %s is both %s and %s", j.ID, prev, set)
		}
		seen[j] = set
		return nil
	}
	sol := ctx.Solution
	for _, j := range sol.Required {
		if err := mark(j, "required"); err != nil {
			return err
		}
	}
	for _, j := range sol.Ignored {
		if err := mark(j, "ignored"); err != nil {
			return err
		}
	}
	for j := range sol.Unassigned {
		if err := mark(j, "unassigned"); err != nil {
			return err
		}
	}
	for _, rc := range sol.Routes {
		for _, j := range rc.Route.Tour.Jobs() {
			set := "placed"
			if _, ok := sol.Locked[j]; ok {
				set = "locked"
			}
			if err := mark(j, set); err != nil {
				return err
			}
		}
	}
	for j := range sol.Locked {
		if seen[j] != "locked" {
			return fmt.Errorf("locked job %s is not placed", j.ID)
		}
	}
	for _, j := range ctx.Problem.Jobs.All() {
		if _, ok := seen[j]; !ok {
			return fmt.Errorf("job %s is missing", j.ID)
		}
	}
	if len(seen) != ctx.Problem.Jobs.Size() {
		return fmt.Errorf("partition has %d jobs, problem has %d", len(seen), ctx.Problem.Jobs.Size())
	}
	return nil
}

// RouteJobIDs lists job ids per route.
func RouteJobIDs(ctx *construction.InsertionContext) [][]string {
	out := make([][]string, 0, len(ctx.Solution.Routes))
	for _, rc := range ctx.Solution.Routes {
		var ids []string
		for _, j := range rc.Route.Tour.Jobs() {
			ids = append(ids, j.ID)
		}
		out = append(out, ids)
	}
	return out
}
