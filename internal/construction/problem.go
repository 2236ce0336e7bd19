package construction

import "vrpcore/internal/models"

// Objective scores an individual.
type Objective interface {
	// Fitness returns the objective cost of the individual.
	Fitness(ctx *InsertionContext) models.ObjectiveCost
	// FitnessValues returns sub-objective values used for tie-breaking and diversity.
	FitnessValues(ctx *InsertionContext) []float64
}

// Problem is the immutable definition of a routing problem shared by all individuals of a run.
type Problem struct {
	Fleet      *models.Fleet
	Jobs       *models.Jobs
	Locks      []models.Lock
	Constraint *ConstraintPipeline
	Transport  models.TransportCost
	Activity   models.ActivityCost
	Objective  Objective
	// Extras holds read-only values for custom modules.
	Extras map[string]any
}

// NewDefaultConstraintPipeline builds the pipeline used for documents coming through the
// service: schedule and time windows, capacity, skills and locks.
func NewDefaultConstraintPipeline(transport models.TransportCost, activity models.ActivityCost, locks []models.Lock) *ConstraintPipeline {
	return NewConstraintPipeline(
		NewTransportModule(transport, activity),
		NewCapacityModule(),
		NewSkillsModule(),
		NewLockingModule(locks),
	)
}
