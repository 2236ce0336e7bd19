package construction

import "vrpcore/internal/models"

// InsertionResult is either an *InsertionSuccess or an *InsertionFailure.
type InsertionResult interface {
	isInsertionResult()
}

// Placement is an activity with the tour index it goes to.
type Placement struct {
	Activity *models.Activity
	Index    int
}

// InsertionSuccess is a feasible placement with its cost. Regret is the cost gap to the
// best placement in another route, +Inf when no other route can take the job.
type InsertionSuccess struct {
	Cost       float64
	Regret     float64
	Job        *models.Job
	Activities []Placement
	Context    *RouteContext
}

// InsertionFailure carries the code of the violation which prevented insertion.
type InsertionFailure struct {
	Code int
	Job  *models.Job
}

func (*InsertionSuccess) isInsertionResult() {}
func (*InsertionFailure) isInsertionResult() {}

// ChooseBestResult prefers any success over a failure, then the lower cost. Ties keep left.
// Between two failures the right one wins.
func ChooseBestResult(left, right InsertionResult) InsertionResult {
	switch l := left.(type) {
	case *InsertionSuccess:
		if r, ok := right.(*InsertionSuccess); ok && r.Cost < l.Cost {
			return r
		}
		return l
	default:
		if right == nil {
			return left
		}
		return right
	}
}
