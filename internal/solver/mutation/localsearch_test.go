package mutation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpcore/internal/construction"
	ct "vrpcore/internal/construction/constructiontest"
	"vrpcore/internal/models"
	"vrpcore/internal/solver/mutation"
)

type plannedRoute struct {
	vehicle string
	jobs    []*models.Job
}

// planned builds an individual whose routes serve the jobs in the given order.
func planned(t *testing.T, problem *construction.Problem, seed int64, routes ...plannedRoute) *construction.InsertionContext {
	t.Helper()
	ctx := ct.Individual(problem, seed)
	for _, r := range routes {
		actor, ok := problem.Fleet.ActorByVehicle(r.vehicle)
		require.True(t, ok)
		rc := construction.NewRouteContext(actor)
		for i, job := range r.jobs {
			place := models.ActivityPlace{Location: job.Place.Location, Duration: job.Place.Duration, TimeWindow: job.TimeWindows()[0]}
			rc.Route.Tour.Insert(&models.Activity{Place: place, Job: job}, i+1)
			require.True(t, ctx.Solution.RemoveRequired(job))
		}
		ctx.Solution.Registry.Use(actor)
		ctx.Solution.Routes = append(ctx.Solution.Routes, rc)
	}
	problem.Constraint.AcceptSolutionState(ctx.Solution)
	return ctx
}

func TestLocalSearchUntanglesSingleRoute(t *testing.T) {
	j1, j2, j3 := ct.Job("j1", 1), ct.Job("j2", 2), ct.Job("j3", 3)
	problem := ct.NewProblem([]*models.Job{j1, j2, j3}, []*models.Vehicle{ct.Vehicle("v1")})
	ctx := planned(t, problem, 1, plannedRoute{vehicle: "v1", jobs: []*models.Job{j3, j1, j2}})
	require.InDelta(t, 8*ct.Step, problem.Objective.Fitness(ctx).Total(), 1e-9)

	ctx = mutation.NewLocalSearch(64).Improve(ctx)

	require.NoError(t, ct.CheckPartition(ctx))
	assert.InDelta(t, 6*ct.Step, problem.Objective.Fitness(ctx).Total(), 1e-9)
	require.Len(t, ctx.Solution.Routes, 1)
	assert.ElementsMatch(t, []*models.Job{j1, j2, j3}, ctx.Solution.Routes[0].Route.Tour.Jobs())
}

func TestLocalSearchNeverIncreasesCost(t *testing.T) {
	problem := testProblem(25)
	for seed := int64(1); seed <= 5; seed++ {
		ctx := ct.Construct(problem, seed)
		ctx = mutation.NewRandomJobRemoval(mutation.JobRemovalLimit{Min: 5, Max: 8, Threshold: 0.5}).Run(nil, ctx)
		ctx = mutation.NewRecreateWithPerturbation(0.5, 0.5, 1.5, models.NewRandom(seed)).Run(nil, ctx)
		before := problem.Objective.Fitness(ctx).Total()
		placed := ctx.Solution.PlacedCount()

		ctx = mutation.NewLocalSearch(mutation.DefaultLocalSearchAttempts).Improve(ctx)

		require.NoError(t, ct.CheckPartition(ctx))
		assert.Equal(t, placed, ctx.Solution.PlacedCount())
		assert.LessOrEqual(t, problem.Objective.Fitness(ctx).Total(), before+1e-6, "seed %d", seed)
	}
}

func TestLocalSearchKeepsLockedJobsOnTheirVehicle(t *testing.T) {
	j1, j2, j3, j4 := ct.Job("j1", 1), ct.Job("j2", 5), ct.Job("j3", 2), ct.Job("j4", 6)
	lock := models.Lock{VehicleID: "v1", Jobs: []*models.Job{j2}}
	problem := ct.NewProblem([]*models.Job{j1, j2, j3, j4}, []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")}, ct.WithLocks(lock))

	for seed := int64(1); seed <= 5; seed++ {
		ctx := planned(t, problem, seed,
			plannedRoute{vehicle: "v1", jobs: []*models.Job{j1, j2}},
			plannedRoute{vehicle: "v2", jobs: []*models.Job{j4, j3}})
		require.Contains(t, ctx.Solution.Locked, j2)

		ctx = mutation.NewLocalSearch(64).Improve(ctx)

		require.NoError(t, ct.CheckPartition(ctx))
		rc, ok := ctx.Solution.RouteOf(j2)
		require.True(t, ok)
		assert.Equal(t, "v1", rc.Route.Actor.Vehicle.ID)
		assert.Contains(t, ctx.Solution.Locked, j2)
	}
}

func TestLocalSearchMutateLeavesParentUntouched(t *testing.T) {
	j1, j2, j3 := ct.Job("j1", 1), ct.Job("j2", 2), ct.Job("j3", 3)
	problem := ct.NewProblem([]*models.Job{j1, j2, j3}, []*models.Vehicle{ct.Vehicle("v1")})
	parent := planned(t, problem, 1, plannedRoute{vehicle: "v1", jobs: []*models.Job{j3, j1, j2}})
	before := ct.RouteJobIDs(parent)

	child := mutation.NewLocalSearch(64).Mutate(nil, parent)

	require.NotSame(t, parent, child)
	assert.Equal(t, before, ct.RouteJobIDs(parent))
	assert.Less(t, problem.Objective.Fitness(child).Total(), problem.Objective.Fitness(parent).Total())
}
