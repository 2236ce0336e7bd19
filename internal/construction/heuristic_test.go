package construction_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpcore/internal/construction"
	ct "vrpcore/internal/construction/constructiontest"
	"vrpcore/internal/models"
	"vrpcore/internal/solver/objectives"
)

type reachedQuota struct{}

func (reachedQuota) IsReached() bool { return true }

func TestProcessEmptyJobs(t *testing.T) {
	problem := ct.NewProblem(nil, []*models.Vehicle{ct.Vehicle("v1")})
	ctx := ct.Construct(problem, 1)

	sol := ctx.ToSolution()
	assert.Empty(t, sol.Routes)
	assert.Empty(t, sol.Unassigned)
	assert.Equal(t, 0.0, sol.Cost.Total())
	assert.Len(t, ctx.Solution.Registry.Next(), 1)
}

func TestProcessSingleJob(t *testing.T) {
	problem := ct.NewProblem([]*models.Job{ct.Job("j1", 2)}, []*models.Vehicle{ct.Vehicle("v1")})
	ctx := ct.Construct(problem, 1)

	require.NoError(t, ct.CheckPartition(ctx))
	assert.Empty(t, ctx.Solution.Unassigned)
	assert.Empty(t, ctx.Solution.Required)
	require.Len(t, ctx.Solution.Routes, 1)
	assert.Equal(t, [][]string{{"j1"}}, ct.RouteJobIDs(ctx))

	sol := ctx.ToSolution()
	assert.Equal(t, 2*2*ct.Step, sol.Cost.Actual)
	assert.Equal(t, 0.0, sol.Cost.Penalty)
}

func TestProcessUnassignedReasons(t *testing.T) {
	cases := []struct {
		name string
		job  *models.Job
		code int
	}{
		{"capacity", ct.Job("j1", 1, ct.WithDemand(11)), construction.CapacityConstraintCode},
		{"skills", ct.Job("j1", 1, ct.WithSkills("fridge")), construction.SkillConstraintCode},
		{"time window", ct.Job("j1", 3, ct.WithTimeWindow(0, 10)), construction.TimeConstraintCode},
		{"shift", ct.Job("j1", 1, ct.WithTimeWindow(200, 300)), construction.TimeConstraintCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			problem := ct.NewProblem([]*models.Job{tc.job}, []*models.Vehicle{ct.Vehicle("v1", ct.WithShiftEnd(100))})
			ctx := ct.Construct(problem, 1)

			require.NoError(t, ct.CheckPartition(ctx))
			assert.Equal(t, map[*models.Job]int{tc.job: tc.code}, ctx.Solution.Unassigned)
			assert.Empty(t, ctx.Solution.Routes)

			sol := ctx.ToSolution()
			require.Len(t, sol.Unassigned, 1)
			assert.Equal(t, tc.code, sol.Unassigned[0].Code)
			assert.Equal(t, objectives.DefaultUnassignedPenalty, sol.Cost.Penalty)
		})
	}
}

func TestProcessLockedJobs(t *testing.T) {
	locked := ct.Job("locked", 1)
	free := ct.Job("free", 2)
	lock := models.Lock{VehicleID: "v2", Jobs: []*models.Job{locked}}

	problem := ct.NewProblem([]*models.Job{locked, free}, []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")}, ct.WithLocks(lock))
	ctx := ct.Construct(problem, 1)

	require.NoError(t, ct.CheckPartition(ctx))
	assert.Empty(t, ctx.Solution.Unassigned)
	assert.Contains(t, ctx.Solution.Locked, locked)
	assert.NotContains(t, ctx.Solution.Locked, free)
	for _, rc := range ctx.Solution.Routes {
		for _, j := range rc.Route.Tour.Jobs() {
			if j == locked {
				assert.Equal(t, "v2", rc.Route.Actor.Vehicle.ID)
			}
		}
	}

	// the only vehicle is not the one the job is locked to
	problem = ct.NewProblem([]*models.Job{locked}, []*models.Vehicle{ct.Vehicle("v1")}, ct.WithLocks(lock))
	ctx = ct.Construct(problem, 1)
	assert.Equal(t, map[*models.Job]int{locked: construction.LockingConstraintCode}, ctx.Solution.Unassigned)
}

func TestProcessBuildsCheapestOrder(t *testing.T) {
	jobs := []*models.Job{ct.Job("c", 3), ct.Job("a", 1), ct.Job("b", 2)}
	problem := ct.NewProblem(jobs, []*models.Vehicle{ct.Vehicle("v1", ct.OpenEnd())})
	ctx := ct.Construct(problem, 7)

	if diff := cmp.Diff([][]string{{"a", "b", "c"}}, ct.RouteJobIDs(ctx)); diff != "" {
		t.Errorf("unexpected routes (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3*ct.Step, ctx.ToSolution().Cost.Actual)
}

func TestProcessRespectsPickupAfterDelivery(t *testing.T) {
	delivery := ct.Job("delivery", 3, ct.WithDemand(6))
	pickup := ct.Job("pickup", 1, ct.WithDemand(0), ct.WithPickup(6))
	problem := ct.NewProblem([]*models.Job{delivery, pickup}, []*models.Vehicle{ct.Vehicle("v1", ct.OpenEnd())})
	ctx := ct.Construct(problem, 3)

	assert.Equal(t, [][]string{{"delivery", "pickup"}}, ct.RouteJobIDs(ctx))
}

func TestProcessSplitsByCapacity(t *testing.T) {
	jobs := []*models.Job{ct.Job("j1", 1, ct.WithDemand(4)), ct.Job("j2", 2, ct.WithDemand(4)), ct.Job("j3", 3, ct.WithDemand(4))}
	vehicles := []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")}
	ctx := ct.Construct(ct.NewProblem(jobs, vehicles), 5)

	require.NoError(t, ct.CheckPartition(ctx))
	assert.Empty(t, ctx.Solution.Unassigned)
	require.Len(t, ctx.Solution.Routes, 2)
	for _, rc := range ctx.Solution.Routes {
		load := models.Load{}
		for _, j := range rc.Route.Tour.Jobs() {
			load = load.Add(j.Demand.Delivery)
		}
		assert.True(t, load.Fits(rc.Route.Actor.Vehicle.Capacity))
	}
}

func TestProcessPlacesLockedJobsOnTheirVehicle(t *testing.T) {
	j1, j2 := ct.Job("j1", 1), ct.Job("j2", 2)
	vehicles := []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2")}
	lock := models.Lock{VehicleID: "v2", Jobs: []*models.Job{j1}}
	ctx := ct.Construct(ct.NewProblem([]*models.Job{j1, j2}, vehicles, ct.WithLocks(lock)), 1)

	require.NoError(t, ct.CheckPartition(ctx))
	rc, ok := ctx.Solution.RouteOf(j1)
	require.True(t, ok)
	assert.Equal(t, "v2", rc.Route.Actor.Vehicle.ID)
	assert.Contains(t, ctx.Solution.Locked, j1)
	assert.NotContains(t, ctx.Solution.Locked, j2)
}

func TestProcessStopsWhenQuotaIsReached(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(5, 4), []*models.Vehicle{ct.Vehicle("v1")})
	h := &construction.InsertionHeuristic{}
	ctx := h.Process(ct.Individual(problem, 1), construction.AllJobSelector{}, construction.AllRouteSelector{}, construction.BestResultSelector{}, reachedQuota{})

	require.NoError(t, ct.CheckPartition(ctx))
	assert.Len(t, ctx.Solution.Required, 5)
	assert.Empty(t, ctx.Solution.Routes)
	assert.Len(t, ctx.ToSolution().Unassigned, 5)
}

func TestProcessKeepsPartition(t *testing.T) {
	random := models.NewRandom(11)
	var jobs []*models.Job
	for i := 0; i < 40; i++ {
		opts := []ct.JobOption{ct.WithDemand(random.UniformInt(1, 6))}
		if i%9 == 0 {
			opts = append(opts, ct.WithSkills("crane"))
		}
		jobs = append(jobs, ct.Job(fmt.Sprintf("j%02d", i), 1+random.UniformInt(0, 9), opts...))
	}
	vehicles := []*models.Vehicle{ct.Vehicle("v1"), ct.Vehicle("v2"), ct.Vehicle("v3", ct.WithVehicleSkills("crane"))}
	problem := ct.NewProblem(jobs, vehicles)

	for seed := int64(1); seed <= 5; seed++ {
		ctx := ct.Construct(problem, seed)
		require.NoError(t, ct.CheckPartition(ctx))
		assert.Empty(t, ctx.Solution.Required)
		for _, rc := range ctx.Solution.Routes {
			assert.True(t, rc.Route.Tour.HasJobs())
		}
	}
}

func TestCopyIsIndependent(t *testing.T) {
	problem := ct.NewProblem(ct.Jobs(6, 5), []*models.Vehicle{ct.Vehicle("v1")})
	original := ct.Construct(problem, 2)
	before := ct.RouteJobIDs(original)

	cp := original.Copy()
	job := cp.Solution.Routes[0].Route.Tour.Jobs()[0]
	require.True(t, cp.Solution.Routes[0].Route.Tour.Remove(job))
	cp.Solution.Required = append(cp.Solution.Required, job)

	assert.Equal(t, before, ct.RouteJobIDs(original))
	assert.Empty(t, original.Solution.Required)
	require.NoError(t, ct.CheckPartition(cp))
}

func TestChooseBestResult(t *testing.T) {
	job := &models.Job{ID: "j"}
	cheap := &construction.InsertionSuccess{Cost: 1, Job: job}
	costly := &construction.InsertionSuccess{Cost: 2, Job: job}
	same := &construction.InsertionSuccess{Cost: 1, Job: job}
	fail1 := &construction.InsertionFailure{Code: 1, Job: job}
	fail2 := &construction.InsertionFailure{Code: 2, Job: job}

	cases := []struct {
		name        string
		left, right construction.InsertionResult
		want        construction.InsertionResult
	}{
		{"success beats failure", fail1, costly, costly},
		{"failure loses to success", costly, fail1, costly},
		{"lower cost wins", costly, cheap, cheap},
		{"tie keeps left", cheap, same, cheap},
		{"failures keep right", fail1, fail2, fail2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Same(t, tc.want, construction.ChooseBestResult(tc.left, tc.right))
		})
	}
}
