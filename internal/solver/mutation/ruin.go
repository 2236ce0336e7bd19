package mutation

import (
	"math"
	"sort"

	"vrpcore/internal/construction"
	"vrpcore/internal/models"
	"vrpcore/internal/solver"
)

// JobRemovalLimit bounds how many jobs a ruin removes: a random amount in [Min, Max], capped
// by Threshold times the amount of placed jobs.
type JobRemovalLimit struct {
	Min       int
	Max       int
	Threshold float64
}

// DefaultJobRemovalLimit removes between 8 and 16 jobs, at most a tenth of the placed ones.
func DefaultJobRemovalLimit() JobRemovalLimit {
	return JobRemovalLimit{Min: 8, Max: 16, Threshold: 0.1}
}

func (l JobRemovalLimit) count(random models.Random, placed int) int {
	if placed == 0 {
		return 0
	}
	n := random.UniformInt(max(l.Min, 1), max(l.Max, l.Min, 1))
	limit := int(math.Ceil(l.Threshold * float64(placed)))
	return min(n, max(limit, 1), placed)
}

// placedJob is a removable job with its route.
type placedJob struct {
	job   *models.Job
	route *construction.RouteContext
}

// removableJobs lists placed, not locked jobs in route and tour order.
func removableJobs(ctx *construction.InsertionContext) []placedJob {
	var out []placedJob
	for _, rc := range ctx.Solution.Routes {
		for _, j := range rc.Route.Tour.Jobs() {
			if _, locked := ctx.Solution.Locked[j]; !locked {
				out = append(out, placedJob{job: j, route: rc})
			}
		}
	}
	return out
}

// removeJob moves a placed job back to required unless it is locked.
func removeJob(ctx *construction.InsertionContext, rc *construction.RouteContext, job *models.Job) bool {
	if _, locked := ctx.Solution.Locked[job]; locked {
		return false
	}
	if !rc.Route.Tour.Remove(job) {
		return false
	}
	rc.MarkStale()
	ctx.Solution.Required = append(ctx.Solution.Required, job)
	return true
}

// RandomJobRemoval removes random placed jobs.
type RandomJobRemoval struct {
	limit JobRemovalLimit
}

func NewRandomJobRemoval(limit JobRemovalLimit) *RandomJobRemoval {
	return &RandomJobRemoval{limit: limit}
}

func (r *RandomJobRemoval) Run(_ *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	candidates := removableJobs(ctx)
	n := r.limit.count(ctx.Random, len(candidates))
	for i := 0; i < n; i++ {
		k := ctx.Random.UniformInt(0, len(candidates)-1)
		removeJob(ctx, candidates[k].route, candidates[k].job)
		candidates = append(candidates[:k], candidates[k+1:]...)
	}
	return ctx
}

// RandomRouteRemoval empties random routes until the job limit is reached.
type RandomRouteRemoval struct {
	limit JobRemovalLimit
}

func NewRandomRouteRemoval(limit JobRemovalLimit) *RandomRouteRemoval {
	return &RandomRouteRemoval{limit: limit}
}

func (r *RandomRouteRemoval) Run(_ *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	n := r.limit.count(ctx.Random, len(removableJobs(ctx)))
	routes := append([]*construction.RouteContext(nil), ctx.Solution.Routes...)
	removed := 0
	for removed < n && len(routes) > 0 {
		k := ctx.Random.UniformInt(0, len(routes)-1)
		rc := routes[k]
		routes = append(routes[:k], routes[k+1:]...)
		for _, j := range rc.Route.Tour.Jobs() {
			if removed >= n {
				break
			}
			if removeJob(ctx, rc, j) {
				removed++
			}
		}
	}
	return ctx
}

// NeighbourRemoval removes a random seed job and the placed jobs closest to it.
type NeighbourRemoval struct {
	limit JobRemovalLimit
}

func NewNeighbourRemoval(limit JobRemovalLimit) *NeighbourRemoval {
	return &NeighbourRemoval{limit: limit}
}

func (r *NeighbourRemoval) Run(_ *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	candidates := removableJobs(ctx)
	n := r.limit.count(ctx.Random, len(candidates))
	if n == 0 {
		return ctx
	}
	seed := candidates[ctx.Random.UniformInt(0, len(candidates)-1)]
	profile := seed.route.Route.Actor.Vehicle.Profile
	transport := ctx.Problem.Transport
	distance := func(p placedJob) float64 {
		return transport.Distance(profile, seed.job.Place.Location, p.job.Place.Location, 0)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].job == seed.job {
			return true
		}
		if candidates[j].job == seed.job {
			return false
		}
		return distance(candidates[i]) < distance(candidates[j])
	})
	for _, c := range candidates[:n] {
		removeJob(ctx, c.route, c.job)
	}
	return ctx
}

// DefaultTimeWindowWeight converts a second of time window overlap into distance units
// when RelatedRemoval scores jobs.
const DefaultTimeWindowWeight = 1.0

// RelatedRemoval removes a random seed job and the placed jobs most related to it: close by
// transport distance and with overlapping time windows. Jobs without explicit time windows
// are related by distance only.
type RelatedRemoval struct {
	limit            JobRemovalLimit
	timeWindowWeight float64
}

func NewRelatedRemoval(limit JobRemovalLimit, timeWindowWeight float64) *RelatedRemoval {
	return &RelatedRemoval{limit: limit, timeWindowWeight: timeWindowWeight}
}

func (r *RelatedRemoval) Run(_ *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	candidates := removableJobs(ctx)
	n := r.limit.count(ctx.Random, len(candidates))
	if n == 0 {
		return ctx
	}
	seed := candidates[ctx.Random.UniformInt(0, len(candidates)-1)]
	profile := seed.route.Route.Actor.Vehicle.Profile
	transport := ctx.Problem.Transport

	scores := make(map[*models.Job]float64, len(candidates))
	for _, c := range candidates {
		distance := transport.Distance(profile, seed.job.Place.Location, c.job.Place.Location, 0)
		scores[c.job] = distance - r.timeWindowWeight*timeWindowOverlap(seed.job, c.job)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].job == seed.job {
			return true
		}
		if candidates[j].job == seed.job {
			return false
		}
		return scores[candidates[i].job] < scores[candidates[j].job]
	})
	for _, c := range candidates[:n] {
		removeJob(ctx, c.route, c.job)
	}
	return ctx
}

// timeWindowOverlap returns the largest overlap between the explicit time windows of a and b.
func timeWindowOverlap(a, b *models.Job) float64 {
	overlap := 0.0
	for _, x := range a.Place.TimeWindows {
		for _, y := range b.Place.TimeWindows {
			overlap = max(overlap, x.Overlap(y))
		}
	}
	return overlap
}

// ProbableRuin applies Ruin with Probability.
type ProbableRuin struct {
	Ruin        Ruin
	Probability float64
}

// RuinGroup is a named set of ruins applied together, chosen with Weight.
type RuinGroup struct {
	Name   string
	Ruins  []ProbableRuin
	Weight int
}

// CompositeRuin picks one group from an adaptive roulette seeded with the group weights and
// applies its ruins. The first ruin of a group always runs so the individual changes.
type CompositeRuin struct {
	groups  []RuinGroup
	weights *AdaptiveWeights
}

func NewCompositeRuin(groups []RuinGroup) *CompositeRuin {
	names := make([]string, len(groups))
	initial := make([]float64, len(groups))
	for i, g := range groups {
		names[i] = g.Name
		initial[i] = float64(g.Weight)
	}
	return &CompositeRuin{groups: groups, weights: NewAdaptiveWeights(names, initial)}
}

func (r *CompositeRuin) Run(refinement *solver.RefinementContext, ctx *construction.InsertionContext) *construction.InsertionContext {
	if len(r.groups) == 0 || len(ctx.Solution.Routes) == 0 {
		return ctx
	}
	i := r.weights.Pick(ctx.Random)
	trace(ctx, ruinTraceKey, i)
	for k, pr := range r.groups[i].Ruins {
		if k == 0 || ctx.Random.IsHit(pr.Probability) {
			ctx = pr.Ruin.Run(refinement, ctx)
		}
	}
	return ctx
}

func (r *CompositeRuin) adaptiveWeights() *AdaptiveWeights { return r.weights }
