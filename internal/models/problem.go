package models

import "sort"

// Place is where and when a job can be served.
type Place struct {
	Location    Location
	Duration    Duration
	TimeWindows []TimeWindow
}

// Demand is a static demand: delivery is loaded at the shift start, pickup is carried to
// the shift end.
type Demand struct {
	Pickup   Load
	Delivery Load
}

// Size returns the load the job occupies at any point of the tour.
func (d Demand) Size() Load {
	return d.Pickup.Max(d.Delivery)
}

// Job is a single unit of work.
type Job struct {
	ID     string
	Place  Place
	Demand Demand
	Skills []string
}

// TimeWindows returns the job time windows or a single unlimited one.
func (j *Job) TimeWindows() []TimeWindow {
	if len(j.Place.TimeWindows) == 0 {
		return []TimeWindow{UnlimitedTimeWindow()}
	}
	return j.Place.TimeWindows
}

// Jobs is an immutable, ID-indexed job set in input order.
type Jobs struct {
	all  []*Job
	byID map[string]*Job
}

func NewJobs(jobs []*Job) *Jobs {
	js := &Jobs{all: make([]*Job, 0, len(jobs)), byID: make(map[string]*Job, len(jobs))}
	for _, j := range jobs {
		js.all = append(js.all, j)
		js.byID[j.ID] = j
	}
	return js
}

func (js *Jobs) All() []*Job { return js.all }

func (js *Jobs) Size() int { return len(js.all) }

func (js *Jobs) ByID(id string) (*Job, bool) {
	j, ok := js.byID[id]
	return j, ok
}

// SortJobs orders jobs by ID in place.
func SortJobs(jobs []*Job) {
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
}

// Lock pins jobs to a vehicle. Placed locked jobs are never removed by ruin.
type Lock struct {
	VehicleID string
	Jobs      []*Job
}
