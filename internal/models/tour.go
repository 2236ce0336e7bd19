package models

// Schedule is the arrival and departure time at an activity.
type Schedule struct {
	Arrival   Timestamp
	Departure Timestamp
}

// ActivityPlace is the concrete place chosen for an activity.
type ActivityPlace struct {
	Location   Location
	Duration   Duration
	TimeWindow TimeWindow
}

// Activity is a stop in a tour. Job is nil for shift start and end.
type Activity struct {
	Place    ActivityPlace
	Schedule Schedule
	Job      *Job
}

func (a *Activity) Copy() *Activity {
	c := *a
	return &c
}

// Tour is an ordered sequence of activities: the shift start, job activities and an
// optional shift end.
type Tour struct {
	activities []*Activity
	hasEnd     bool
}

// NewTour creates a tour with start and end activities taken from the actor's shift.
func NewTour(actor *Actor) *Tour {
	shift := actor.Vehicle.Shift
	t := &Tour{}
	t.activities = append(t.activities, &Activity{
		Place:    ActivityPlace{Location: shift.Start.Location, TimeWindow: TimeWindow{Start: shift.Start.Time, End: MaxTime}},
		Schedule: Schedule{Arrival: shift.Start.Time, Departure: shift.Start.Time},
	})
	if shift.End != nil {
		t.hasEnd = true
		t.activities = append(t.activities, &Activity{
			Place:    ActivityPlace{Location: shift.End.Location, TimeWindow: TimeWindow{Start: 0, End: shift.End.Time}},
			Schedule: Schedule{Arrival: shift.Start.Time, Departure: shift.Start.Time},
		})
	}
	return t
}

// All returns the activities. The slice must not be modified.
func (t *Tour) All() []*Activity { return t.activities }

func (t *Tour) Get(i int) *Activity {
	if i < 0 || i >= len(t.activities) {
		return nil
	}
	return t.activities[i]
}

func (t *Tour) Total() int { return len(t.activities) }

func (t *Tour) Start() *Activity { return t.activities[0] }

// End returns the shift end activity, nil for open tours.
func (t *Tour) End() *Activity {
	if !t.hasEnd {
		return nil
	}
	return t.activities[len(t.activities)-1]
}

func (t *Tour) HasEnd() bool { return t.hasEnd }

// Legs returns the number of positions where a new activity can be inserted.
func (t *Tour) Legs() int {
	if t.hasEnd {
		return len(t.activities) - 1
	}
	return len(t.activities)
}

// JobCount returns the number of job activities.
func (t *Tour) JobCount() int {
	n := len(t.activities) - 1
	if t.hasEnd {
		n--
	}
	return n
}

func (t *Tour) HasJobs() bool { return t.JobCount() > 0 }

// Jobs returns the jobs in tour order.
func (t *Tour) Jobs() []*Job {
	out := make([]*Job, 0, t.JobCount())
	for _, a := range t.activities {
		if a.Job != nil {
			out = append(out, a.Job)
		}
	}
	return out
}

// Index returns the activity index of the job or -1.
func (t *Tour) Index(job *Job) int {
	for i, a := range t.activities {
		if a.Job == job {
			return i
		}
	}
	return -1
}

// Contains reports whether the job is served by this tour.
func (t *Tour) Contains(job *Job) bool { return t.Index(job) >= 0 }

// Insert puts the activity at index, shifting the rest. Index 0 is reserved for the start.
func (t *Tour) Insert(activity *Activity, index int) {
	if index < 1 {
		index = 1
	}
	last := len(t.activities)
	if t.hasEnd {
		last--
	}
	if index > last {
		index = last
	}
	t.activities = append(t.activities, nil)
	copy(t.activities[index+1:], t.activities[index:])
	t.activities[index] = activity
}

// Remove deletes the job activity and reports whether it was present.
func (t *Tour) Remove(job *Job) bool {
	i := t.Index(job)
	if i < 0 {
		return false
	}
	t.activities = append(t.activities[:i], t.activities[i+1:]...)
	return true
}

func (t *Tour) Copy() *Tour {
	acts := make([]*Activity, len(t.activities))
	for i, a := range t.activities {
		acts[i] = a.Copy()
	}
	return &Tour{activities: acts, hasEnd: t.hasEnd}
}

// Route is a tour served by an actor.
type Route struct {
	Actor *Actor
	Tour  *Tour
}

func NewRoute(actor *Actor) *Route {
	return &Route{Actor: actor, Tour: NewTour(actor)}
}

func (r *Route) Copy() *Route {
	return &Route{Actor: r.Actor, Tour: r.Tour.Copy()}
}

// UnassignedJob is a job which could not be placed together with the violation code of
// the last attempt.
type UnassignedJob struct {
	Job  *Job
	Code int
}

// Solution is the result of a solver run.
type Solution struct {
	Routes     []*Route
	Unassigned []UnassignedJob
	Ignored    []*Job
	Cost       ObjectiveCost
}
