// Package format converts problem and solution documents (JSON or YAML) to and from the
// solver model.
package format

import (
    "encoding/json"
    "errors"
    "fmt"
    "sort"

    "gopkg.in/yaml.v3"

    "vrpcore/internal/construction"
    "vrpcore/internal/models"
    "vrpcore/internal/solver/objectives"
)

// ErrInvalidProblem is returned for documents which cannot be turned into a problem.
var ErrInvalidProblem = errors.New("invalid problem")

// PlaceDoc references a location by coordinate or by matrix index.
type PlaceDoc struct {
    Location *GeoPoint `json:"location,omitempty" yaml:"location,omitempty"`
    Index    *int      `json:"index,omitempty" yaml:"index,omitempty"`
}

type JobDoc struct {
    ID string `json:"id" yaml:"id"`
    PlaceDoc `yaml:",inline"`
    // Duration is the service time in seconds.
    Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty"`
    // TimeWindows are [start, end] pairs in seconds.
    TimeWindows [][2]float64 `json:"timeWindows,omitempty" yaml:"time_windows,omitempty"`
    Delivery    []int        `json:"delivery,omitempty" yaml:"delivery,omitempty"`
    Pickup      []int        `json:"pickup,omitempty" yaml:"pickup,omitempty"`
    Skills      []string     `json:"skills,omitempty" yaml:"skills,omitempty"`
}

type CostsDoc struct {
    Fixed    float64 `json:"fixed,omitempty" yaml:"fixed,omitempty"`
    Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
    Time     float64 `json:"time,omitempty" yaml:"time,omitempty"`
    Waiting  float64 `json:"waiting,omitempty" yaml:"waiting,omitempty"`
    Service  float64 `json:"service,omitempty" yaml:"service,omitempty"`
}

type ShiftPlaceDoc struct {
    PlaceDoc `yaml:",inline"`
    Time     float64 `json:"time,omitempty" yaml:"time,omitempty"`
}

type ShiftDoc struct {
    Start ShiftPlaceDoc  `json:"start" yaml:"start"`
    End   *ShiftPlaceDoc `json:"end,omitempty" yaml:"end,omitempty"`
}

// VehicleDoc is a vehicle type. Count expands it into vehicles named <id>_<n>.
type VehicleDoc struct {
    ID       string   `json:"id" yaml:"id"`
    Count    int      `json:"count,omitempty" yaml:"count,omitempty"`
    Profile  int      `json:"profile,omitempty" yaml:"profile,omitempty"`
    Capacity []int    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
    Skills   []string `json:"skills,omitempty" yaml:"skills,omitempty"`
    Costs    CostsDoc `json:"costs" yaml:"costs"`
    Shift    ShiftDoc `json:"shift" yaml:"shift"`
}

// LockDoc pins jobs to a vehicle.
type LockDoc struct {
    VehicleID string   `json:"vehicleId" yaml:"vehicle_id"`
    Jobs      []string `json:"jobs" yaml:"jobs"`
}

// MatrixDoc is a dense row-major matrix of one profile.
type MatrixDoc struct {
    Profile   int       `json:"profile,omitempty" yaml:"profile,omitempty"`
    Durations []float64 `json:"durations" yaml:"durations"`
    Distances []float64 `json:"distances" yaml:"distances"`
}

// ProblemDoc is the service representation of a routing problem. Locations are either all
// coordinates (matrices are derived) or all matrix indices (Matrices are required).
type ProblemDoc struct {
    Jobs              []JobDoc     `json:"jobs" yaml:"jobs"`
    Vehicles          []VehicleDoc `json:"vehicles" yaml:"vehicles"`
    Locks             []LockDoc    `json:"locks,omitempty" yaml:"locks,omitempty"`
    Matrices          []MatrixDoc  `json:"matrices,omitempty" yaml:"matrices,omitempty"`
    SpeedKph          float64      `json:"speedKph,omitempty" yaml:"speed_kph,omitempty"`
    UnassignedPenalty float64      `json:"unassignedPenalty,omitempty" yaml:"unassigned_penalty,omitempty"`
}

func ParseProblemJSON(data []byte) (*ProblemDoc, error) {
    var doc ProblemDoc
    if err := json.Unmarshal(data, &doc); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
    }
    return &doc, nil
}

func ParseProblemYAML(data []byte) (*ProblemDoc, error) {
    var doc ProblemDoc
    if err := yaml.Unmarshal(data, &doc); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
    }
    return &doc, nil
}

func invalid(format string, args ...any) error {
    return fmt.Errorf("%w: %s", ErrInvalidProblem, fmt.Sprintf(format, args...))
}

// locator assigns matrix indices to places.
type locator struct {
    indexed bool
    size    int
    points  []GeoPoint
    seen    map[GeoPoint]int
}

func (l *locator) resolve(p PlaceDoc, what string) (models.Location, error) {
    switch {
    case p.Location != nil && p.Index != nil:
        return 0, invalid("%s has both location and index", what)
    case l.indexed && p.Index == nil:
        return 0, invalid("%s needs a matrix index", what)
    case l.indexed:
        if *p.Index < 0 || *p.Index >= l.size {
            return 0, invalid("%s index %d is out of matrix range %d", what, *p.Index, l.size)
        }
        return *p.Index, nil
    case p.Location == nil:
        return 0, invalid("%s needs a location", what)
    }
    if idx, ok := l.seen[*p.Location]; ok {
        return idx, nil
    }
    idx := len(l.points)
    l.points = append(l.points, *p.Location)
    l.seen[*p.Location] = idx
    return idx, nil
}

// BuildProblem validates the document and converts it into a solver problem with the
// default constraint pipeline and the total cost objective.
func BuildProblem(doc *ProblemDoc) (*construction.Problem, error) {
    if doc == nil || len(doc.Vehicles) == 0 {
        return nil, invalid("at least one vehicle is required")
    }
    loc := &locator{indexed: len(doc.Matrices) > 0, seen: map[GeoPoint]int{}}
    var transport *models.MatrixTransportCost
    if loc.indexed {
        matrices := make([]models.Matrix, len(doc.Matrices))
        for i, m := range doc.Matrices {
            matrices[i] = models.Matrix{Profile: m.Profile, Durations: m.Durations, Distances: m.Distances}
        }
        t, err := models.NewMatrixTransportCost(matrices)
        if err != nil {
            return nil, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
        }
        transport = t
        loc.size = t.Size()
    }

    jobs := make([]*models.Job, 0, len(doc.Jobs))
    byID := map[string]*models.Job{}
    for _, jd := range doc.Jobs {
        if jd.ID == "" {
            return nil, invalid("job without id")
        }
        if _, dup := byID[jd.ID]; dup {
            return nil, invalid("duplicate job id %q", jd.ID)
        }
        location, err := loc.resolve(jd.PlaceDoc, "job "+jd.ID)
        if err != nil {
            return nil, err
        }
        job := &models.Job{
            ID:     jd.ID,
            Place:  models.Place{Location: location, Duration: jd.Duration},
            Demand: models.Demand{Pickup: models.Load(jd.Pickup), Delivery: models.Load(jd.Delivery)},
            Skills: jd.Skills,
        }
        for _, tw := range jd.TimeWindows {
            if tw[1] < tw[0] {
                return nil, invalid("job %s has time window [%g, %g]", jd.ID, tw[0], tw[1])
            }
            job.Place.TimeWindows = append(job.Place.TimeWindows, models.TimeWindow{Start: tw[0], End: tw[1]})
        }
        jobs = append(jobs, job)
        byID[job.ID] = job
    }

    vehicles, err := buildVehicles(doc.Vehicles, loc)
    if err != nil {
        return nil, err
    }

    if !loc.indexed {
        profiles := map[int]struct{}{}
        for _, v := range vehicles {
            profiles[v.Profile] = struct{}{}
        }
        matrices := make([]models.Matrix, 0, len(profiles))
        for p := range profiles {
            matrices = append(matrices, HaversineMatrix(loc.points, doc.SpeedKph, p))
        }
        sort.Slice(matrices, func(i, j int) bool { return matrices[i].Profile < matrices[j].Profile })
        t, err := models.NewMatrixTransportCost(matrices)
        if err != nil {
            return nil, fmt.Errorf("%w: %v", ErrInvalidProblem, err)
        }
        transport = t
    }

    fleet := models.NewFleet(vehicles)
    locks, err := buildLocks(doc.Locks, byID, fleet)
    if err != nil {
        return nil, err
    }

    activity := models.SimpleActivityCost{}
    return &construction.Problem{
        Fleet:      fleet,
        Jobs:       models.NewJobs(jobs),
        Locks:      locks,
        Constraint: construction.NewDefaultConstraintPipeline(transport, activity, locks),
        Transport:  transport,
        Activity:   activity,
        Objective:  objectives.NewTotalCost(transport, activity, doc.UnassignedPenalty),
        Extras:     map[string]any{},
    }, nil
}

func buildVehicles(docs []VehicleDoc, loc *locator) ([]*models.Vehicle, error) {
    var out []*models.Vehicle
    ids := map[string]bool{}
    for _, vd := range docs {
        if vd.ID == "" {
            return nil, invalid("vehicle without id")
        }
        start, err := loc.resolve(vd.Shift.Start.PlaceDoc, "vehicle "+vd.ID+" shift start")
        if err != nil {
            return nil, err
        }
        var end *models.ShiftPlace
        if vd.Shift.End != nil {
            endLoc, err := loc.resolve(vd.Shift.End.PlaceDoc, "vehicle "+vd.ID+" shift end")
            if err != nil {
                return nil, err
            }
            if vd.Shift.End.Time != 0 && vd.Shift.End.Time < vd.Shift.Start.Time {
                return nil, invalid("vehicle %s shift ends before it starts", vd.ID)
            }
            endTime := vd.Shift.End.Time
            if endTime == 0 { endTime = models.MaxTime }
            end = &models.ShiftPlace{Location: endLoc, Time: endTime}
        }
        count := max(vd.Count, 1)
        for n := 1; n <= count; n++ {
            id := vd.ID
            if vd.Count > 1 { id = fmt.Sprintf("%s_%d", vd.ID, n) }
            if ids[id] {
                return nil, invalid("duplicate vehicle id %q", id)
            }
            ids[id] = true
            v := &models.Vehicle{
                ID:       id,
                TypeID:   vd.ID,
                Profile:  vd.Profile,
                Capacity: models.Load(vd.Capacity),
                Skills:   vd.Skills,
                Costs: models.VehicleCosts{
                    Fixed:          vd.Costs.Fixed,
                    PerDistance:    vd.Costs.Distance,
                    PerDrivingTime: vd.Costs.Time,
                    PerWaitingTime: vd.Costs.Waiting,
                    PerServiceTime: vd.Costs.Service,
                },
                Shift: models.Shift{Start: models.ShiftPlace{Location: start, Time: vd.Shift.Start.Time}},
            }
            if end != nil {
                e := *end
                v.Shift.End = &e
            }
            out = append(out, v)
        }
    }
    return out, nil
}

func buildLocks(docs []LockDoc, jobs map[string]*models.Job, fleet *models.Fleet) ([]models.Lock, error) {
    locked := map[string]bool{}
    var out []models.Lock
    for _, ld := range docs {
        actor, ok := fleet.ActorByVehicle(ld.VehicleID)
        if !ok {
            return nil, invalid("lock references unknown vehicle %q", ld.VehicleID)
        }
        lock := models.Lock{VehicleID: actor.Vehicle.ID}
        for _, id := range ld.Jobs {
            j, ok := jobs[id]
            if !ok {
                return nil, invalid("lock references unknown job %q", id)
            }
            if locked[id] {
                return nil, invalid("job %q is locked twice", id)
            }
            locked[id] = true
            lock.Jobs = append(lock.Jobs, j)
        }
        out = append(out, lock)
    }
    return out, nil
}
