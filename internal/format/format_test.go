package format

import (
    "errors"
    "math"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "vrpcore/internal/construction"
    "vrpcore/internal/models"
)

const yamlProblem = `
jobs:
  - id: a
    location: {lat: 52.52, lng: 13.40}
    delivery: [1]
    duration: 60
  - id: b
    location: {lat: 52.53, lng: 13.41}
    delivery: [1]
    time_windows: [[0, 36000]]
vehicles:
  - id: van
    count: 2
    capacity: [2]
    costs: {distance: 0.001, time: 0.01}
    shift:
      start: {location: {lat: 52.50, lng: 13.38}}
      end: {location: {lat: 52.50, lng: 13.38}, time: 86400}
locks:
  - vehicle_id: van_1
    jobs: [a]
`

func TestHaversineMatrix(t *testing.T) {
    m := HaversineMatrix([]GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}, 36, 0)
    // one degree of longitude at the equator
    assert.InDelta(t, 111195, m.Distances[1], 1)
    assert.Equal(t, m.Distances[1], m.Distances[2])
    assert.Equal(t, 0.0, m.Distances[0])
    assert.InDelta(t, m.Distances[1]/10, m.Durations[1], 1e-6)
}

func TestBuildProblemFromCoordinates(t *testing.T) {
    doc, err := ParseProblemYAML([]byte(yamlProblem))
    require.NoError(t, err)
    problem, err := BuildProblem(doc)
    require.NoError(t, err)

    require.Equal(t, 2, problem.Jobs.Size())
    require.Len(t, problem.Fleet.Vehicles, 2)
    assert.Equal(t, "van_1", problem.Fleet.Vehicles[0].ID)
    assert.Equal(t, "van", problem.Fleet.Vehicles[1].TypeID)
    require.Len(t, problem.Locks, 1)
    assert.Equal(t, "a", problem.Locks[0].Jobs[0].ID)
    actor, ok := problem.Fleet.ActorByVehicle(problem.Locks[0].VehicleID)
    require.True(t, ok)
    assert.Same(t, problem.Fleet.Vehicles[0], actor.Vehicle)

    // job a, job b and the shared depot
    a, _ := problem.Jobs.ByID("a")
    depot := problem.Fleet.Vehicles[0].Shift.Start.Location
    assert.Equal(t, depot, problem.Fleet.Vehicles[0].Shift.End.Location)
    assert.Greater(t, problem.Transport.Distance(0, depot, a.Place.Location, 0), 0.0)
}

func TestBuildProblemFromMatrix(t *testing.T) {
    zero, one := 0, 1
    doc := &ProblemDoc{
        Jobs:     []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Index: &one}, Delivery: []int{1}}},
        Vehicles: []VehicleDoc{{ID: "v", Capacity: []int{1}, Costs: CostsDoc{Distance: 1}, Shift: ShiftDoc{Start: ShiftPlaceDoc{PlaceDoc: PlaceDoc{Index: &zero}}}}},
        Matrices: []MatrixDoc{{Durations: []float64{0, 5, 5, 0}, Distances: []float64{0, 7, 7, 0}}},
    }
    problem, err := BuildProblem(doc)
    require.NoError(t, err)
    assert.Equal(t, 7.0, problem.Transport.Distance(0, 0, 1, 0))
    assert.Nil(t, problem.Fleet.Vehicles[0].Shift.End)
}

func TestBuildProblemRejects(t *testing.T) {
    zero, five := 0, 5
    point := &GeoPoint{Lat: 1, Lng: 1}
    vehicle := VehicleDoc{ID: "v", Shift: ShiftDoc{Start: ShiftPlaceDoc{PlaceDoc: PlaceDoc{Location: point}}}}
    cases := map[string]*ProblemDoc{
        "no vehicles":    {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point}}}},
        "duplicate job":  {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point}}, {ID: "a", PlaceDoc: PlaceDoc{Location: point}}}, Vehicles: []VehicleDoc{vehicle}},
        "no location":    {Jobs: []JobDoc{{ID: "a"}}, Vehicles: []VehicleDoc{vehicle}},
        "mixed location": {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point, Index: &zero}}}, Vehicles: []VehicleDoc{vehicle}},
        "bad window":     {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point}, TimeWindows: [][2]float64{{10, 5}}}}, Vehicles: []VehicleDoc{vehicle}},
        "unknown lock":   {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point}}}, Vehicles: []VehicleDoc{vehicle}, Locks: []LockDoc{{VehicleID: "v", Jobs: []string{"x"}}}},
        "lock vehicle":   {Jobs: []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Location: point}}}, Vehicles: []VehicleDoc{vehicle}, Locks: []LockDoc{{VehicleID: "w", Jobs: []string{"a"}}}},
        "index range": {
            Jobs:     []JobDoc{{ID: "a", PlaceDoc: PlaceDoc{Index: &five}}},
            Vehicles: []VehicleDoc{{ID: "v", Shift: ShiftDoc{Start: ShiftPlaceDoc{PlaceDoc: PlaceDoc{Index: &zero}}}}},
            Matrices: []MatrixDoc{{Durations: []float64{0}, Distances: []float64{0}}},
        },
        "bad matrix": {Vehicles: []VehicleDoc{vehicle}, Matrices: []MatrixDoc{{Durations: []float64{0, 1}, Distances: []float64{0, 1}}}},
    }
    for name, doc := range cases {
        _, err := BuildProblem(doc)
        assert.True(t, errors.Is(err, ErrInvalidProblem), "%s: got %v", name, err)
    }
    _, err := ParseProblemJSON([]byte("{"))
    assert.True(t, errors.Is(err, ErrInvalidProblem))
}

func TestFromSolution(t *testing.T) {
    doc, err := ParseProblemJSON([]byte(`{
        "jobs": [
            {"id": "near", "location": {"lat": 0, "lng": 0.01}, "delivery": [1]},
            {"id": "heavy", "location": {"lat": 0, "lng": 0.02}, "delivery": [5]}
        ],
        "vehicles": [{"id": "v", "capacity": [1], "costs": {"distance": 1},
            "shift": {"start": {"location": {"lat": 0, "lng": 0}}, "end": {"location": {"lat": 0, "lng": 0}}}}]
    }`))
    require.NoError(t, err)
    problem, err := BuildProblem(doc)
    require.NoError(t, err)

    h := &construction.InsertionHeuristic{}
    ctx := construction.NewInsertionContext(problem, models.NewRandom(1))
    ctx = h.Process(ctx, construction.AllJobSelector{}, construction.AllRouteSelector{}, construction.BestResultSelector{}, nil)
    out := FromSolution(ctx.ToSolution(), problem.Transport)

    require.Len(t, out.Routes, 1)
    stops := out.Routes[0].Stops
    require.Len(t, stops, 3)
    assert.Equal(t, []string{"start", "job", "end"}, []string{stops[0].Kind, stops[1].Kind, stops[2].Kind})
    assert.Equal(t, "near", stops[1].JobID)
    assert.InDelta(t, 2*1111.95, out.Routes[0].Distance, 1)
    assert.True(t, math.Abs(out.Cost.Actual-out.Routes[0].Distance) < 1e-6)

    require.Len(t, out.Unassigned, 1)
    assert.Equal(t, "heavy", out.Unassigned[0].JobID)
    assert.Equal(t, construction.CapacityConstraintCode, out.Unassigned[0].Code)
    assert.Equal(t, Reason(construction.CapacityConstraintCode), out.Unassigned[0].Reason)
}
