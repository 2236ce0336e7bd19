package construction

import "vrpcore/internal/models"

// StateKey identifies a cached value in a route state.
type StateKey int

const (
	// LatestArrivalKey is the latest arrival at an activity which keeps the rest of the tour feasible.
	LatestArrivalKey StateKey = iota + 1
	// CurrentLoadKey is the load after an activity.
	CurrentLoadKey
	// MaxPastLoadKey is the max load from the start up to an activity.
	MaxPastLoadKey
	// MaxFutureLoadKey is the max load from an activity up to the end.
	MaxFutureLoadKey
	TotalDistanceKey
	TotalDurationKey
)

// RouteState caches route and activity level values computed by the pipeline modules.
type RouteState struct {
	route    map[StateKey]any
	activity map[StateKey][]any
}

func NewRouteState() *RouteState {
	return &RouteState{route: map[StateKey]any{}, activity: map[StateKey][]any{}}
}

func (s *RouteState) RouteValue(key StateKey) (any, bool) {
	v, ok := s.route[key]
	return v, ok
}

func (s *RouteState) PutRouteValue(key StateKey, value any) {
	s.route[key] = value
}

// ActivityValue returns the value of key at activity index idx.
func (s *RouteState) ActivityValue(key StateKey, idx int) (any, bool) {
	vals, ok := s.activity[key]
	if !ok || idx < 0 || idx >= len(vals) {
		return nil, false
	}
	return vals[idx], vals[idx] != nil
}

// PutActivityValues replaces all values of key, indexed by activity.
func (s *RouteState) PutActivityValues(key StateKey, values []any) {
	s.activity[key] = values
}

// RouteFloat returns a route level float or zero.
func (s *RouteState) RouteFloat(key StateKey) float64 {
	v, _ := s.RouteValue(key)
	f, _ := v.(float64)
	return f
}

func (s *RouteState) ActivityFloat(key StateKey, idx int) (float64, bool) {
	v, ok := s.ActivityValue(key, idx)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func (s *RouteState) ActivityLoad(key StateKey, idx int) models.Load {
	v, ok := s.ActivityValue(key, idx)
	if !ok {
		return nil
	}
	l, _ := v.(models.Load)
	return l
}

// Copy returns an independent state. Stored values are treated as immutable.
func (s *RouteState) Copy() *RouteState {
	c := NewRouteState()
	for k, v := range s.route {
		c.route[k] = v
	}
	for k, v := range s.activity {
		c.activity[k] = append([]any(nil), v...)
	}
	return c
}
