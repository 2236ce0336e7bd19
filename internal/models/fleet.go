package models

// VehicleCosts are the cost rates of a vehicle type.
type VehicleCosts struct {
	Fixed          float64
	PerDistance    float64
	PerDrivingTime float64
	PerWaitingTime float64
	PerServiceTime float64
}

// ShiftPlace is a shift start or end point.
type ShiftPlace struct {
	Location Location
	Time     Timestamp
}

// Shift has a mandatory start and an optional end. A nil End means an open tour.
type Shift struct {
	Start ShiftPlace
	End   *ShiftPlace
}

type Vehicle struct {
	ID       string
	TypeID   string
	Profile  int
	Costs    VehicleCosts
	Capacity Load
	Skills   []string
	Shift    Shift
}

// HasSkills reports whether the vehicle provides all given skills.
func (v *Vehicle) HasSkills(skills []string) bool {
	for _, s := range skills {
		found := false
		for _, vs := range v.Skills {
			if vs == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Actor is a vehicle able to serve a tour.
type Actor struct {
	Vehicle *Vehicle
}

// Fleet expands vehicles into actors.
type Fleet struct {
	Vehicles []*Vehicle
	Actors   []*Actor
	Profiles []int
}

func NewFleet(vehicles []*Vehicle) *Fleet {
	f := &Fleet{Vehicles: vehicles}
	seen := map[int]bool{}
	for _, v := range vehicles {
		f.Actors = append(f.Actors, &Actor{Vehicle: v})
		if !seen[v.Profile] {
			seen[v.Profile] = true
			f.Profiles = append(f.Profiles, v.Profile)
		}
	}
	return f
}

// ActorByVehicle finds the actor of the given vehicle id.
func (f *Fleet) ActorByVehicle(id string) (*Actor, bool) {
	for _, a := range f.Actors {
		if a.Vehicle.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Registry tracks which actors are already used by routes of one solution.
type Registry struct {
	actors []*Actor
	used   map[*Actor]bool
}

func NewRegistry(fleet *Fleet) *Registry {
	return &Registry{actors: fleet.Actors, used: map[*Actor]bool{}}
}

// Use marks the actor as used. It returns false when the actor was already taken.
func (r *Registry) Use(actor *Actor) bool {
	if r.used[actor] {
		return false
	}
	r.used[actor] = true
	return true
}

func (r *Registry) Free(actor *Actor) {
	delete(r.used, actor)
}

func (r *Registry) IsUsed(actor *Actor) bool {
	return r.used[actor]
}

// Available returns all free actors in fleet order.
func (r *Registry) Available() []*Actor {
	out := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		if !r.used[a] {
			out = append(out, a)
		}
	}
	return out
}

// Next returns the first free actor of every vehicle type, in fleet order.
func (r *Registry) Next() []*Actor {
	seen := map[string]bool{}
	var out []*Actor
	for _, a := range r.actors {
		if r.used[a] {
			continue
		}
		typeID := a.Vehicle.TypeID
		if typeID == "" {
			typeID = a.Vehicle.ID
		}
		if seen[typeID] {
			continue
		}
		seen[typeID] = true
		out = append(out, a)
	}
	return out
}

func (r *Registry) Copy() *Registry {
	used := make(map[*Actor]bool, len(r.used))
	for a, v := range r.used {
		used[a] = v
	}
	return &Registry{actors: r.actors, used: used}
}
