package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVehicle(id, typeID string, withEnd bool) *Vehicle {
	v := &Vehicle{ID: id, TypeID: typeID, Shift: Shift{Start: ShiftPlace{Location: 0, Time: 0}}}
	if withEnd {
		v.Shift.End = &ShiftPlace{Location: 0, Time: 1000}
	}
	return v
}

func TestTourInsertRemove(t *testing.T) {
	actor := &Actor{Vehicle: testVehicle("v1", "t1", true)}
	tour := NewTour(actor)
	require.Equal(t, 2, tour.Total())
	assert.Equal(t, 1, tour.Legs())
	assert.False(t, tour.HasJobs())

	j1, j2 := &Job{ID: "j1"}, &Job{ID: "j2"}
	tour.Insert(&Activity{Job: j1}, 1)
	tour.Insert(&Activity{Job: j2}, 10)
	assert.Equal(t, []*Job{j1, j2}, tour.Jobs())
	assert.NotNil(t, tour.End(), "end stays last")
	assert.Nil(t, tour.End().Job)

	cp := tour.Copy()
	assert.True(t, tour.Remove(j1))
	assert.False(t, tour.Remove(j1))
	assert.Equal(t, []*Job{j2}, tour.Jobs())
	assert.Equal(t, []*Job{j1, j2}, cp.Jobs(), "copy is independent")
}

func TestOpenTourLegs(t *testing.T) {
	tour := NewTour(&Actor{Vehicle: testVehicle("v1", "t1", false)})
	assert.Equal(t, 1, tour.Legs())
	assert.Nil(t, tour.End())
	tour.Insert(&Activity{Job: &Job{ID: "a"}}, 1)
	assert.Equal(t, 2, tour.Legs())
	assert.Equal(t, 1, tour.JobCount())
}

func TestRegistryNextYieldsOneActorPerType(t *testing.T) {
	fleet := NewFleet([]*Vehicle{
		testVehicle("v1", "small", true),
		testVehicle("v2", "small", true),
		testVehicle("v3", "large", true),
	})
	reg := NewRegistry(fleet)
	next := reg.Next()
	require.Len(t, next, 2)
	assert.Equal(t, "v1", next[0].Vehicle.ID)
	assert.Equal(t, "v3", next[1].Vehicle.ID)

	require.True(t, reg.Use(next[0]))
	assert.False(t, reg.Use(next[0]))
	cp := reg.Copy()
	assert.Equal(t, "v2", reg.Next()[0].Vehicle.ID)

	reg.Free(next[0])
	assert.Equal(t, "v1", reg.Next()[0].Vehicle.ID)
	assert.True(t, cp.IsUsed(next[0]), "copy keeps its own usage")
}
