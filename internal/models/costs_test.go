package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectiveCostTotal(t *testing.T) {
	cases := []struct {
		name            string
		actual, penalty float64
		wantActual      float64
		wantPenalty     float64
	}{
		{"zero", 0, 0, 0, 0},
		{"both", 12.5, 100, 12.5, 100},
		{"negative actual is clamped", -3, 4, 0, 4},
		{"negative penalty is clamped", 7, -1, 7, 0},
		{"nan is clamped", math.NaN(), 1, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewObjectiveCost(tc.actual, tc.penalty)
			assert.Equal(t, tc.wantActual, c.Actual)
			assert.Equal(t, tc.wantPenalty, c.Penalty)
			assert.Equal(t, c.Actual+c.Penalty, c.Total())
			assert.GreaterOrEqual(t, c.Actual, 0.0)
			assert.GreaterOrEqual(t, c.Penalty, 0.0)
		})
	}
}

func TestCompareFloats(t *testing.T) {
	assert.Equal(t, 0, CompareFloats(1.0, 1.0+1e-12))
	assert.Equal(t, -1, CompareFloats(1, 2))
	assert.Equal(t, 1, CompareFloats(2, 1))
}

func TestLoadArithmetic(t *testing.T) {
	a := Load{1, 2}
	b := Load{3}
	assert.Equal(t, Load{4, 2}, a.Add(b))
	assert.Equal(t, Load{-2, 2}, a.Sub(b))
	assert.Equal(t, Load{3, 2}, a.Max(b))
	assert.True(t, a.Fits(Load{1, 2}))
	assert.False(t, a.Fits(Load{1}))
	assert.True(t, Load{}.IsZero())
	assert.Equal(t, Load{1, 2}, a, "operands are not modified")
}

func TestTimeWindowOverlap(t *testing.T) {
	morning := TimeWindow{Start: 0, End: 100}
	assert.Equal(t, 40.0, morning.Overlap(TimeWindow{Start: 60, End: 200}))
	assert.Equal(t, 40.0, TimeWindow{Start: 60, End: 200}.Overlap(morning))
	assert.Equal(t, 0.0, morning.Overlap(TimeWindow{Start: 150, End: 200}))
	assert.Equal(t, 100.0, morning.Overlap(UnlimitedTimeWindow()))
}
