package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.False(t, NewRect(0, 0, 0, 0).Empty())
		assert.True(t, NewRect(1, 0, 0, 0).Empty())
		assert.True(t, NewRect(0, 1, 0, 0).Empty())
		assert.True(t, NewRect(math.NaN(), 0, 1, 1).Empty())
		assert.False(t, Everything().Empty())
	})

	t.Run("ContainsIsClosed", func(t *testing.T) {
		r := NewRect(0, 0, 10, 5)
		assert.True(t, r.Contains(0, 0))
		assert.True(t, r.Contains(10, 5))
		assert.False(t, r.Contains(10.0001, 5))
	})

	t.Run("Intersect", func(t *testing.T) {
		got := NewRect(0, 0, 10, 10).Intersect(Square(10, 10, 2))
		assert.Equal(t, NewRect(8, 8, 10, 10), got)
		assert.True(t, NewRect(0, 0, 1, 1).Intersect(NewRect(2, 2, 3, 3)).Empty())
	})

	t.Run("LongerAxis", func(t *testing.T) {
		assert.Equal(t, AxisX, NewRect(0, 0, 4, 4).LongerAxis())
		assert.Equal(t, AxisX, NewRect(0, 0, 5, 4).LongerAxis())
		assert.Equal(t, AxisY, NewRect(0, 0, 3, 4).LongerAxis())
	})

	t.Run("Split", func(t *testing.T) {
		lo, hi := NewRect(0, 0, 10, 4).Split(AxisX, 3, 6)
		assert.Equal(t, NewRect(0, 0, 3, 4), lo)
		assert.Equal(t, NewRect(6, 0, 10, 4), hi)

		lo, hi = NewRect(0, 0, 4, 10).Split(AxisY, 2, 7)
		assert.Equal(t, NewRect(0, 0, 4, 2), lo)
		assert.Equal(t, NewRect(0, 7, 4, 10), hi)
	})

	t.Run("OrbRoundTrip", func(t *testing.T) {
		r := NewRect(-1, -2, 3, 4)
		assert.Equal(t, r, FromOrb(r.Orb()))
	})
}

func TestRectDistances(t *testing.T) {
	r := NewRect(0, 0, 4, 3)

	tests := []struct {
		name     string
		x, y     float64
		min, max float64
	}{
		{"Inside", 1, 1, 0, math.Sqrt(9 + 4)},
		{"Corner", 0, 0, 0, 5},
		{"Left", -3, 1, 3, math.Sqrt(49 + 4)},
		{"Diagonal", 7, 7, 5, math.Sqrt(49 + 49)},
		{"Above", 2, 5, 2, math.Sqrt(4 + 25)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.min, r.MinDist(tt.x, tt.y), 1e-12)
			assert.InDelta(t, tt.max, r.MaxDist(tt.x, tt.y), 1e-12)
		})
	}

	t.Run("AgreesWithPointDistance", func(t *testing.T) {
		// The farthest corner of the tight box of {(1,1), (3,4)} seen from the
		// origin is (3,4) itself.
		box := NewRect(1, 1, 3, 4)
		assert.Equal(t, Distance(0, 0, 3, 4), box.MaxDist(0, 0))
		assert.Equal(t, Distance(0, 0, 1, 1), box.MinDist(0, 0))
		assert.True(t, Within(Point{X: 3, Y: 4}, 0, 0, 5))
		assert.False(t, Within(Point{X: 3, Y: 4}, 0, 0, 4.999))
	})
}

func TestRangeStats(t *testing.T) {
	var s RangeStats
	assert.True(t, s.Empty())
	assert.Equal(t, 0.0, s.Mean(AxisX))

	s.Add(Point{X: 1, Y: 5})
	s.Add(Point{X: 3, Y: -1})
	s.AddCoords(2, 2)

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, NewRect(1, -1, 3, 5), s.Bounds)
	assert.InDelta(t, 2.0, s.Mean(AxisX), 1e-12)
	assert.InDelta(t, 2.0, s.Mean(AxisY), 1e-12)
}
