// Package storetest provides a conformance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

// Factory creates an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises every store.Store operation against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CRUD", func(t *testing.T) { testCRUD(t, newStore(t)) })
	t.Run("Find", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("RectStats", func(t *testing.T) { testRectStats(t, newStore(t)) })
	t.Run("Neighbours", func(t *testing.T) { testNeighbours(t, newStore(t)) })
	t.Run("Scan", func(t *testing.T) { testScan(t, newStore(t)) })
	t.Run("InvalidCoordinates", func(t *testing.T) { testInvalid(t, newStore(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, newStore(t)) })
}

// Fill inserts the given coordinate pairs and returns the stored points.
func Fill(t testing.TB, s store.Store, coords ...[2]float64) []geom.Point {
	t.Helper()
	ctx := context.Background()
	out := make([]geom.Point, 0, len(coords))
	for _, c := range coords {
		p, err := s.Insert(ctx, c[0], c[1])
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func testCRUD(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	p, err := s.Insert(ctx, 1, 2)
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, 1.0, p.X)
	assert.Equal(t, 2.0, p.Y)

	q, err := s.Insert(ctx, 3, 4)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, q.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, s.Update(ctx, p.ID, 10, 20))
	got, err = s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, geom.Point{ID: p.ID, X: 10, Y: 20}, got)

	stats, err := s.RectStats(ctx, geom.NewRect(0, 0, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count, "moved point must leave its old position")

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Delete(ctx, p.ID))
	_, err = s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, p.ID), store.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, p.ID, 0, 0), store.ErrNotFound)

	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	r, err := s.Insert(ctx, 5, 6)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, r.ID, "ids are never reused")
}

func testFind(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	pts := Fill(t, s, [2]float64{1, 1}, [2]float64{1, 2}, [2]float64{2, 1})

	got, ok, err := s.Find(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pts[1], got)

	_, ok, err = s.Find(ctx, 2, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testList(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	var coords [][2]float64
	for i := range 10 {
		coords = append(coords, [2]float64{float64(10 - i), float64(i)})
	}
	pts := Fill(t, s, coords...)

	page, err := s.List(ctx, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, pts[:4], page)

	page, err = s.List(ctx, 8, 4)
	require.NoError(t, err)
	assert.Equal(t, pts[8:], page)

	page, err = s.List(ctx, 10, 4)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testRectStats(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	Fill(t, s,
		[2]float64{0, 0},
		[2]float64{2, 1},
		[2]float64{4, 3},
		[2]float64{-5, 8},
		[2]float64{2, 9},
	)

	t.Run("All", func(t *testing.T) {
		stats, err := s.RectStats(ctx, geom.Everything())
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Count)
		assert.Equal(t, geom.NewRect(-5, 0, 4, 9), stats.Bounds)
		assert.InDelta(t, 3.0, stats.SumX, 1e-12)
		assert.InDelta(t, 21.0, stats.SumY, 1e-12)
	})

	t.Run("ClosedBoundsAndTightBox", func(t *testing.T) {
		stats, err := s.RectStats(ctx, geom.NewRect(0, 0, 4, 3))
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Count)
		assert.Equal(t, geom.NewRect(0, 0, 4, 3), stats.Bounds)

		stats, err = s.RectStats(ctx, geom.NewRect(1, -10, 10, 2))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Count)
		assert.Equal(t, geom.NewRect(2, 1, 2, 1), stats.Bounds)
	})

	t.Run("Empty", func(t *testing.T) {
		stats, err := s.RectStats(ctx, geom.NewRect(10, 10, 20, 20))
		require.NoError(t, err)
		assert.True(t, stats.Empty())

		stats, err = s.RectStats(ctx, geom.NewRect(4, 0, 0, 4))
		require.NoError(t, err)
		assert.True(t, stats.Empty())
	})
}

func testNeighbours(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	Fill(t, s,
		[2]float64{1, 0},
		[2]float64{3, 0},
		[2]float64{3, 50},
		[2]float64{5, 0},
		[2]float64{8, 0},
	)
	r := geom.NewRect(0, -1, 10, 1)

	v, ok, err := s.PredecessorOrEqual(ctx, geom.AxisX, 3, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok, err = s.PredecessorOrEqual(ctx, geom.AxisX, 4.5, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok, err = s.PredecessorOrEqual(ctx, geom.AxisX, 0.5, r)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.SuccessorGreater(ctx, geom.AxisX, 3, r)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok, err = s.SuccessorGreater(ctx, geom.AxisX, 8, r)
	require.NoError(t, err)
	assert.False(t, ok)

	// The rectangle constrains the other axis: (3, 50) is outside r.
	v, ok, err = s.SuccessorGreater(ctx, geom.AxisY, 0, geom.NewRect(0, -1, 10, 100))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok, err = s.SuccessorGreater(ctx, geom.AxisY, 0, r)
	require.NoError(t, err)
	assert.False(t, ok)

	// The rectangle constrains the split axis too.
	_, ok, err = s.SuccessorGreater(ctx, geom.AxisX, 3, geom.NewRect(0, -1, 4, 1))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = s.PredecessorOrEqual(ctx, geom.AxisX, 100, geom.NewRect(4, -1, 6, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func testScan(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	var coords [][2]float64
	for i := range 25 {
		coords = append(coords, [2]float64{float64(i % 5), float64(i / 5)})
	}
	pts := Fill(t, s, coords...)

	r := geom.NewRect(1, 1, 3, 3)
	var want []geom.ID
	for _, p := range pts {
		if r.ContainsPoint(p) {
			want = append(want, p.ID)
		}
	}

	var (
		got   []geom.ID
		pages int
	)
	for page, err := range s.Scan(ctx, r, 4) {
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page), 4)
		pages++
		for _, p := range page {
			assert.True(t, r.ContainsPoint(p))
			got = append(got, p.ID)
		}
	}
	slices.Sort(got)
	slices.Sort(want)
	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)

	// Early break must not deadlock or leak.
	for range s.Scan(ctx, geom.Everything(), 2) {
		break
	}

	total := 0
	for page, err := range s.Scan(ctx, geom.Everything(), 0) {
		require.NoError(t, err)
		total += len(page)
	}
	assert.Equal(t, 25, total)
}

func testInvalid(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()

	_, err := s.Insert(ctx, nan(), 0)
	assert.ErrorIs(t, err, store.ErrInvalidCoordinate)

	p, err := s.Insert(ctx, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Update(ctx, p.ID, 0, inf()), store.ErrInvalidCoordinate)
}

func testClosed(t *testing.T, s store.Store) {
	ctx := context.Background()
	Fill(t, s, [2]float64{0, 0})
	require.NoError(t, s.Close())

	_, err := s.RectStats(ctx, geom.Everything())
	assert.Error(t, err)
	_, err = s.Insert(ctx, 1, 1)
	assert.Error(t, err)
}
