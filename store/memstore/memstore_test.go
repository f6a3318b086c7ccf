package memstore

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
	"github.com/hupe1980/pointcount/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New()
	})
}

func TestFirstID(t *testing.T) {
	s := New(func(o *Options) { o.FirstID = 100 })
	defer s.Close()

	p, err := s.Insert(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, geom.ID(100), p.ID)
}

func TestRectStatsIntersection(t *testing.T) {
	s := New()
	defer s.Close()
	ctx := context.Background()

	// A cross: neither column range alone identifies the centre.
	storetest.Fill(t, s,
		[2]float64{0, 5}, [2]float64{5, 5}, [2]float64{10, 5},
		[2]float64{5, 0}, [2]float64{5, 10},
	)

	stats, err := s.RectStats(ctx, geom.NewRect(4, 4, 6, 6))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, geom.NewRect(5, 5, 5, 5), stats.Bounds)

	stats, err = s.RectStats(ctx, geom.NewRect(-1, 4, 11, 6))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
}

func TestWriteToReadFrom(t *testing.T) {
	ctx := context.Background()
	src := New()
	pts := storetest.Fill(t, src, [2]float64{1, 2}, [2]float64{-3, 4.5}, [2]float64{0, 0})
	require.NoError(t, src.Delete(ctx, pts[2].ID))

	var buf bytes.Buffer
	n, err := src.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	dst := New()
	defer dst.Close()
	_, err = dst.ReadFrom(&buf)
	require.NoError(t, err)

	got, err := dst.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, pts[:2], got)

	stats, err := dst.RectStats(ctx, geom.Everything())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)

	// The id sequence survives, so deleted ids are not handed out again.
	p, err := dst.Insert(ctx, 7, 7)
	require.NoError(t, err)
	assert.Greater(t, p.ID, pts[2].ID)
}

func TestReadFromRejectsGarbage(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.ReadFrom(bytes.NewReader([]byte("not a snapshot at all, really")))
	assert.ErrorIs(t, err, ErrBadSnapshot)

	_, err = s.ReadFrom(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
