package rangecount

import (
	"context"
	"iter"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/resource"
	"github.com/hupe1980/pointcount/store"
	"github.com/hupe1980/pointcount/testutil"
)

func nan() float64 { return math.NaN() }

type pageCounter struct {
	store.Reader
	pages, size int
}

func (r *pageCounter) Scan(ctx context.Context, rect geom.Rect, pageSize int) iter.Seq2[[]geom.Point, error] {
	r.size = pageSize
	return func(yield func([]geom.Point, error) bool) {
		for page, err := range r.Reader.Scan(ctx, rect, pageSize) {
			r.pages++
			if !yield(page, err) {
				return
			}
		}
	}
}

func TestBruteForcePaging(t *testing.T) {
	rng := testutil.NewRNG(1)
	coords := rng.UniformCoords(250, 0, 10)
	s, _ := filled(t, backends()[0], coords)

	reader := &pageCounter{Reader: s}
	n, err := NewBruteForce(reader).Count(context.Background(), geom.Point{X: 5, Y: 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, testutil.CountWithin(coords, 5, 5, 3), n)
	assert.Equal(t, store.DefaultPageSize, reader.size)
	assert.Equal(t, 3, reader.pages)
}

func TestBruteForceThrottled(t *testing.T) {
	coords := testutil.NewRNG(2).UniformCoords(30, 0, 1)
	s, _ := filled(t, backends()[0], coords)

	rc := resource.NewController(resource.Config{ScanPagesPerSec: 1000})
	n, err := NewBruteForce(s, func(o *Options) {
		o.PageSize = 5
		o.Resource = rc
	}).Count(context.Background(), geom.Point{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
}
