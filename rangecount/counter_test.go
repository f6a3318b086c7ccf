package rangecount

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
	"github.com/hupe1980/pointcount/store/badgerstore"
	"github.com/hupe1980/pointcount/store/memstore"
	"github.com/hupe1980/pointcount/store/storetest"
	"github.com/hupe1980/pointcount/testutil"
)

type backend struct {
	name string
	open func(t *testing.T) store.Store
}

func backends() []backend {
	return []backend{
		{"memstore", func(t *testing.T) store.Store { return memstore.New() }},
		{"badgerstore", func(t *testing.T) store.Store {
			s, err := badgerstore.Open(func(o *badgerstore.Options) { o.InMemory = true })
			require.NoError(t, err)
			return s
		}},
	}
}

func filled(t *testing.T, b backend, coords [][2]float64) (store.Store, []geom.Point) {
	t.Helper()
	s := b.open(t)
	t.Cleanup(func() { _ = s.Close() })
	return s, storetest.Fill(t, s, coords...)
}

func TestCrossValidation(t *testing.T) {
	rng := testutil.NewRNG(4711)

	datasets := map[string][][2]float64{
		"uniform":   rng.UniformCoords(400, -100, 100),
		"lattice":   rng.LatticeCoords(400, 5, 10),
		"clustered": rng.ClusteredCoords(400, 4, 100, 5),
	}

	configs := map[string][]func(o *Options){
		"default":   nil,
		"legacy":    {WithLegacyThresholds()},
		"split":     {func(o *Options) { o.MinPoints = 1; o.XFactor = 0; o.YFactor = 0 }},
		"parallel":  {WithParallelism(4), func(o *Options) { o.MinPoints = 2 }},
		"smallpage": {func(o *Options) { o.PageSize = 3 }},
	}

	radii := []float64{0, 0.5, 5, 12.5, 40, 1000}

	for _, b := range backends() {
		for dname, coords := range datasets {
			t.Run(b.name+"/"+dname, func(t *testing.T) {
				s, pts := filled(t, b, coords)
				ctx := context.Background()
				brute := NewBruteForce(s)

				for cname, optFns := range configs {
					counter := New(s, optFns...)

					for i := 0; i < 10; i++ {
						center := pts[rng.Intn(len(pts))]
						for _, r := range radii {
							want := testutil.CountWithin(coords, center.X, center.Y, r)

							got, err := counter.Count(ctx, center, r)
							require.NoError(t, err)
							assert.Equal(t, want, got, "%s: center=%v r=%v", cname, center, r)

							bf, err := brute.Count(ctx, center, r)
							require.NoError(t, err)
							assert.Equal(t, want, bf, "brute force: center=%v r=%v", center, r)
						}
					}
				}
			})
		}
	}
}

func TestSelfExclusionExample(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, pts := filled(t, b, [][2]float64{{0, 0}, {3, 4}, {10, 10}})

			n, err := New(s).Count(context.Background(), pts[0], 5)
			require.NoError(t, err)
			assert.Equal(t, 2, n, "raw count includes the center")

			n, err = NewBruteForce(s).Count(context.Background(), pts[0], 5)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestMonotonicity(t *testing.T) {
	rng := testutil.NewRNG(42)
	coords := rng.UniformCoords(300, 0, 50)

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, pts := filled(t, b, coords)
			counter := New(s)
			center := pts[0]

			prev := 0
			for r := 0.0; r <= 80; r += 2.5 {
				n, err := counter.Count(context.Background(), center, r)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, n, prev, "r=%v", r)
				prev = n
			}
			assert.Equal(t, len(coords), prev)
		})
	}
}

func TestEmptyRegion(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer s.Close()
			ctx := context.Background()

			n, err := New(s).Count(ctx, geom.Point{X: 1, Y: 1}, 10)
			require.NoError(t, err)
			assert.Zero(t, n)

			storetest.Fill(t, s, [2]float64{100, 100}, [2]float64{-100, 100})

			res, err := New(s).Run(ctx, geom.Point{X: 0, Y: 0}, 10)
			require.NoError(t, err)
			assert.Zero(t, res.Count)
			assert.Equal(t, int64(1), res.Nodes, "a far-away region is rejected by its first aggregate")
		})
	}
}

func TestRadiusZero(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, pts := filled(t, b, [][2]float64{{2, 2}, {2, 2}, {2, 2.000001}, {5, 6}})
			ctx := context.Background()

			n, err := New(s).Count(ctx, pts[0], 0)
			require.NoError(t, err)
			assert.Equal(t, 2, n, "only exact duplicates of the center")

			// Boundary distance is inclusive: (5, 6) is exactly 5 from (2, 2).
			n, err = New(s).Count(ctx, pts[0], 5)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
		})
	}
}

func TestOrderIndependence(t *testing.T) {
	rng := testutil.NewRNG(7)
	coords := rng.UniformCoords(200, -20, 20)
	shuffled := append([][2]float64(nil), coords...)
	rng.Shuffle(shuffled)

	a, _ := filled(t, backends()[0], coords)
	b, _ := filled(t, backends()[0], shuffled)
	ctx := context.Background()

	for _, r := range []float64{1, 4, 9, 30} {
		center := geom.Point{X: coords[3][0], Y: coords[3][1]}

		na, err := New(a).Count(ctx, center, r)
		require.NoError(t, err)
		nb, err := New(b).Count(ctx, center, r)
		require.NoError(t, err)
		assert.Equal(t, na, nb, "r=%v", r)
	}
}

func TestThresholdsAgreeWithBruteForce(t *testing.T) {
	// Wide and tall strips make the x-extent/10 and unscaled y-extent
	// triggers fire on different rectangles.
	rng := testutil.NewRNG(99)
	var coords [][2]float64
	for range 300 {
		coords = append(coords, [2]float64{rng.Range(-60, 60), rng.Range(-3, 3)})
		coords = append(coords, [2]float64{rng.Range(-3, 3), rng.Range(-60, 60)})
	}

	s, _ := filled(t, backends()[0], coords)
	ctx := context.Background()

	normalised := New(s, func(o *Options) { o.MinPoints = 4 })
	legacy := New(s, WithLegacyThresholds(), func(o *Options) { o.MinPoints = 4 })
	assert.Equal(t, 1.0, legacy.Options().YFactor)
	assert.Equal(t, 0.1, normalised.Options().YFactor)

	for _, c := range [][3]float64{{0, 0, 10}, {30, 0, 8}, {0, 30, 8}, {20, 20, 25}, {-45, 1, 6}} {
		center := geom.Point{X: c[0], Y: c[1]}
		want := testutil.CountWithin(coords, c[0], c[1], c[2])

		n, err := normalised.Count(ctx, center, c[2])
		require.NoError(t, err)
		assert.Equal(t, want, n, "normalised %v", c)

		n, err = legacy.Count(ctx, center, c[2])
		require.NoError(t, err)
		assert.Equal(t, want, n, "legacy %v", c)
	}
}

// noSuccessor hides every successor so each split degenerates.
type noSuccessor struct {
	store.Reader
	calls atomic.Int64
}

func (r *noSuccessor) SuccessorGreater(context.Context, geom.Axis, float64, geom.Rect) (float64, bool, error) {
	r.calls.Add(1)
	return 0, false, nil
}

func TestDegenerateSplitFallsBackToScan(t *testing.T) {
	rng := testutil.NewRNG(3)
	coords := rng.UniformCoords(200, -10, 10)
	s, _ := filled(t, backends()[0], coords)

	reader := &noSuccessor{Reader: s}
	counter := New(reader, func(o *Options) { o.MinPoints = 1 })

	res, err := counter.Run(context.Background(), geom.Point{}, 5)
	require.NoError(t, err)
	assert.Equal(t, testutil.CountWithin(coords, 0, 0, 5), res.Count)
	assert.Equal(t, int64(1), reader.calls.Load())
	assert.Equal(t, int64(1), res.Scans)
	assert.Zero(t, res.Splits)
}

func TestDuplicateHeavySplits(t *testing.T) {
	// Two distinct x values, many copies each: the mean always separates them.
	var coords [][2]float64
	for i := range 100 {
		coords = append(coords, [2]float64{0, float64(i % 2)}, [2]float64{1, float64(i % 2)})
	}
	s, _ := filled(t, backends()[0], coords)

	res, err := New(s, func(o *Options) { o.MinPoints = 1; o.XFactor = 0; o.YFactor = 0 }).
		Run(context.Background(), geom.Point{X: 0, Y: 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, testutil.CountWithin(coords, 0, 0, 1), res.Count)
	assert.Positive(t, res.Splits)
}

type slowReader struct {
	store.Reader
	delay time.Duration
}

func (r slowReader) RectStats(ctx context.Context, rect geom.Rect) (geom.RangeStats, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return geom.RangeStats{}, ctx.Err()
	}
	return r.Reader.RectStats(ctx, rect)
}

func TestBudgets(t *testing.T) {
	rng := testutil.NewRNG(11)
	coords := rng.UniformCoords(500, -50, 50)
	s, _ := filled(t, backends()[0], coords)
	ctx := context.Background()
	split := func(o *Options) { o.MinPoints = 1; o.XFactor = 0; o.YFactor = 0 }

	t.Run("Nodes", func(t *testing.T) {
		_, err := New(s, split, func(o *Options) { o.MaxNodes = 1 }).Count(ctx, geom.Point{}, 20)
		require.ErrorIs(t, err, ErrAborted)

		var abort *AbortError
		require.True(t, errors.As(err, &abort))
		assert.Equal(t, "node budget exceeded", abort.Reason)
	})

	t.Run("Depth", func(t *testing.T) {
		_, err := New(s, split, func(o *Options) { o.MaxDepth = 1 }).Count(ctx, geom.Point{}, 20)
		require.ErrorIs(t, err, ErrAborted)
	})

	t.Run("Time", func(t *testing.T) {
		slow := slowReader{Reader: s, delay: 50 * time.Millisecond}
		_, err := New(slow, func(o *Options) { o.Timeout = 5 * time.Millisecond }).Count(ctx, geom.Point{}, 20)
		require.ErrorIs(t, err, ErrAborted)

		_, err = NewBruteForce(slowScanner{Reader: s}, func(o *Options) { o.Timeout = 5 * time.Millisecond }).
			Count(ctx, geom.Point{}, 20)
		require.ErrorIs(t, err, ErrAborted)
	})

	t.Run("CallerCancel", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New(s).Count(cctx, geom.Point{}, 20)
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrAborted)
	})

	t.Run("Unlimited", func(t *testing.T) {
		n, err := New(s, split, func(o *Options) { o.MaxDepth = 0; o.MaxNodes = 0 }).Count(ctx, geom.Point{}, 20)
		require.NoError(t, err)
		assert.Equal(t, testutil.CountWithin(coords, 0, 0, 20), n)
	})
}

type slowScanner struct {
	store.Reader
}

func (r slowScanner) Scan(ctx context.Context, rect geom.Rect, pageSize int) iter.Seq2[[]geom.Point, error] {
	return func(yield func([]geom.Point, error) bool) {
		<-ctx.Done()
		yield(nil, ctx.Err())
	}
}

type failingReader struct {
	store.Reader
}

var errBoom = errors.New("boom")

func (failingReader) RectStats(context.Context, geom.Rect) (geom.RangeStats, error) {
	return geom.RangeStats{}, errBoom
}

func TestStoreErrorsPropagate(t *testing.T) {
	_, err := New(failingReader{Reader: memstore.New()}).Count(context.Background(), geom.Point{}, 1)
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, ErrAborted)
}

func TestInvalidInput(t *testing.T) {
	s := memstore.New()
	defer s.Close()
	ctx := context.Background()

	for _, c := range []RangeCounter{New(s), NewBruteForce(s)} {
		t.Run(fmt.Sprintf("%T", c), func(t *testing.T) {
			_, err := c.Count(ctx, geom.Point{}, -1)
			assert.ErrorIs(t, err, ErrInvalidRadius)

			_, err = c.Count(ctx, geom.Point{X: nan()}, 1)
			assert.ErrorIs(t, err, ErrInvalidCenter)
		})
	}
}
