package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/pointcount/geom"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Range returns a pseudo-random number in [lo, hi).
func (r *RNG) Range(lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// Shuffle shuffles coords in place.
func (r *RNG) Shuffle(coords [][2]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(coords), func(i, j int) {
		coords[i], coords[j] = coords[j], coords[i]
	})
}

// UniformCoords returns n points drawn uniformly from [lo, hi) on both axes.
func (r *RNG) UniformCoords(n int, lo, hi float64) [][2]float64 {
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{r.Range(lo, hi), r.Range(lo, hi)}
	}
	return out
}

// LatticeCoords returns n points whose coordinates are drawn from only k
// distinct values per axis, spaced step apart and centred on the origin.
// The result has many exact duplicates.
func (r *RNG) LatticeCoords(n, k int, step float64) [][2]float64 {
	offset := float64(k-1) / 2
	out := make([][2]float64, n)
	for i := range out {
		out[i] = [2]float64{
			(float64(r.Intn(k)) - offset) * step,
			(float64(r.Intn(k)) - offset) * step,
		}
	}
	return out
}

// ClusteredCoords returns n points spread normally around the given number
// of uniformly placed cluster centres in [-extent, extent).
func (r *RNG) ClusteredCoords(n, clusters int, extent, spread float64) [][2]float64 {
	centres := r.UniformCoords(clusters, -extent, extent)
	out := make([][2]float64, n)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range out {
		c := centres[r.rand.Intn(clusters)]
		out[i] = [2]float64{
			c[0] + r.rand.NormFloat64()*spread,
			c[1] + r.rand.NormFloat64()*spread,
		}
	}
	return out
}

// CountWithin returns the exact number of coords within radius of (x, y).
func CountWithin(coords [][2]float64, x, y, radius float64) int {
	n := 0
	for _, c := range coords {
		if geom.Distance(x, y, c[0], c[1]) <= radius {
			n++
		}
	}
	return n
}
