// Package testutil provides testing utilities for pointcount.
//
// This package is intended for use in tests and benchmarks only.
// It provides seeded generators for point sets and an exact reference
// count to validate counters against.
//
// # Point Generation
//
//	rng := testutil.NewRNG(seed)
//	coords := rng.UniformCoords(1000, -100, 100)
//	dups := rng.LatticeCoords(1000, 7, 2.5) // few distinct values per axis
//
// # Reference Count
//
//	want := testutil.CountWithin(coords, x, y, r)
package testutil
