// Package geom defines the planar primitives shared by the record stores and
// the counting engine: points, closed axis-aligned rectangles and the
// aggregate statistics a store computes over a rectangle.
package geom
