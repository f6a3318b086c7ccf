package geom

import "math"

// Distance returns the Euclidean distance between (x0, y0) and (x1, y1).
//
// Rect.MinDist, Rect.MaxDist and Distance share one formula so that a
// rectangle classified as inside or outside a disk agrees with the per-point
// test for every point it holds.
func Distance(x0, y0, x1, y1 float64) float64 {
	return norm(x1-x0, y1-y0)
}

// Within reports whether p lies within radius r of (x, y), boundary included.
func Within(p Point, x, y, r float64) bool {
	return Distance(x, y, p.X, p.Y) <= r
}

func norm(dx, dy float64) float64 {
	return math.Sqrt(dx*dx + dy*dy)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
