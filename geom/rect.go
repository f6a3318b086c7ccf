package geom

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Rect is a closed axis-aligned rectangle. It is empty when MinX > MaxX or
// MinY > MaxY.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// NewRect returns the rectangle spanned by the given bounds.
func NewRect(minX, minY, maxX, maxY float64) Rect {
	return Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Everything returns the unbounded rectangle.
func Everything() Rect {
	return Rect{
		MinX: math.Inf(-1),
		MinY: math.Inf(-1),
		MaxX: math.Inf(1),
		MaxY: math.Inf(1),
	}
}

// Square returns the square of half-width r centered at (x, y).
func Square(x, y, r float64) Rect {
	return Rect{MinX: x - r, MinY: y - r, MaxX: x + r, MaxY: y + r}
}

// FromOrb converts an orb.Bound.
func FromOrb(b orb.Bound) Rect {
	return Rect{MinX: b.Min.X(), MinY: b.Min.Y(), MaxX: b.Max.X(), MaxY: b.Max.Y()}
}

// Orb converts r into an orb.Bound.
func (r Rect) Orb() orb.Bound {
	return orb.Bound{Min: orb.Point{r.MinX, r.MinY}, Max: orb.Point{r.MaxX, r.MaxY}}
}

// Empty reports whether r contains no point of the plane.
// NaN bounds make a rectangle empty.
func (r Rect) Empty() bool {
	return !(r.MinX <= r.MaxX) || !(r.MinY <= r.MaxY)
}

// Contains reports whether (x, y) lies in the closed rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// ContainsPoint reports whether p lies in the closed rectangle.
func (r Rect) ContainsPoint(p Point) bool {
	return r.Contains(p.X, p.Y)
}

// Intersect returns the intersection of r and o, which may be empty.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinY: math.Max(r.MinY, o.MinY),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxY: math.Min(r.MaxY, o.MaxY),
	}
}

// Extent returns the side length of r along axis a.
func (r Rect) Extent(a Axis) float64 {
	if a == AxisY {
		return r.MaxY - r.MinY
	}
	return r.MaxX - r.MinX
}

// Min returns the lower bound of r on axis a.
func (r Rect) Min(a Axis) float64 {
	if a == AxisY {
		return r.MinY
	}
	return r.MinX
}

// Max returns the upper bound of r on axis a.
func (r Rect) Max(a Axis) float64 {
	if a == AxisY {
		return r.MaxY
	}
	return r.MaxX
}

// LongerAxis returns the axis with the larger extent; ties choose AxisX.
func (r Rect) LongerAxis() Axis {
	if math.Abs(r.MaxX-r.MinX) >= math.Abs(r.MaxY-r.MinY) {
		return AxisX
	}
	return AxisY
}

// Split cuts r along axis a into [min, left] and [right, max], keeping the
// other axis unchanged.
func (r Rect) Split(a Axis, left, right float64) (Rect, Rect) {
	lo, hi := r, r
	if a == AxisY {
		lo.MaxY = left
		hi.MinY = right
	} else {
		lo.MaxX = left
		hi.MinX = right
	}
	return lo, hi
}

// Extend grows r so that it contains (x, y).
func (r Rect) Extend(x, y float64) Rect {
	return Rect{
		MinX: math.Min(r.MinX, x),
		MinY: math.Min(r.MinY, y),
		MaxX: math.Max(r.MaxX, x),
		MaxY: math.Max(r.MaxY, y),
	}
}

// MinDist returns the smallest Euclidean distance from (x, y) to any point of
// the filled rectangle. It is 0 when (x, y) lies inside r.
func (r Rect) MinDist(x, y float64) float64 {
	dx := math.Max(math.Max(r.MinX-x, 0), x-r.MaxX)
	dy := math.Max(math.Max(r.MinY-y, 0), y-r.MaxY)
	return norm(dx, dy)
}

// MaxDist returns the largest Euclidean distance from (x, y) to any point of
// the rectangle, which is always attained at a corner.
func (r Rect) MaxDist(x, y float64) float64 {
	dx := math.Max(math.Abs(x-r.MinX), math.Abs(x-r.MaxX))
	dy := math.Max(math.Abs(y-r.MinY), math.Abs(y-r.MaxY))
	return norm(dx, dy)
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect(%g, %g, %g, %g)", r.MinX, r.MinY, r.MaxX, r.MaxY)
}
