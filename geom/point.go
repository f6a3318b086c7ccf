package geom

import (
	"fmt"

	"github.com/paulmach/orb"
)

// ID is the store-assigned, stable identifier of a point record.
type ID uint64

// Point is a stored point record.
type Point struct {
	ID ID      `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Coord returns the coordinate of p on axis a.
func (p Point) Coord(a Axis) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

// Orb converts p into an orb.Point.
func (p Point) Orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%d: %g, %g)", p.ID, p.X, p.Y)
}

// Axis selects one of the two coordinate axes.
type Axis uint8

const (
	// AxisX is the horizontal axis.
	AxisX Axis = iota
	// AxisY is the vertical axis.
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return fmt.Sprintf("Axis(%d)", a)
	}
}
