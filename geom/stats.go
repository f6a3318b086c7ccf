package geom

// RangeStats aggregates the points a store holds inside a rectangle.
//
// When Count is zero the remaining fields carry no meaning; check Empty first.
type RangeStats struct {
	Count int
	SumX  float64
	SumY  float64
	// Bounds is the tight bounding box of the contained points. It may lie
	// strictly inside the queried rectangle.
	Bounds Rect
}

// Empty reports whether no point was found.
func (s RangeStats) Empty() bool {
	return s.Count == 0
}

// Mean returns the average coordinate of the contained points on axis a.
func (s RangeStats) Mean(a Axis) float64 {
	if s.Count == 0 {
		return 0
	}
	if a == AxisY {
		return s.SumY / float64(s.Count)
	}
	return s.SumX / float64(s.Count)
}

// Add accumulates p.
func (s *RangeStats) Add(p Point) {
	s.AddCoords(p.X, p.Y)
}

// AddCoords accumulates a point given by its coordinates.
func (s *RangeStats) AddCoords(x, y float64) {
	if s.Count == 0 {
		s.Bounds = Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
	} else {
		s.Bounds = s.Bounds.Extend(x, y)
	}
	s.Count++
	s.SumX += x
	s.SumY += y
}
