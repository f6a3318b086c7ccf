package pointcount

import (
	"fmt"
	"strings"

	"github.com/hupe1980/pointcount/geom"
)

// Mode selects the counting algorithm.
type Mode uint8

const (
	// ModeRecursive uses the decomposing range counter.
	ModeRecursive Mode = iota
	// ModeBruteForce scans every record.
	ModeBruteForce
)

func (m Mode) String() string {
	switch m {
	case ModeRecursive:
		return "recursive"
	case ModeBruteForce:
		return "bruteforce"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses "recursive" or "bruteforce" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "recursive":
		return ModeRecursive, nil
	case "bruteforce", "brute-force", "brute":
		return ModeBruteForce, nil
	}
	return 0, &QueryError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// Query is a validated range-count request: how many records other than
// Center lie within Radius of it.
type Query struct {
	Center geom.ID
	Radius float64
	Mode   Mode
}

// NewQuery builds and validates a query.
func NewQuery(center geom.ID, radius float64, mode Mode) (Query, error) {
	q := Query{Center: center, Radius: radius, Mode: mode}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Validate checks the query arguments. A zero radius is valid and counts the
// records that coincide with the center.
func (q Query) Validate() error {
	if q.Center == 0 {
		return &QueryError{Field: "center", Reason: "is required"}
	}
	if !geom.Finite(q.Radius) || q.Radius < 0 {
		return &QueryError{Field: "radius", Reason: "must be a finite non-negative number"}
	}
	if q.Mode > ModeBruteForce {
		return &QueryError{Field: "mode", Reason: "unknown mode " + q.Mode.String()}
	}
	return nil
}

// Patch is a partial coordinate update. Nil fields are left unchanged.
type Patch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.X == nil && p.Y == nil
}

func (p Patch) apply(pt geom.Point) geom.Point {
	if p.X != nil {
		pt.X = *p.X
	}
	if p.Y != nil {
		pt.Y = *p.Y
	}
	return pt
}
