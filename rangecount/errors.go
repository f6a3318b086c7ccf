package rangecount

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when a count exceeds its depth, node or time
	// budget. No partial count is reported.
	ErrAborted = errors.New("rangecount: computation aborted")

	// ErrInvalidRadius is returned for negative, NaN or infinite radii.
	ErrInvalidRadius = errors.New("rangecount: invalid radius")

	// ErrInvalidCenter is returned when the center has non-finite coordinates.
	ErrInvalidCenter = errors.New("rangecount: invalid center")

	// errTimeBudget is the cancellation cause installed by Options.Timeout.
	errTimeBudget = errors.New("time budget exceeded")
)

// AbortError describes which budget a count exceeded.
type AbortError struct {
	Reason string
	Depth  int
	Nodes  int64
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("rangecount: computation aborted: %s (depth=%d, nodes=%d)", e.Reason, e.Depth, e.Nodes)
}

// Unwrap returns ErrAborted.
func (e *AbortError) Unwrap() error {
	return ErrAborted
}
