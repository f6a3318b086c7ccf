package pointcount

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/rangecount"
	"github.com/hupe1980/pointcount/store"
)

var (
	// ErrInvalidQuery is returned for malformed queries and arguments.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound is returned when a record, or the center of a count, does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a record already exists at the requested
	// coordinates.
	ErrConflict = errors.New("conflict")

	// ErrStore is returned when the backing store fails.
	ErrStore = errors.New("store failure")

	// ErrClosed is returned by operations on a closed DB.
	ErrClosed = errors.New("closed")

	// ErrAborted is returned when a count exceeds its depth, node or time
	// budget.
	ErrAborted = rangecount.ErrAborted
)

// QueryError describes which argument was rejected.
type QueryError struct {
	Field  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidQuery.
func (e *QueryError) Unwrap() error { return ErrInvalidQuery }

// ConflictError reports the record that already occupies a position.
type ConflictError struct {
	Existing geom.Point
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: record (%g, %g) exists", e.Existing.X, e.Existing.Y)
}

// Unwrap returns ErrConflict.
func (e *ConflictError) Unwrap() error { return ErrConflict }

// StoreError wraps a failure of the backing store.
//
// Both ErrStore and the original error match errors.Is.
type StoreError struct {
	Op    string
	cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure: %s: %v", e.Op, e.cause)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.cause} }

func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, store.ErrInvalidCoordinate):
		return &QueryError{Field: "coordinates", Reason: "must be finite"}
	case errors.Is(err, rangecount.ErrInvalidRadius):
		return &QueryError{Field: "radius", Reason: "must be a finite non-negative number"}
	case errors.Is(err, rangecount.ErrInvalidCenter):
		return &QueryError{Field: "center", Reason: "has non-finite coordinates"}
	case errors.Is(err, ErrAborted),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}

	return &StoreError{Op: op, cause: err}
}
