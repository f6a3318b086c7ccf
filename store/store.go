// Package store defines the record store contract consumed by the counting
// engine and by the CRUD surface.
//
// Implementations must be safe for concurrent use. Readers never take a
// consistent snapshot across calls: a sequence of reads interleaved with
// writes observes each write as soon as it is applied.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/pointcount/geom"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("store: record not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")

	// ErrInvalidCoordinate is returned for NaN or infinite coordinates.
	ErrInvalidCoordinate = errors.New("store: invalid coordinate")
)

// DefaultPageSize is the page size used by scans when none is given.
const DefaultPageSize = 100

// Reader is the read-only surface the counting engine depends on.
type Reader interface {
	// RectStats aggregates the points inside the closed rectangle r.
	RectStats(ctx context.Context, r geom.Rect) (geom.RangeStats, error)

	// PredecessorOrEqual returns the largest coordinate on axis of a point
	// inside r that is <= bound. ok is false when no such point exists.
	PredecessorOrEqual(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (v float64, ok bool, err error)

	// SuccessorGreater returns the smallest coordinate on axis of a point
	// inside r that is > bound. ok is false when no such point exists.
	SuccessorGreater(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (v float64, ok bool, err error)

	// Scan enumerates the points inside r in pages of at most pageSize.
	// Iteration stops at the first error, which is yielded with a nil page.
	Scan(ctx context.Context, r geom.Rect, pageSize int) iter.Seq2[[]geom.Point, error]
}

// Store is a full point record store.
type Store interface {
	Reader

	// Get returns the record with the given id.
	Get(ctx context.Context, id geom.ID) (geom.Point, error)

	// Find returns a record located exactly at (x, y), if any.
	Find(ctx context.Context, x, y float64) (geom.Point, bool, error)

	// Insert stores a new record and returns it with its assigned id.
	Insert(ctx context.Context, x, y float64) (geom.Point, error)

	// Update moves an existing record.
	Update(ctx context.Context, id geom.ID, x, y float64) error

	// Delete removes a record.
	Delete(ctx context.Context, id geom.ID) error

	// List returns up to limit records ordered by id, skipping offset.
	List(ctx context.Context, offset, limit int) ([]geom.Point, error)

	// Len returns the number of stored records.
	Len(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// ValidateCoordinates rejects coordinates that cannot be ordered.
func ValidateCoordinates(x, y float64) error {
	if !geom.Finite(x) || !geom.Finite(y) {
		return ErrInvalidCoordinate
	}
	return nil
}
