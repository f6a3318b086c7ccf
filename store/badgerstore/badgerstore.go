// Package badgerstore implements store.Store on top of BadgerDB.
//
// Every record is written three times in one transaction: once under its id
// and once per axis under an order-preserving coordinate key whose value is
// the other coordinate. Rectangle statistics and neighbour lookups are range
// scans over the x index; no aggregate is cached.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

// Options configures a badger store.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's own log output. Defaults to a discarding logger.
	Logger *slog.Logger

	// MaxConflictRetries bounds retries of updates that lose an optimistic
	// transaction race. Default: 3.
	MaxConflictRetries int
}

// DefaultOptions are applied before user options.
var DefaultOptions = Options{
	Path:               "./data",
	Logger:             slog.New(slog.DiscardHandler),
	MaxConflictRetries: 3,
}

// Store is a persistent point store.
type Store struct {
	db      *badger.DB
	seq     *badger.Sequence
	retries int
	closed  atomic.Bool
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) a store.
func Open(optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}
	if opts.MaxConflictRetries <= 0 {
		opts.MaxConflictRetries = DefaultOptions.MaxConflictRetries
	}

	bopts := badger.DefaultOptions(opts.Path).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(slogAdapter{l: opts.Logger})
	if opts.InMemory {
		bopts = bopts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badgerstore: sequence: %w", err)
	}

	return &Store{
		db:      db,
		seq:     seq,
		retries: opts.MaxConflictRetries,
		logger:  opts.Logger,
	}, nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// RectStats implements store.Reader.
func (s *Store) RectStats(ctx context.Context, r geom.Rect) (geom.RangeStats, error) {
	var stats geom.RangeStats
	if err := s.check(ctx); err != nil {
		return stats, err
	}
	if r.Empty() {
		return stats, nil
	}

	err := s.db.View(func(txn *badger.Txn) error {
		return scanAxis(txn, geom.AxisX, r, func(x, y float64, _ geom.ID) bool {
			stats.AddCoords(x, y)
			return true
		})
	})
	return stats, err
}

// scanAxis visits, in ascending order along axis, every index entry whose
// point lies inside r. fn receives (x, y) regardless of axis and returns
// false to stop.
func scanAxis(txn *badger.Txn, axis geom.Axis, r geom.Rect, fn func(x, y float64, id geom.ID) bool) error {
	return scanAxisFrom(txn, axis, r, axisSeekFirst(axis, r.Min(axis)), fn)
}

func scanAxisFrom(txn *badger.Txn, axis geom.Axis, r geom.Rect, seek []byte, fn func(x, y float64, id geom.ID) bool) error {
	prefix := []byte{axisPrefix(axis)}
	iopts := badger.DefaultIteratorOptions
	iopts.Prefix = prefix

	it := txn.NewIterator(iopts)
	defer it.Close()

	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		v, id := decodeAxisKey(item.Key())
		if v > r.Max(axis) {
			return nil
		}
		var other float64
		if err := item.Value(func(val []byte) error {
			other = decodeCoord(val)
			return nil
		}); err != nil {
			return err
		}
		x, y := v, other
		if axis == geom.AxisY {
			x, y = other, v
		}
		if !r.Contains(x, y) {
			continue
		}
		if !fn(x, y, id) {
			return nil
		}
	}
	return nil
}

// PredecessorOrEqual implements store.Reader.
func (s *Store) PredecessorOrEqual(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (float64, bool, error) {
	if err := s.check(ctx); err != nil {
		return 0, false, err
	}
	if r.Empty() {
		return 0, false, nil
	}

	var (
		found bool
		value float64
	)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{axisPrefix(axis)}
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = prefix
		iopts.Reverse = true

		it := txn.NewIterator(iopts)
		defer it.Close()

		for it.Seek(axisSeekLast(axis, math.Min(bound, r.Max(axis)))); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			v, _ := decodeAxisKey(item.Key())
			if v < r.Min(axis) {
				return nil
			}
			var other float64
			if err := item.Value(func(val []byte) error {
				other = decodeCoord(val)
				return nil
			}); err != nil {
				return err
			}
			if other >= r.Min(1-axis) && other <= r.Max(1-axis) {
				found, value = true, v
				return nil
			}
		}
		return nil
	})
	return value, found, err
}

// SuccessorGreater implements store.Reader.
func (s *Store) SuccessorGreater(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (float64, bool, error) {
	if err := s.check(ctx); err != nil {
		return 0, false, err
	}
	if r.Empty() {
		return 0, false, nil
	}

	seek := axisSeekLast(axis, bound)
	if bound < r.Min(axis) {
		seek = axisSeekFirst(axis, r.Min(axis))
	}

	var (
		found bool
		value float64
	)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanAxisFrom(txn, axis, r, seek, func(x, y float64, _ geom.ID) bool {
			v := x
			if axis == geom.AxisY {
				v = y
			}
			if v <= bound {
				return true
			}
			found, value = true, v
			return false
		})
	})
	return value, found, err
}

// Scan implements store.Reader. Each page is read in its own transaction,
// resuming after the last visited index key.
func (s *Store) Scan(ctx context.Context, r geom.Rect, pageSize int) iter.Seq2[[]geom.Point, error] {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	return func(yield func([]geom.Point, error) bool) {
		if r.Empty() {
			return
		}
		seek := axisSeekFirst(geom.AxisX, r.MinX)
		for {
			if err := s.check(ctx); err != nil {
				yield(nil, err)
				return
			}

			page := make([]geom.Point, 0, pageSize)
			var last []byte
			err := s.db.View(func(txn *badger.Txn) error {
				return scanAxisFrom(txn, geom.AxisX, r, seek, func(x, y float64, id geom.ID) bool {
					page = append(page, geom.Point{ID: id, X: x, Y: y})
					if len(page) == pageSize {
						last = axisKey(geom.AxisX, x, id)
						return false
					}
					return true
				})
			})
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) > 0 && !yield(page, nil) {
				return
			}
			if last == nil {
				return
			}
			seek = successorKey(last)
		}
	}
}

// successorKey returns the smallest key greater than k.
func successorKey(k []byte) []byte {
	out := make([]byte, len(k)+1)
	copy(out, k)
	return out
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id geom.ID) (geom.Point, error) {
	if err := s.check(ctx); err != nil {
		return geom.Point{}, err
	}

	var p geom.Point
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getPoint(txn, id)
		return err
	})
	return p, err
}

func getPoint(txn *badger.Txn, id geom.ID) (geom.Point, error) {
	item, err := txn.Get(pointKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return geom.Point{}, store.ErrNotFound
	}
	if err != nil {
		return geom.Point{}, err
	}
	var p geom.Point
	err = item.Value(func(val []byte) error {
		p = decodePoint(id, val)
		return nil
	})
	return p, err
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, x, y float64) (geom.Point, bool, error) {
	if err := s.check(ctx); err != nil {
		return geom.Point{}, false, err
	}

	var (
		p     geom.Point
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		return scanAxis(txn, geom.AxisX, geom.NewRect(x, y, x, y), func(px, py float64, id geom.ID) bool {
			p, found = geom.Point{ID: id, X: px, Y: py}, true
			return false
		})
	})
	return p, found, err
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, x, y float64) (geom.Point, error) {
	if err := s.check(ctx); err != nil {
		return geom.Point{}, err
	}
	if err := store.ValidateCoordinates(x, y); err != nil {
		return geom.Point{}, err
	}

	n, err := s.seq.Next()
	if err != nil {
		return geom.Point{}, fmt.Errorf("badgerstore: next id: %w", err)
	}
	p := geom.Point{ID: geom.ID(n + 1), X: x, Y: y}

	err = s.db.Update(func(txn *badger.Txn) error {
		return putPoint(txn, p)
	})
	if err != nil {
		return geom.Point{}, err
	}

	s.logger.DebugContext(ctx, "point inserted", "id", p.ID, "x", x, "y", y)
	return p, nil
}

func putPoint(txn *badger.Txn, p geom.Point) error {
	if err := txn.Set(pointKey(p.ID), encodePoint(p.X, p.Y)); err != nil {
		return err
	}
	if err := txn.Set(axisKey(geom.AxisX, p.X, p.ID), encodeCoord(p.Y)); err != nil {
		return err
	}
	return txn.Set(axisKey(geom.AxisY, p.Y, p.ID), encodeCoord(p.X))
}

func dropPoint(txn *badger.Txn, p geom.Point) error {
	if err := txn.Delete(pointKey(p.ID)); err != nil {
		return err
	}
	if err := txn.Delete(axisKey(geom.AxisX, p.X, p.ID)); err != nil {
		return err
	}
	return txn.Delete(axisKey(geom.AxisY, p.Y, p.ID))
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, id geom.ID, x, y float64) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := store.ValidateCoordinates(x, y); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		old, err := getPoint(txn, id)
		if err != nil {
			return err
		}
		if err := dropPoint(txn, old); err != nil {
			return err
		}
		return putPoint(txn, geom.Point{ID: id, X: x, Y: y})
	})
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id geom.ID) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		old, err := getPoint(txn, id)
		if err != nil {
			return err
		}
		return dropPoint(txn, old)
	})
}

// update runs fn in a read-write transaction, retrying lost races.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range s.retries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying")
	}
	return err
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, offset, limit int) ([]geom.Point, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	var out []geom.Point
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixPoint}
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = prefix

		it := txn.NewIterator(iopts)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			item := it.Item()
			id := decodePointKey(item.Key())
			if err := item.Value(func(val []byte) error {
				out = append(out, decodePoint(id, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Len implements store.Store.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte{prefixPoint}
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = prefix
		iopts.PrefetchValues = false

		it := txn.NewIterator(iopts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close implements store.Store.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if err := s.seq.Release(); err != nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
