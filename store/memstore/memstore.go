// Package memstore implements store.Store in memory.
//
// Each axis is kept as a sorted column of (coordinate, id) pairs, so
// rectangle queries binary-search both columns and intersect the two id
// ranges with roaring bitmaps. Nothing is persisted; use package snapshot to
// save and restore the point set.
package memstore

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

// Store is an in-memory point store.
type Store struct {
	mu     sync.RWMutex
	points map[geom.ID]geom.Point
	live   *roaring64.Bitmap // ids of all records, ordered for List
	xs     column
	ys     column
	nextID geom.ID
	closed bool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New(optFns ...func(o *Options)) *Store {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}
	if opts.FirstID == 0 {
		opts.FirstID = 1
	}

	return &Store{
		points: make(map[geom.ID]geom.Point),
		live:   roaring64.New(),
		nextID: geom.ID(opts.FirstID),
		logger: opts.Logger,
	}
}

func (s *Store) column(a geom.Axis) column {
	if a == geom.AxisY {
		return s.ys
	}
	return s.xs
}

// RectStats implements store.Reader.
func (s *Store) RectStats(ctx context.Context, r geom.Rect) (geom.RangeStats, error) {
	var stats geom.RangeStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if r.Empty() {
		return stats, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return stats, store.ErrClosed
	}

	xFrom, xTo := s.xs.span(r.MinX, r.MaxX)
	yFrom, yTo := s.ys.span(r.MinY, r.MaxY)
	if xFrom == xTo || yFrom == yTo {
		return stats, nil
	}

	n := len(s.points)
	switch {
	case yTo-yFrom == n:
		// Every y qualifies; the x range alone decides.
		for _, e := range s.xs[xFrom:xTo] {
			stats.Add(s.points[e.id])
		}
	case xTo-xFrom == n:
		for _, e := range s.ys[yFrom:yTo] {
			stats.Add(s.points[e.id])
		}
	default:
		hits := roaring64.New()
		hits.AddMany(s.xs.ids(xFrom, xTo))
		inY := roaring64.New()
		inY.AddMany(s.ys.ids(yFrom, yTo))
		hits.And(inY)

		it := hits.Iterator()
		for it.HasNext() {
			stats.Add(s.points[geom.ID(it.Next())])
		}
	}

	return stats, nil
}

// PredecessorOrEqual implements store.Reader.
func (s *Store) PredecessorOrEqual(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if r.Empty() {
		return 0, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, store.ErrClosed
	}

	col := s.column(axis)
	for i := col.upperBound(math.Min(bound, r.Max(axis))) - 1; i >= 0 && col[i].v >= r.Min(axis); i-- {
		if r.ContainsPoint(s.points[col[i].id]) {
			return col[i].v, true, nil
		}
	}
	return 0, false, nil
}

// SuccessorGreater implements store.Reader.
func (s *Store) SuccessorGreater(ctx context.Context, axis geom.Axis, bound float64, r geom.Rect) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if r.Empty() {
		return 0, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, store.ErrClosed
	}

	col := s.column(axis)
	start := max(col.upperBound(bound), col.lowerBound(r.Min(axis)))
	for i := start; i < len(col) && col[i].v <= r.Max(axis); i++ {
		if r.ContainsPoint(s.points[col[i].id]) {
			return col[i].v, true, nil
		}
	}
	return 0, false, nil
}

// Scan implements store.Reader.
//
// Pages are cut from the x column under a read lock that is released before
// each page is yielded, so a consumer may call back into the store. The
// cursor is the last visited (x, id) pair, which keeps paging stable across
// concurrent inserts and deletes.
func (s *Store) Scan(ctx context.Context, r geom.Rect, pageSize int) iter.Seq2[[]geom.Point, error] {
	if pageSize <= 0 {
		pageSize = store.DefaultPageSize
	}
	return func(yield func([]geom.Point, error) bool) {
		if r.Empty() {
			return
		}
		var (
			cursor  entry
			started bool
		)
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, next, more, err := s.page(r, cursor, started, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) > 0 && !yield(page, nil) {
				return
			}
			if !more {
				return
			}
			cursor, started = next, true
		}
	}
}

func (s *Store) page(r geom.Rect, cursor entry, started bool, pageSize int) ([]geom.Point, entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cursor, false, store.ErrClosed
	}

	i := s.xs.lowerBound(r.MinX)
	if started {
		i = max(i, s.xs.after(cursor))
	}

	page := make([]geom.Point, 0, pageSize)
	for ; i < len(s.xs) && s.xs[i].v <= r.MaxX; i++ {
		p := s.points[s.xs[i].id]
		if p.Y < r.MinY || p.Y > r.MaxY {
			continue
		}
		page = append(page, p)
		if len(page) == pageSize {
			more := i+1 < len(s.xs) && s.xs[i+1].v <= r.MaxX
			return page, s.xs[i], more, nil
		}
	}
	return page, cursor, false, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id geom.ID) (geom.Point, error) {
	if err := ctx.Err(); err != nil {
		return geom.Point{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return geom.Point{}, store.ErrClosed
	}

	p, ok := s.points[id]
	if !ok {
		return geom.Point{}, store.ErrNotFound
	}
	return p, nil
}

// Find implements store.Store.
func (s *Store) Find(ctx context.Context, x, y float64) (geom.Point, bool, error) {
	if err := ctx.Err(); err != nil {
		return geom.Point{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return geom.Point{}, false, store.ErrClosed
	}

	from, to := s.xs.span(x, x)
	for _, e := range s.xs[from:to] {
		if p := s.points[e.id]; p.Y == y {
			return p, true, nil
		}
	}
	return geom.Point{}, false, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, x, y float64) (geom.Point, error) {
	if err := ctx.Err(); err != nil {
		return geom.Point{}, err
	}
	if err := store.ValidateCoordinates(x, y); err != nil {
		return geom.Point{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return geom.Point{}, store.ErrClosed
	}

	p := geom.Point{ID: s.nextID, X: x, Y: y}
	s.nextID++
	s.put(p)

	s.logger.DebugContext(ctx, "point inserted", "id", p.ID, "x", x, "y", y)
	return p, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, id geom.ID, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateCoordinates(x, y); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	old, ok := s.points[id]
	if !ok {
		return store.ErrNotFound
	}
	s.drop(old)
	s.put(geom.Point{ID: id, X: x, Y: y})
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id geom.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	p, ok := s.points[id]
	if !ok {
		return store.ErrNotFound
	}
	s.drop(p)
	return nil
}

// List implements store.Store.
func (s *Store) List(ctx context.Context, offset, limit int) ([]geom.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	out := make([]geom.Point, 0, min(limit, len(s.points)))
	it := s.live.Iterator()
	for skipped := 0; it.HasNext() && len(out) < limit; {
		id := geom.ID(it.Next())
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, s.points[id])
	}
	return out, nil
}

// Len implements store.Store.
func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	return len(s.points), nil
}

// Close implements store.Store. The point set is released.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.points = nil
	s.live.Clear()
	s.xs, s.ys = nil, nil
	return nil
}

// put must be called with mu held.
func (s *Store) put(p geom.Point) {
	s.points[p.ID] = p
	s.live.Add(uint64(p.ID))
	s.xs.insert(entry{v: p.X, id: p.ID})
	s.ys.insert(entry{v: p.Y, id: p.ID})
}

// drop must be called with mu held.
func (s *Store) drop(p geom.Point) {
	delete(s.points, p.ID)
	s.live.Remove(uint64(p.ID))
	s.xs.remove(entry{v: p.X, id: p.ID})
	s.ys.remove(entry{v: p.Y, id: p.ID})
}
