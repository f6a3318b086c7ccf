package pointcount

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/rangecount"
	"github.com/hupe1980/pointcount/store"
)

// DB is a point record database that answers radius range counts.
//
// DB is safe for concurrent use. Inserts and updates are serialised so that
// duplicate detection is exact; counts run concurrently with everything and
// observe writes with the weak consistency described in package rangecount.
type DB struct {
	store     store.Store
	recursive *rangecount.Counter
	brute     *rangecount.BruteForce

	logger  *Logger
	metrics MetricsCollector
	tracer  trace.Tracer

	writeMu sync.Mutex
	closed  atomic.Bool
}

// New creates a DB on top of s. The DB takes ownership of s and closes it
// on Close.
func New(s store.Store, optFns ...Option) *DB {
	o := applyOptions(optFns)
	counterOpts := o.rangecountOptions()

	return &DB{
		store:     s,
		recursive: rangecount.New(s, counterOpts...),
		brute:     rangecount.NewBruteForce(s, counterOpts...),
		logger:    o.logger,
		metrics:   o.metricsCollector,
		tracer:    o.tracer,
	}
}

// Store returns the underlying store.
func (db *DB) Store() store.Store {
	return db.store
}

func (db *DB) check() error {
	if db.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Count returns the number of records within q.Radius of the record q.Center,
// excluding the center record itself. The center must exist.
func (db *DB) Count(ctx context.Context, q Query) (int, error) {
	if err := db.check(); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}

	ctx, span := db.tracer.Start(ctx, "pointcount.Count", trace.WithAttributes(
		attribute.String("mode", q.Mode.String()),
	))
	defer span.End()

	start := time.Now()
	n, nodes, err := db.count(ctx, q)
	db.metrics.RecordCount(q.Mode, nodes, time.Since(start), err)
	db.logger.LogCount(ctx, q, n, err)

	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return n, nil
}

func (db *DB) count(ctx context.Context, q Query) (int, int64, error) {
	center, err := db.store.Get(ctx, q.Center)
	if err != nil {
		return 0, 0, translateError("get center", err)
	}

	var (
		raw   int
		nodes int64
	)
	switch q.Mode {
	case ModeBruteForce:
		raw, err = db.brute.Count(ctx, center, q.Radius)
	default:
		var res rangecount.Result
		res, err = db.recursive.Run(ctx, center, q.Radius)
		raw, nodes = res.Count, res.Nodes
	}
	if err != nil {
		return 0, nodes, translateError("count", err)
	}

	// The center always lies within its own radius. A concurrent delete of
	// the center can leave it out of the raw count.
	return max(raw-1, 0), nodes, nil
}

// Info returns the number of stored records.
func (db *DB) Info(ctx context.Context) (int, error) {
	if err := db.check(); err != nil {
		return 0, err
	}
	n, err := db.store.Len(ctx)
	return n, translateError("len", err)
}

// Get returns the record with the given id.
func (db *DB) Get(ctx context.Context, id geom.ID) (geom.Point, error) {
	if err := db.check(); err != nil {
		return geom.Point{}, err
	}
	p, err := db.store.Get(ctx, id)
	return p, translateError("get", err)
}

// List returns page number page (zero-based) of pageSize records in id order.
func (db *DB) List(ctx context.Context, page, pageSize int) ([]geom.Point, error) {
	if err := db.check(); err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, &QueryError{Field: "page", Reason: "must not be negative"}
	}
	if pageSize <= 0 {
		return nil, &QueryError{Field: "pagesize", Reason: "must be positive"}
	}
	pts, err := db.store.List(ctx, page*pageSize, pageSize)
	return pts, translateError("list", err)
}

// Insert stores a new record at (x, y). It fails with a *ConflictError when
// a record already exists at exactly these coordinates.
func (db *DB) Insert(ctx context.Context, x, y float64) (geom.Point, error) {
	if err := db.check(); err != nil {
		return geom.Point{}, err
	}

	start := time.Now()
	p, err := db.insert(ctx, x, y)
	db.metrics.RecordInsert(time.Since(start), err)
	db.logger.LogInsert(ctx, geom.Point{ID: p.ID, X: x, Y: y}, err)
	return p, err
}

func (db *DB) insert(ctx context.Context, x, y float64) (geom.Point, error) {
	if err := store.ValidateCoordinates(x, y); err != nil {
		return geom.Point{}, translateError("insert", err)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	existing, ok, err := db.store.Find(ctx, x, y)
	if err != nil {
		return geom.Point{}, translateError("find", err)
	}
	if ok {
		return geom.Point{}, &ConflictError{Existing: existing}
	}

	p, err := db.store.Insert(ctx, x, y)
	return p, translateError("insert", err)
}

// Update applies a partial coordinate update and returns the moved record.
func (db *DB) Update(ctx context.Context, id geom.ID, patch Patch) (geom.Point, error) {
	if err := db.check(); err != nil {
		return geom.Point{}, err
	}

	start := time.Now()
	p, err := db.update(ctx, id, patch)
	db.metrics.RecordUpdate(time.Since(start), err)
	db.logger.LogUpdate(ctx, id, err)
	return p, err
}

func (db *DB) update(ctx context.Context, id geom.ID, patch Patch) (geom.Point, error) {
	if patch.Empty() {
		return geom.Point{}, &QueryError{Field: "x,y", Reason: "at least one coordinate is required"}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	p, err := db.store.Get(ctx, id)
	if err != nil {
		return geom.Point{}, translateError("get", err)
	}

	p = patch.apply(p)
	if err := db.store.Update(ctx, id, p.X, p.Y); err != nil {
		return geom.Point{}, translateError("update", err)
	}
	return p, nil
}

// Delete removes a record.
func (db *DB) Delete(ctx context.Context, id geom.ID) error {
	if err := db.check(); err != nil {
		return err
	}

	start := time.Now()
	err := translateError("delete", db.store.Delete(ctx, id))
	db.metrics.RecordDelete(time.Since(start), err)
	db.logger.LogDelete(ctx, id, err)
	return err
}

// Close closes the DB and its store.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return translateError("close", db.store.Close())
}
