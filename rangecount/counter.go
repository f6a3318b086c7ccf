package rangecount

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

// RangeCounter is implemented by Counter and BruteForce.
type RangeCounter interface {
	// Count returns the number of stored points within radius of center,
	// including a point that coincides with center.
	Count(ctx context.Context, center geom.Point, radius float64) (int, error)
}

// Result is a count together with the work that produced it.
type Result struct {
	Count int

	// Nodes is the number of rectangles for which statistics were fetched.
	Nodes int64

	// Depth is the deepest recursion level reached.
	Depth int

	// Splits is the number of rectangles divided in two.
	Splits int64

	// Scans is the number of rectangles resolved by a point scan, and
	// Scanned the number of points they returned.
	Scans   int64
	Scanned int64
}

// Counter is the recursive range counter.
type Counter struct {
	reader store.Reader
	opts   Options
}

var _ RangeCounter = (*Counter)(nil)

// New creates a counter that reads from r.
func New(r store.Reader, optFns ...func(o *Options)) *Counter {
	return &Counter{
		reader: r,
		opts:   applyOptions(optFns),
	}
}

// Options returns the effective options.
func (c *Counter) Options() Options {
	return c.opts
}

// Count implements RangeCounter.
func (c *Counter) Count(ctx context.Context, center geom.Point, radius float64) (int, error) {
	res, err := c.Run(ctx, center, radius)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Run counts like Count and also reports the work done.
func (c *Counter) Run(ctx context.Context, center geom.Point, radius float64) (Result, error) {
	if err := validate(center, radius); err != nil {
		return Result{}, err
	}

	ctx, span := c.opts.Tracer.Start(ctx, "rangecount.Count", trace.WithAttributes(
		attribute.Int64("center.id", int64(center.ID)),
		attribute.Float64("radius", radius),
	))
	defer span.End()

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, c.opts.Timeout, errTimeBudget)
		defer cancel()
	}

	w := &walk{
		reader: c.reader,
		opts:   &c.opts,
		x:      center.X,
		y:      center.Y,
		r:      radius,
	}

	n, err := w.count(ctx, geom.Square(center.X, center.Y, radius), 0)
	res := w.result(n)
	if err != nil {
		if errors.Is(context.Cause(ctx), errTimeBudget) && !errors.Is(err, ErrAborted) {
			err = &AbortError{Reason: errTimeBudget.Error(), Depth: res.Depth, Nodes: res.Nodes}
		}
		if errors.Is(err, ErrAborted) {
			c.opts.Logger.WarnContext(ctx, "range count aborted", "center", center.ID, "radius", radius, "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("count", res.Count),
		attribute.Int64("nodes", res.Nodes),
		attribute.Int("depth", res.Depth),
	)
	c.opts.Logger.DebugContext(ctx, "range count",
		"center", center.ID,
		"radius", radius,
		"count", res.Count,
		"nodes", res.Nodes,
		"depth", res.Depth,
		"splits", res.Splits,
		"scans", res.Scans,
	)
	return res, nil
}

func validate(center geom.Point, radius float64) error {
	if !geom.Finite(center.X) || !geom.Finite(center.Y) {
		return ErrInvalidCenter
	}
	if !geom.Finite(radius) || radius < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}
	return nil
}

// walk holds the state of one count. Counters are updated atomically because
// split branches may run concurrently.
type walk struct {
	reader store.Reader
	opts   *Options
	x, y   float64
	r      float64

	nodes   atomic.Int64
	depth   atomic.Int64
	splits  atomic.Int64
	scans   atomic.Int64
	scanned atomic.Int64
}

func (w *walk) result(n int) Result {
	return Result{
		Count:   n,
		Nodes:   w.nodes.Load(),
		Depth:   int(w.depth.Load()),
		Splits:  w.splits.Load(),
		Scans:   w.scans.Load(),
		Scanned: w.scanned.Load(),
	}
}

// enter charges one rectangle against the budgets.
func (w *walk) enter(ctx context.Context, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for {
		cur := w.depth.Load()
		if int64(depth) <= cur || w.depth.CompareAndSwap(cur, int64(depth)) {
			break
		}
	}
	nodes := w.nodes.Add(1)

	if w.opts.MaxDepth > 0 && depth > w.opts.MaxDepth {
		return &AbortError{Reason: "depth budget exceeded", Depth: depth, Nodes: nodes}
	}
	if w.opts.MaxNodes > 0 && nodes > w.opts.MaxNodes {
		return &AbortError{Reason: "node budget exceeded", Depth: depth, Nodes: nodes}
	}
	return nil
}

func (w *walk) count(ctx context.Context, rect geom.Rect, depth int) (int, error) {
	if err := w.enter(ctx, depth); err != nil {
		return 0, err
	}

	stats, err := w.reader.RectStats(ctx, rect)
	if err != nil {
		return 0, fmt.Errorf("rangecount: rect stats: %w", err)
	}
	if stats.Empty() {
		return 0, nil
	}

	// Classification and splitting work on the tight bounding box of the
	// contained points, never on the query rectangle.
	box := stats.Bounds
	if box.MinDist(w.x, w.y) > w.r {
		return 0, nil
	}
	if box.MaxDist(w.x, w.y) <= w.r {
		return stats.Count, nil
	}

	if w.small(box, stats.Count) {
		return w.scan(ctx, box)
	}

	axis := box.LongerAxis()
	mean := stats.Mean(axis)

	left, okLeft, err := w.reader.PredecessorOrEqual(ctx, axis, mean, box)
	if err != nil {
		return 0, fmt.Errorf("rangecount: predecessor: %w", err)
	}
	right, okRight, err := w.reader.SuccessorGreater(ctx, axis, mean, box)
	if err != nil {
		return 0, fmt.Errorf("rangecount: successor: %w", err)
	}
	if !okLeft || !okRight {
		// No point on one side of the mean; the split would not shrink the
		// rectangle.
		return w.scan(ctx, box)
	}

	w.splits.Add(1)
	lo, hi := box.Split(axis, left, right)
	return w.both(ctx, lo, hi, depth+1)
}

// small reports whether a straddling rectangle is resolved by a scan.
func (w *walk) small(box geom.Rect, count int) bool {
	return box.Extent(geom.AxisX) < w.r*w.opts.XFactor ||
		box.Extent(geom.AxisY) < w.r*w.opts.YFactor ||
		count < w.opts.MinPoints
}

// both counts two disjoint rectangles, on separate goroutines when the
// resource controller grants a branch slot.
func (w *walk) both(ctx context.Context, lo, hi geom.Rect, depth int) (int, error) {
	if !w.opts.Resource.TryAcquireBranch() {
		a, err := w.count(ctx, lo, depth)
		if err != nil {
			return 0, err
		}
		b, err := w.count(ctx, hi, depth)
		if err != nil {
			return 0, err
		}
		return a + b, nil
	}

	g, gctx := errgroup.WithContext(ctx)

	var a int
	g.Go(func() error {
		defer w.opts.Resource.ReleaseBranch()
		n, err := w.count(gctx, lo, depth)
		a = n
		return err
	})

	b, err := w.count(gctx, hi, depth)
	if werr := g.Wait(); werr != nil {
		return 0, werr
	}
	if err != nil {
		return 0, err
	}
	return a + b, nil
}

// scan counts the exact hits among the points inside box.
func (w *walk) scan(ctx context.Context, box geom.Rect) (int, error) {
	w.scans.Add(1)
	n, scanned, err := countHits(ctx, w.reader, box, w.x, w.y, w.r, w.opts)
	w.scanned.Add(scanned)
	return n, err
}

func countHits(ctx context.Context, reader store.Reader, rect geom.Rect, x, y, r float64, opts *Options) (int, int64, error) {
	var (
		hits    int
		scanned int64
	)
	for page, err := range reader.Scan(ctx, rect, opts.PageSize) {
		if err != nil {
			return 0, scanned, fmt.Errorf("rangecount: scan: %w", err)
		}
		scanned += int64(len(page))
		for _, p := range page {
			if geom.Within(p, x, y, r) {
				hits++
			}
		}
		if err := opts.Resource.WaitScanPage(ctx); err != nil {
			return 0, scanned, err
		}
	}
	return hits, scanned, nil
}
