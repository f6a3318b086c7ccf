package rangecount

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/store"
)

// BruteForce counts by scanning every stored point.
type BruteForce struct {
	reader store.Reader
	opts   Options
}

var _ RangeCounter = (*BruteForce)(nil)

// NewBruteForce creates a brute-force counter that reads from r. Only
// PageSize, Resource, Timeout, Logger and Tracer apply.
func NewBruteForce(r store.Reader, optFns ...func(o *Options)) *BruteForce {
	return &BruteForce{
		reader: r,
		opts:   applyOptions(optFns),
	}
}

// Count implements RangeCounter.
func (b *BruteForce) Count(ctx context.Context, center geom.Point, radius float64) (int, error) {
	if err := validate(center, radius); err != nil {
		return 0, err
	}

	ctx, span := b.opts.Tracer.Start(ctx, "rangecount.BruteForce", trace.WithAttributes(
		attribute.Int64("center.id", int64(center.ID)),
		attribute.Float64("radius", radius),
	))
	defer span.End()

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, b.opts.Timeout, errTimeBudget)
		defer cancel()
	}

	n, scanned, err := countHits(ctx, b.reader, geom.Everything(), center.X, center.Y, radius, &b.opts)
	if err != nil {
		if context.Cause(ctx) == errTimeBudget {
			err = &AbortError{Reason: errTimeBudget.Error()}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int("count", n), attribute.Int64("scanned", scanned))
	b.opts.Logger.DebugContext(ctx, "brute force count",
		"center", center.ID,
		"radius", radius,
		"count", n,
		"scanned", scanned,
	)
	return n, nil
}
