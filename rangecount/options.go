package rangecount

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/pointcount/resource"
	"github.com/hupe1980/pointcount/store"
)

// Options configures Counter and BruteForce.
type Options struct {
	// MinPoints is the aggregate count below which a straddling rectangle is
	// scanned instead of split. Default: 16.
	MinPoints int

	// XFactor and YFactor scale the radius into the extent below which a
	// straddling rectangle is scanned instead of split. Default: 0.1 each.
	XFactor float64
	YFactor float64

	// MaxDepth bounds the recursion depth. Zero disables the check.
	// Default: 256.
	MaxDepth int

	// MaxNodes bounds the number of rectangles visited per count. Zero
	// disables the check. Default: 1 << 20.
	MaxNodes int64

	// Timeout bounds the wall time of a single count. Zero disables it.
	Timeout time.Duration

	// PageSize is the number of points fetched per scan page.
	// Default: store.DefaultPageSize.
	PageSize int

	// Resource grants goroutines to split branches and throttles scan pages.
	// Nil evaluates every branch inline without throttling.
	Resource *resource.Controller

	// Logger receives per-count debug records and abort warnings.
	Logger *slog.Logger

	// Tracer creates one span per count.
	Tracer trace.Tracer
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	MinPoints: 16,
	XFactor:   0.1,
	YFactor:   0.1,
	MaxDepth:  256,
	MaxNodes:  1 << 20,
	PageSize:  store.DefaultPageSize,
	Logger:    slog.New(slog.DiscardHandler),
	Tracer:    noop.NewTracerProvider().Tracer(""),
}

// WithLegacyThresholds selects the asymmetric base-case thresholds of earlier
// releases: x-extent below radius/10 or y-extent below radius.
func WithLegacyThresholds() func(o *Options) {
	return func(o *Options) {
		o.XFactor = 0.1
		o.YFactor = 1.0
	}
}

// WithParallelism lets up to n split branches run on their own goroutine at
// the same time. n <= 1 keeps evaluation sequential.
func WithParallelism(n int) func(o *Options) {
	return func(o *Options) {
		if n <= 1 {
			o.Resource = nil
			return
		}
		o.Resource = resource.NewController(resource.Config{MaxBranchWorkers: int64(n)})
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MinPoints < 1 {
		opts.MinPoints = 1
	}
	if opts.XFactor < 0 {
		opts.XFactor = 0
	}
	if opts.YFactor < 0 {
		opts.YFactor = 0
	}
	if opts.PageSize <= 0 {
		opts.PageSize = store.DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}
	if opts.Tracer == nil {
		opts.Tracer = DefaultOptions.Tracer
	}
	return opts
}
