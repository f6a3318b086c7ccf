package pointcount

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/pointcount/rangecount"
	"github.com/hupe1980/pointcount/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	tracer           trace.Tracer
	resource         *resource.Controller
	counterOptions   []func(*rangecount.Options)
}

// Option configures a DB.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pointcount.BasicMetricsCollector{}
//	db := pointcount.New(memstore.New(), pointcount.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Counts: %d, Avg nodes: %d\n", stats.CountCount, stats.CountAvgNodes)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithTracer configures the tracer used for count spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithResourceController shares a resource controller between counts, so
// parallel branch evaluation and scan throttling are bounded process-wide.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resource = rc
	}
}

// WithCounterOptions passes options through to both counters.
//
// Example:
//
//	db := pointcount.New(s, pointcount.WithCounterOptions(
//	    rangecount.WithLegacyThresholds(),
//	    func(o *rangecount.Options) { o.Timeout = time.Second },
//	))
func WithCounterOptions(optFns ...func(*rangecount.Options)) Option {
	return func(o *options) {
		o.counterOptions = append(o.counterOptions, optFns...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		tracer:           noop.NewTracerProvider().Tracer(""),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("")
	}
	return o
}

// rangecountOptions returns the counter options derived from o. Explicit
// counter options are applied last.
func (o options) rangecountOptions() []func(*rangecount.Options) {
	base := func(ro *rangecount.Options) {
		ro.Logger = o.logger.Logger
		ro.Tracer = o.tracer
		if o.resource != nil {
			ro.Resource = o.resource
		}
	}
	return append([]func(*rangecount.Options){base}, o.counterOptions...)
}
