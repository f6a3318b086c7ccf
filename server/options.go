package server

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Instrumenter wraps handlers with request metrics.
// *observability.Collector satisfies it.
type Instrumenter interface {
	Middleware(route string, next http.Handler) http.Handler
}

// Options configures a Server.
type Options struct {
	// BasePath prefixes every route. Default: "/v1/NN".
	BasePath string

	// DefaultPageSize applies when a listing omits pagesize. Default: 100.
	DefaultPageSize int

	// MaxPageSize caps pagesize. Default: 10000.
	MaxPageSize int

	// MaxBodyBytes caps request bodies. Default: 1MB.
	MaxBodyBytes int64

	// RequestsPerSecond enables a global token-bucket limiter when positive.
	RequestsPerSecond float64

	// Burst is the limiter burst. Default: max(1, RequestsPerSecond).
	Burst int

	// Logger receives one line per request.
	Logger *slog.Logger

	// Tracer starts a span per request.
	Tracer trace.Tracer

	// Metrics records per-route request metrics. Nil disables them.
	Metrics Instrumenter
}

// DefaultOptions are applied before user options.
var DefaultOptions = Options{
	BasePath:        "/v1/NN",
	DefaultPageSize: 100,
	MaxPageSize:     10000,
	MaxBodyBytes:    1 << 20,
	Logger:          slog.New(slog.DiscardHandler),
	Tracer:          noop.NewTracerProvider().Tracer(""),
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultOptions.DefaultPageSize
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultOptions.MaxBodyBytes
	}
	if opts.Burst <= 0 {
		opts.Burst = max(1, int(opts.RequestsPerSecond))
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}
	if opts.Tracer == nil {
		opts.Tracer = DefaultOptions.Tracer
	}
	return opts
}
