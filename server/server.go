package server

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/hupe1980/pointcount"
)

// Server serves the HTTP API of a DB.
type Server struct {
	db      *pointcount.DB
	opts    Options
	limiter *rate.Limiter
	mux     *http.ServeMux
}

// New creates a server for db.
func New(db *pointcount.DB, optFns ...func(o *Options)) *Server {
	opts := applyOptions(optFns)

	s := &Server{
		db:   db,
		opts: opts,
		mux:  http.NewServeMux(),
	}
	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	base := opts.BasePath
	s.route("GET "+base+"/users/info", "info", s.handleInfo)
	s.route("GET "+base+"/users/knn", "knn", s.handleCount)
	s.route("GET "+base+"/users", "list", s.handleList)
	s.route("POST "+base+"/users", "create", s.handleCreate)
	s.route("GET "+base+"/users/{id}", "get", s.handleGet)
	s.route("POST "+base+"/users/{id}", "update", s.handleUpdate)
	s.route("DELETE "+base+"/users/{id}", "delete", s.handleDelete)
	s.route("GET "+base+"/users.geojson", "geojson", s.handleGeoJSON)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, message("Not found"))
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) route(pattern, name string, h http.HandlerFunc) {
	var handler http.Handler = h
	handler = s.traced(name, handler)
	handler = s.limited(handler)
	if s.opts.Metrics != nil {
		handler = s.opts.Metrics.Middleware(name, handler)
	}
	s.mux.Handle(pattern, s.logged(name, handler))
}

func (s *Server) limited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, message("Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) traced(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.opts.Tracer.Start(r.Context(), "http."+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		sw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.response.status_code", sw.code))
		if sw.code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.code))
		}
	})
}

func (s *Server) logged(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		s.opts.Logger.InfoContext(r.Context(), "request",
			"route", name,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
