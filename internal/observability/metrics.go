package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/pointcount"
)

// Collector bundles the Prometheus metrics of the service. It implements
// pointcount.MetricsCollector and provides HTTP middleware for request
// metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	CountNodes       *prometheus.HistogramVec

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

var _ pointcount.MetricsCollector = (*Collector)(nil)

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pointcount_operations_total",
		Help: "Store and count operations, labeled by operation, mode and outcome.",
	}, []string{"op", "mode", "result"}), "pointcount_operations_total")
	if err != nil {
		return nil, err
	}

	latency, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pointcount_operation_duration_seconds",
		Help:    "Operation latency in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"op", "mode"}), "pointcount_operation_duration_seconds")
	if err != nil {
		return nil, err
	}

	nodes, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pointcount_count_nodes",
		Help:    "Rectangles visited per recursive count.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"mode"}), "pointcount_count_nodes")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pointcount_http_requests_total",
		Help: "Handled HTTP requests, labeled by route, method and status code.",
	}, []string{"route", "method", "code"}), "pointcount_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pointcount_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route", "method"}), "pointcount_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Operations:       ops,
		OperationLatency: latency,
		CountNodes:       nodes,
		HTTPRequests:     requests,
		HTTPDurations:    durations,
	}, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (c *Collector) record(op, mode string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(op, mode, result(err)).Inc()
	c.OperationLatency.WithLabelValues(op, mode).Observe(d.Seconds())
}

// RecordInsert implements pointcount.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.record("insert", "", d, err)
}

// RecordCount implements pointcount.MetricsCollector.
func (c *Collector) RecordCount(mode pointcount.Mode, nodes int64, d time.Duration, err error) {
	c.record("count", mode.String(), d, err)
	if c != nil && err == nil && mode == pointcount.ModeRecursive {
		c.CountNodes.WithLabelValues(mode.String()).Observe(float64(nodes))
	}
}

// RecordDelete implements pointcount.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.record("delete", "", d, err)
}

// RecordUpdate implements pointcount.MetricsCollector.
func (c *Collector) RecordUpdate(d time.Duration, err error) {
	c.record("update", "", d, err)
}

// Middleware records request counts and durations under the given route
// label.
func (c *Collector) Middleware(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.code)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
