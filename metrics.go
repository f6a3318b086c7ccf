package pointcount

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordCount is called after each range count. nodes is the number of
	// rectangles the recursive counter visited, zero for brute force.
	RecordCount(mode Mode, nodes int64, duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordUpdate is called after each update operation.
	RecordUpdate(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)             {}
func (NoopMetricsCollector) RecordCount(Mode, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)             {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	CountCount       atomic.Int64
	CountErrors      atomic.Int64
	CountBruteForce  atomic.Int64
	CountNodes       atomic.Int64
	CountTotalNanos  atomic.Int64
	DeleteCount      atomic.Int64
	DeleteErrors     atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordCount implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCount(mode Mode, nodes int64, duration time.Duration, err error) {
	b.CountCount.Add(1)
	b.CountTotalNanos.Add(duration.Nanoseconds())
	b.CountNodes.Add(nodes)
	if mode == ModeBruteForce {
		b.CountBruteForce.Add(1)
	}
	if err != nil {
		b.CountErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:     b.InsertCount.Load(),
		InsertErrors:    b.InsertErrors.Load(),
		InsertAvgNanos:  avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		CountCount:      b.CountCount.Load(),
		CountErrors:     b.CountErrors.Load(),
		CountBruteForce: b.CountBruteForce.Load(),
		CountAvgNodes:   avg(b.CountNodes.Load(), b.CountCount.Load()),
		CountAvgNanos:   avg(b.CountTotalNanos.Load(), b.CountCount.Load()),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		UpdateCount:     b.UpdateCount.Load(),
		UpdateErrors:    b.UpdateErrors.Load(),
	}
}

func avg(total, n int64) int64 {
	if n == 0 {
		return 0
	}
	return total / n
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount     int64
	InsertErrors    int64
	InsertAvgNanos  int64
	CountCount      int64
	CountErrors     int64
	CountBruteForce int64
	CountAvgNodes   int64
	CountAvgNanos   int64
	DeleteCount     int64
	DeleteErrors    int64
	UpdateCount     int64
	UpdateErrors    int64
}
