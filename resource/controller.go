// Package resource bounds the concurrency, memory and throughput a process
// spends on counting and snapshotting.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean "no limit" except where
// noted.
type Config struct {
	// MaxBranchWorkers is the number of split branches that may be evaluated
	// on their own goroutine at the same time, across all queries.
	// If 0, defaults to 1.
	MaxBranchWorkers int64

	// ScanPagesPerSec caps the rate at which scan pages are fetched from the
	// store by brute-force and base-case scans.
	ScanPagesPerSec float64

	// MemoryLimitBytes is the hard limit for snapshot buffers.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec caps snapshot upload and download throughput.
	IOLimitBytesPerSec int64
}

// Controller hands out branch slots, scan-page tokens, snapshot memory and
// snapshot IO budget. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	branchSem *semaphore.Weighted

	scanLimiter *rate.Limiter // nil if unlimited

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBranchWorkers <= 0 {
		cfg.MaxBranchWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		branchSem: semaphore.NewWeighted(cfg.MaxBranchWorkers),
	}

	if cfg.ScanPagesPerSec > 0 {
		burst := int(cfg.ScanPagesPerSec)
		if burst < 1 {
			burst = 1
		}
		c.scanLimiter = rate.NewLimiter(rate.Limit(cfg.ScanPagesPerSec), burst)
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the effective configuration.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// TryAcquireBranch reserves a branch worker slot without blocking.
func (c *Controller) TryAcquireBranch() bool {
	if c == nil {
		return false
	}
	return c.branchSem.TryAcquire(1)
}

// ReleaseBranch releases a slot obtained from TryAcquireBranch.
func (c *Controller) ReleaseBranch() {
	if c == nil {
		return
	}
	c.branchSem.Release(1)
}

// WaitScanPage blocks until another scan page may be fetched.
func (c *Controller) WaitScanPage(ctx context.Context) error {
	if c == nil || c.scanLimiter == nil {
		return nil
	}
	return c.scanLimiter.Wait(ctx)
}

// AcquireMemory reserves memory, blocking while a hard limit would be
// exceeded.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryLimit
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	for bytes > 0 {
		n := min(bytes, c.ioLimiter.Burst())
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
