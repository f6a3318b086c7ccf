package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/blobstore"
	"github.com/hupe1980/pointcount/blobstore/minio"
	"github.com/hupe1980/pointcount/blobstore/s3"
	"github.com/hupe1980/pointcount/rangecount"
	"github.com/hupe1980/pointcount/resource"
	"github.com/hupe1980/pointcount/snapshot"
	"github.com/hupe1980/pointcount/store"
	"github.com/hupe1980/pointcount/store/badgerstore"
	"github.com/hupe1980/pointcount/store/memstore"
)

func newLogger(cfg LogConfig) (*pointcount.Logger, error) {
	lvl, err := cfg.level()
	if err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "", "text":
		return pointcount.NewTextLogger(lvl), nil
	case "json":
		return pointcount.NewJSONLogger(lvl), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", cfg.Format)
	}
}

func openStore(cfg StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(func(o *memstore.Options) {
			o.Logger = logger
		}), nil
	case "badger":
		return badgerstore.Open(func(o *badgerstore.Options) {
			o.Path = cfg.Path
			o.SyncWrites = cfg.SyncWrites
			o.Logger = logger
		})
	default:
		return nil, fmt.Errorf("store backend %q: want memory or badger", cfg.Backend)
	}
}

// openBlobStore returns nil when snapshots are disabled.
func openBlobStore(ctx context.Context, cfg SnapshotConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(cfg.Path), nil
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("snapshot backend s3: bucket is required")
		}
		return s3.New(ctx, cfg.Bucket,
			s3.WithPrefix(cfg.Prefix),
			s3.WithRegion(cfg.Region),
			s3.WithEndpoint(cfg.Endpoint),
		)
	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("snapshot backend minio: endpoint and bucket are required")
		}
		return minio.Open(ctx, cfg.Endpoint, cfg.Bucket, func(o *minio.Options) {
			o.AccessKey = firstNonEmpty(cfg.AccessKey, os.Getenv("MINIO_ACCESS_KEY"))
			o.SecretKey = firstNonEmpty(cfg.SecretKey, os.Getenv("MINIO_SECRET_KEY"))
			o.Region = cfg.Region
			o.Secure = cfg.Secure
			o.Prefix = cfg.Prefix
		})
	default:
		return nil, fmt.Errorf("snapshot backend %q: want local, s3 or minio", cfg.Backend)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newSnapshotManager(blobs blobstore.BlobStore, cfg SnapshotConfig, rc *resource.Controller, logger *slog.Logger) (*snapshot.Manager, error) {
	c, err := snapshot.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return snapshot.New(blobs, func(o *snapshot.Options) {
		o.Compression = c
		o.Retain = cfg.Retain
		o.Resource = rc
		o.Logger = logger
	}), nil
}

func newResourceController(cfg Config) *resource.Controller {
	return resource.NewController(resource.Config{
		MaxBranchWorkers:   int64(max(cfg.Counter.Parallelism, 1)),
		ScanPagesPerSec:    cfg.Resource.ScanPagesPerSec,
		MemoryLimitBytes:   cfg.Resource.MemoryLimitBytes,
		IOLimitBytesPerSec: cfg.Resource.IOLimitBytesPerSec,
	})
}

func counterOptions(cfg CounterConfig) []func(*rangecount.Options) {
	optFns := []func(*rangecount.Options){
		func(o *rangecount.Options) {
			o.MinPoints = cfg.MinPoints
			o.XFactor = cfg.XFactor
			o.YFactor = cfg.YFactor
			o.MaxDepth = cfg.MaxDepth
			o.MaxNodes = cfg.MaxNodes
			o.Timeout = cfg.Timeout
		},
	}
	if cfg.LegacyThresholds {
		optFns = append(optFns, rangecount.WithLegacyThresholds())
	}
	return optFns
}
