// Package minio stores snapshots in MinIO or any other S3-compatible object
// store through the MinIO Go client.
//
// # Basic Usage
//
//	store, err := minioblob.Open(ctx, "localhost:9000", "snapshots", func(o *minioblob.Options) {
//	    o.AccessKey = "minioadmin"
//	    o.SecretKey = "minioadmin"
//	    o.Prefix = "pointcount/"
//	})
//
// An existing client can be wrapped with NewStore.
package minio
