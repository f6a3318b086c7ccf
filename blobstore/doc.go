// Package blobstore stores point-set snapshots as named blobs.
//
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process, for tests and ephemeral servers
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3 with range reads and multipart uploads
package blobstore
