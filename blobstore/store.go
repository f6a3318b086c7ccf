package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore stores named, immutable blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates a blob for streaming writes. The blob becomes visible
	// under name only after a successful Close.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes at off. Short reads return io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange streams length bytes starting at off. Ranges past the end
	// are truncated; an offset at or past the end returns io.EOF.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob under construction.
type WritableBlob interface {
	io.WriteCloser

	// Sync flushes buffered data to stable storage where supported.
	Sync() error
}

// Mappable is an optional interface for Blobs backed by a memory mapping.
type Mappable interface {
	// Bytes returns the underlying bytes, valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// NewReader returns a reader over the whole blob.
func NewReader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	if b.Size() == 0 {
		return io.NopCloser(emptyReader{}), nil
	}
	return b.ReadRange(ctx, 0, b.Size())
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
