package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLifecycle(t *testing.T, store BlobStore) {
	ctx := context.Background()

	blobName := "snapshots/points-001.snap"
	data := []byte("hello world, this is a test blob for pointcount")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)
	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	rc, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "this", string(content))

	rc, err = NewReader(ctx, blob)
	require.NoError(t, err)
	content, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, data, content)

	require.NoError(t, store.Put(ctx, "snapshots/points-002.snap", []byte("second")))
	require.NoError(t, store.Put(ctx, "other.bin", nil))

	names, err := store.List(ctx, "snapshots/")
	require.NoError(t, err)
	require.Equal(t, []string{"snapshots/points-001.snap", "snapshots/points-002.snap"}, names)

	require.NoError(t, store.Delete(ctx, blobName))
	require.NoError(t, store.Delete(ctx, blobName), "deleting a missing blob is not an error")

	names, err = store.List(ctx, "snapshots/")
	require.NoError(t, err)
	require.Equal(t, []string{"snapshots/points-002.snap"}, names)

	_, err = store.Open(ctx, blobName)
	require.ErrorIs(t, err, ErrNotFound)

	empty, err := store.Open(ctx, "other.bin")
	require.NoError(t, err)
	defer empty.Close()
	rc, err = NewReader(ctx, empty)
	require.NoError(t, err)
	content, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func testRangeBoundaries(t *testing.T, store BlobStore) {
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "boundary.bin", []byte("0123456789")))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 0, 10)
	require.NoError(t, err)
	content, _ := io.ReadAll(r)
	r.Close()
	require.Equal(t, "0123456789", string(content))

	r, err = blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	r.Close()

	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)

	n, err := blob.ReadAt(ctx, make([]byte, 4), 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocalStore(t *testing.T) {
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, NewLocalStore(t.TempDir())) })
	t.Run("RangeBoundaries", func(t *testing.T) { testRangeBoundaries(t, NewLocalStore(t.TempDir())) })
}

func TestLocalStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	require.NoError(t, store.Put(context.Background(), "a.snap", []byte("a")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.snap", entries[0].Name())

	_, err = os.Stat(filepath.Join(dir, "a.snap"))
	require.NoError(t, err)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore(t *testing.T) {
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, NewMemoryStore()) })
	t.Run("RangeBoundaries", func(t *testing.T) { testRangeBoundaries(t, NewMemoryStore()) })
}

func TestMemoryStore_PutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "x", data))
	data[0] = 'z'

	blob, err := store.Open(ctx, "x")
	require.NoError(t, err)
	b, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}
