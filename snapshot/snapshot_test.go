package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointcount/blobstore"
	"github.com/hupe1980/pointcount/resource"
	"github.com/hupe1980/pointcount/store/memstore"
	"github.com/hupe1980/pointcount/testutil"
)

func filledStore(t *testing.T, n int) *memstore.Store {
	t.Helper()

	s := memstore.New()
	rng := testutil.NewRNG(7)
	for _, c := range rng.UniformCoords(n, 0, 1000) {
		_, err := s.Insert(context.Background(), c[0], c[1])
		require.NoError(t, err)
	}
	return s
}

func TestSaveRestore(t *testing.T) {
	ctx := context.Background()

	backends := map[string]func(t *testing.T) blobstore.BlobStore{
		"memory": func(*testing.T) blobstore.BlobStore { return blobstore.NewMemoryStore() },
		"local":  func(t *testing.T) blobstore.BlobStore { return blobstore.NewLocalStore(t.TempDir()) },
	}
	codecs := []Compression{CompressionNone, CompressionLZ4, CompressionZstd}

	for name, newBlobs := range backends {
		for _, c := range codecs {
			t.Run(name+"/"+c.String(), func(t *testing.T) {
				src := filledStore(t, 500)
				mgr := New(newBlobs(t), func(o *Options) { o.Compression = c })

				man, err := mgr.Save(ctx, src)
				require.NoError(t, err)
				assert.Equal(t, uint64(1), man.ID)
				assert.Equal(t, 500, man.Points)
				assert.Equal(t, c.String(), man.Compression)

				dst := memstore.New()
				got, err := mgr.Restore(ctx, dst)
				require.NoError(t, err)
				assert.Equal(t, man.ID, got.ID)

				want, err := src.List(ctx, 0, 1000)
				require.NoError(t, err)
				have, err := dst.List(ctx, 0, 1000)
				require.NoError(t, err)
				assert.Equal(t, want, have)

				// Ids keep increasing after a restore.
				p, err := dst.Insert(ctx, -1, -1)
				require.NoError(t, err)
				assert.Greater(t, p.ID, want[len(want)-1].ID)
			})
		}
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	mgr := New(blobstore.NewMemoryStore())

	_, err := mgr.Restore(context.Background(), memstore.New())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = mgr.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSaveRetainsNewest(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	mgr := New(blobs, func(o *Options) { o.Retain = 2 })
	src := filledStore(t, 10)

	for i := 0; i < 4; i++ {
		_, err := mgr.Save(ctx, src)
		require.NoError(t, err)
	}

	snaps, err := blobs.List(ctx, SnapshotPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-000003.pcs", "snapshot-000004.pcs"}, snaps)

	manifests, err := blobs.List(ctx, ManifestPrefix)
	require.NoError(t, err)
	assert.Len(t, manifests, 2)

	latest, err := mgr.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), latest.ID)
}

func TestRestoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	mgr := New(blobs, func(o *Options) { o.Compression = CompressionNone })
	src := filledStore(t, 20)

	man, err := mgr.Save(ctx, src)
	require.NoError(t, err)

	b, err := blobs.Open(ctx, man.Snapshot)
	require.NoError(t, err)
	data, err := b.(blobstore.Mappable).Bytes()
	require.NoError(t, err)
	corrupt := bytes.Clone(data)
	corrupt[len(corrupt)-1] ^= 0xff
	require.NoError(t, b.Close())
	require.NoError(t, blobs.Put(ctx, man.Snapshot, corrupt))

	dst := filledStore(t, 3)
	_, err = mgr.Restore(ctx, dst)
	assert.ErrorIs(t, err, ErrCorrupt)

	// The target is untouched.
	n, err := dst.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRestoreRejectsBadHeader(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	mgr := New(blobs)

	man, err := mgr.Save(ctx, filledStore(t, 5))
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, man.Snapshot, []byte("not a snapshot")))

	_, err = mgr.Restore(ctx, memstore.New())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestRestoreMemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64})
	mgr := New(blobstore.NewMemoryStore(), func(o *Options) { o.Resource = rc })

	_, err := mgr.Save(ctx, filledStore(t, 100))
	require.NoError(t, err)

	_, err = mgr.Restore(ctx, memstore.New())
	assert.ErrorIs(t, err, resource.ErrMemoryLimit)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

type failingSource struct{}

func (failingSource) WriteTo(w io.Writer) (int64, error) {
	_, _ = w.Write([]byte("partial"))
	return 7, errors.New("boom")
}

func TestSaveFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	blobs := blobstore.NewMemoryStore()
	mgr := New(blobs)

	_, err := mgr.Save(ctx, failingSource{})
	require.Error(t, err)

	names, err := blobs.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"":     CompressionNone,
		"none": CompressionNone,
		"LZ4":  CompressionLZ4,
		"zstd": CompressionZstd,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}
