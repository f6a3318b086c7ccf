package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/pointcount/blobstore"
	"github.com/hupe1980/pointcount/internal/hash"
	"github.com/hupe1980/pointcount/resource"
)

// Source is anything that can serialize itself, such as *memstore.Store.
type Source interface {
	WriteTo(w io.Writer) (int64, error)
}

// Target is anything that can replace its contents from a serialized stream.
type Target interface {
	ReadFrom(r io.Reader) (int64, error)
}

// Options configures a Manager.
type Options struct {
	// Compression is the payload codec for new snapshots.
	// Default: CompressionLZ4.
	Compression Compression

	// Retain is the number of published snapshots kept after a save.
	// Zero keeps all of them. Default: 3.
	Retain int

	// Resource throttles snapshot IO and bounds restore buffers.
	// Nil means unlimited.
	Resource *resource.Controller

	// Logger receives save and restore events.
	Logger *slog.Logger
}

// DefaultOptions are applied before user options.
var DefaultOptions = Options{
	Compression: CompressionLZ4,
	Retain:      3,
	Logger:      slog.New(slog.DiscardHandler),
}

// Manager saves and restores snapshots in a blob store.
type Manager struct {
	blobs blobstore.BlobStore
	opts  Options
	mu    sync.Mutex // serializes saves
}

// New creates a manager over blobs.
func New(blobs blobstore.BlobStore, optFns ...func(o *Options)) *Manager {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = DefaultOptions.Logger
	}
	if opts.Retain < 0 {
		opts.Retain = 0
	}
	return &Manager{blobs: blobs, opts: opts}
}

// Latest returns the manifest of the most recent snapshot, or ErrNoSnapshot.
func (m *Manager) Latest(ctx context.Context) (*Manifest, error) {
	return loadManifest(ctx, m.blobs)
}

// Save writes src as a new snapshot and publishes it.
func (m *Manager) Save(ctx context.Context, src Source) (*Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var nextID uint64 = 1
	prev, err := loadManifest(ctx, m.blobs)
	switch {
	case err == nil:
		nextID = prev.ID + 1
	case !errors.Is(err, ErrNoSnapshot):
		return nil, err
	}

	start := time.Now()
	name := snapshotName(nextID)

	w, err := m.blobs.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create %s: %w", name, err)
	}

	size, raw, sum, err := m.write(ctx, w, src)
	if err != nil {
		_ = w.Close()
		_ = m.blobs.Delete(ctx, name)
		return nil, err
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		_ = m.blobs.Delete(ctx, name)
		return nil, err
	}
	if err := w.Close(); err != nil {
		_ = m.blobs.Delete(ctx, name)
		return nil, fmt.Errorf("snapshot: close %s: %w", name, err)
	}

	man := &Manifest{
		ID:          nextID,
		Snapshot:    name,
		Compression: m.opts.Compression.String(),
		Size:        size,
		RawSize:     raw,
		Checksum:    sum,
		Points:      pointsOf(ctx, src),
		CreatedAt:   time.Now().UTC(),
	}
	if err := publish(ctx, m.blobs, man); err != nil {
		return nil, err
	}

	m.opts.Logger.Info("snapshot saved",
		"id", man.ID,
		"points", man.Points,
		"size", man.Size,
		"raw_size", man.RawSize,
		"compression", man.Compression,
		"duration", time.Since(start),
	)

	if err := m.prune(ctx); err != nil {
		m.opts.Logger.Warn("snapshot prune failed", "error", err)
	}
	return man, nil
}

func (m *Manager) write(ctx context.Context, w io.Writer, src Source) (size, raw int64, sum uint32, err error) {
	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, m.opts.Resource)}

	if err := (header{Version: headerVersion, Compression: m.opts.Compression}).writeTo(cw); err != nil {
		return 0, 0, 0, err
	}

	zw, err := m.opts.Compression.newWriter(cw)
	if err != nil {
		return 0, 0, 0, err
	}

	h := hash.NewCRC32C()
	raw, err = src.WriteTo(io.MultiWriter(zw, h))
	if err != nil {
		_ = zw.Close()
		return 0, 0, 0, fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, 0, 0, err
	}
	return cw.n, raw, h.Sum32(), nil
}

func pointsOf(ctx context.Context, src Source) int {
	l, ok := src.(interface {
		Len(ctx context.Context) (int, error)
	})
	if !ok {
		return 0
	}
	n, err := l.Len(ctx)
	if err != nil {
		return 0
	}
	return n
}

// Restore loads the most recent snapshot into dst.
//
// The payload is fully decoded and verified before dst is touched.
func (m *Manager) Restore(ctx context.Context, dst Target) (*Manifest, error) {
	man, err := loadManifest(ctx, m.blobs)
	if err != nil {
		return nil, err
	}
	if man.RawSize < 0 {
		return nil, fmt.Errorf("%w: negative raw size", ErrCorrupt)
	}

	start := time.Now()

	if err := m.opts.Resource.AcquireMemory(ctx, man.RawSize); err != nil {
		return nil, fmt.Errorf("snapshot: reserve %d bytes: %w", man.RawSize, err)
	}
	defer m.opts.Resource.ReleaseMemory(man.RawSize)

	payload, err := m.read(ctx, man)
	if err != nil {
		return nil, err
	}

	if _, err := dst.ReadFrom(bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", man.Snapshot, err)
	}

	m.opts.Logger.Info("snapshot restored",
		"id", man.ID,
		"points", man.Points,
		"duration", time.Since(start),
	)
	return man, nil
}

func (m *Manager) read(ctx context.Context, man *Manifest) ([]byte, error) {
	b, err := m.blobs.Open(ctx, man.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", man.Snapshot, err)
	}
	defer func() { _ = b.Close() }()

	rc, err := blobstore.NewReader(ctx, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	r := resource.NewRateLimitedReader(ctx, rc, m.opts.Resource)

	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Compression.String() != man.Compression {
		return nil, fmt.Errorf("%w: compression %s does not match manifest %s", ErrCorrupt, h.Compression, man.Compression)
	}

	zr, err := h.Compression.newReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()

	buf := bytes.NewBuffer(make([]byte, 0, man.RawSize))
	if _, err := io.Copy(buf, io.LimitReader(zr, man.RawSize+1)); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}
	if int64(buf.Len()) != man.RawSize {
		return nil, fmt.Errorf("%w: payload is %d bytes, manifest says %d", ErrCorrupt, buf.Len(), man.RawSize)
	}
	if sum := hash.CRC32C(buf.Bytes()); sum != man.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrCorrupt, sum, man.Checksum)
	}
	return buf.Bytes(), nil
}

// prune deletes snapshots and manifests older than the retained ones.
func (m *Manager) prune(ctx context.Context) error {
	if m.opts.Retain == 0 {
		return nil
	}

	var errs []error
	for _, prefix := range []string{SnapshotPrefix, ManifestPrefix} {
		names, err := m.blobs.List(ctx, prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		names = withPrefix(names, prefix)
		slices.Sort(names)
		if len(names) <= m.opts.Retain {
			continue
		}
		for _, name := range names[:len(names)-m.opts.Retain] {
			if err := m.blobs.Delete(ctx, name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func withPrefix(names []string, prefix string) []string {
	out := names[:0]
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}
