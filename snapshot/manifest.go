package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/pointcount/blobstore"
)

const (
	// ManifestPrefix prefixes manifest blob names.
	ManifestPrefix = "MANIFEST-"
	// SnapshotPrefix prefixes snapshot blob names.
	SnapshotPrefix = "snapshot-"
	// CurrentName names the blob holding the current manifest name.
	CurrentName = "CURRENT"
	// ManifestVersion is the manifest format version.
	ManifestVersion = 1
)

// Manifest describes one published snapshot.
type Manifest struct {
	Version     int       `json:"version"`
	ID          uint64    `json:"id"`
	Snapshot    string    `json:"snapshot"`
	Compression string    `json:"compression"`
	Size        int64     `json:"size"`
	RawSize     int64     `json:"raw_size"`
	Checksum    uint32    `json:"checksum"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

func manifestName(id uint64) string {
	return fmt.Sprintf("%s%06d.json", ManifestPrefix, id)
}

func snapshotName(id uint64) string {
	return fmt.Sprintf("%s%06d.pcs", SnapshotPrefix, id)
}

func readBlob(ctx context.Context, blobs blobstore.BlobStore, name string) ([]byte, error) {
	b, err := blobs.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Close() }()

	r, err := blobstore.NewReader(ctx, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return io.ReadAll(r)
}

// loadManifest returns the current manifest, or ErrNoSnapshot.
func loadManifest(ctx context.Context, blobs blobstore.BlobStore) (*Manifest, error) {
	current, err := readBlob(ctx, blobs, CurrentName)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	data, err := readBlob(ctx, blobs, strings.TrimSpace(string(current)))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrCorrupt, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d (expected %d)", ErrCorrupt, m.Version, ManifestVersion)
	}
	return &m, nil
}

// publish writes the manifest and then swings CURRENT to it.
func publish(ctx context.Context, blobs blobstore.BlobStore, m *Manifest) error {
	m.Version = ManifestVersion

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	name := manifestName(m.ID)
	if err := blobs.Put(ctx, name, data); err != nil {
		return fmt.Errorf("snapshot: write manifest: %w", err)
	}
	if err := blobs.Put(ctx, CurrentName, []byte(name)); err != nil {
		return fmt.Errorf("snapshot: update %s: %w", CurrentName, err)
	}
	return nil
}
