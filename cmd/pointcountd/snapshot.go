package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/snapshot"
)

// snapshotStore is a record store that can be saved and restored.
// *memstore.Store implements it.
type snapshotStore interface {
	snapshot.Source
	snapshot.Target
}

func saveSnapshot(ctx context.Context, snaps *snapshot.Manager, db *pointcount.DB) (*snapshot.Manifest, error) {
	src, ok := db.Store().(snapshotStore)
	if !ok {
		return nil, errors.New("store does not support snapshots")
	}
	return snaps.Save(ctx, src)
}

func restoreSnapshot(ctx context.Context, snaps *snapshot.Manager, db *pointcount.DB) (*snapshot.Manifest, error) {
	dst, ok := db.Store().(snapshotStore)
	if !ok {
		return nil, errors.New("store does not support snapshots")
	}
	return snaps.Restore(ctx, dst)
}

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "snapshot",
		Short:             "Inspect published snapshots.",
		DisableAutoGenTag: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:               "inspect",
		Short:             "Print the manifest of the latest snapshot as JSON.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := openSnapshots(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			man, err := snaps.Latest(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(man)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:               "verify",
		Short:             "Load the latest snapshot and check its checksum.",
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snaps, err := openSnapshots(cmd.Context(), root.cfg)
			if err != nil {
				return err
			}
			db, err := openDB(root.cfg, pointcount.NoopLogger())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			man, err := restoreSnapshot(cmd.Context(), snaps, db)
			if err != nil {
				return err
			}
			n, err := db.Info(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("snapshot %d OK: %d points (%d bytes, %s)\n", man.ID, n, man.Size, man.Compression)
			return nil
		},
	})

	return cmd
}

func openSnapshots(ctx context.Context, cfg Config) (*snapshot.Manager, error) {
	blobs, err := openBlobStore(ctx, cfg.Snapshot)
	if err != nil {
		return nil, err
	}
	if blobs == nil {
		return nil, fmt.Errorf("no snapshot backend configured (use --snapshot-backend)")
	}
	return newSnapshotManager(blobs, cfg.Snapshot, newResourceController(cfg), nil)
}

// openDB opens a DB on a fresh memory store with the configured counter
// settings.
func openDB(cfg Config, logger *pointcount.Logger) (*pointcount.DB, error) {
	st, err := openStore(StoreConfig{Backend: "memory"}, logger.Logger)
	if err != nil {
		return nil, err
	}
	return pointcount.New(st,
		pointcount.WithLogger(logger),
		pointcount.WithCounterOptions(counterOptions(cfg.Counter)...),
	), nil
}
