package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/pointcount"
	"github.com/hupe1980/pointcount/geom"
	"github.com/hupe1980/pointcount/testutil"
)

type countOptions struct {
	points       int
	queries      int
	radius       float64
	extent       float64
	seed         int64
	distribution string
}

func newCountCmd(root *rootOptions) *cobra.Command {
	opts := countOptions{}

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Compare the recursive and brute-force counters on generated data.",
		Long: `count loads a generated data set into a memory store, runs the same
queries through both counting algorithms and reports their results and
timings. It fails when the two algorithms disagree.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(root.cfg.Log)
			if err != nil {
				return err
			}
			db, err := openDB(root.cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return runCount(cmd.Context(), cmd.OutOrStdout(), db, opts)
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&opts.points, "points", 10000, "number of generated records")
	fs.IntVar(&opts.queries, "queries", 20, "number of queries")
	fs.Float64Var(&opts.radius, "radius", 50, "query radius")
	fs.Float64Var(&opts.extent, "extent", 1000, "side length of the generated area")
	fs.Int64Var(&opts.seed, "seed", 4711, "random seed")
	fs.StringVar(&opts.distribution, "distribution", "uniform", "point distribution (uniform, clustered, lattice)")
	return cmd
}

func generate(opts countOptions) ([][2]float64, error) {
	rng := testutil.NewRNG(opts.seed)
	switch opts.distribution {
	case "uniform":
		return rng.UniformCoords(opts.points, 0, opts.extent), nil
	case "clustered":
		return rng.ClusteredCoords(opts.points, 8, opts.extent, opts.extent/50), nil
	case "lattice":
		return rng.LatticeCoords(opts.points, 20, opts.extent/20), nil
	default:
		return nil, fmt.Errorf("distribution %q: want uniform, clustered or lattice", opts.distribution)
	}
}

type countStats struct {
	mismatches int
	recursive  time.Duration
	brute      time.Duration
}

func runCount(ctx context.Context, out io.Writer, db *pointcount.DB, opts countOptions) error {
	if opts.points <= 0 || opts.queries <= 0 {
		return fmt.Errorf("points and queries must be positive")
	}

	coords, err := generate(opts)
	if err != nil {
		return err
	}

	ids := make([]geom.ID, 0, len(coords))
	for _, c := range coords {
		p, err := db.Store().Insert(ctx, c[0], c[1])
		if err != nil {
			return err
		}
		ids = append(ids, p.ID)
	}

	rng := testutil.NewRNG(opts.seed + 1)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CENTER\tRECURSIVE\tBRUTE\tT_RECURSIVE\tT_BRUTE")

	var stats countStats
	for i := 0; i < opts.queries; i++ {
		center := ids[rng.Intn(len(ids))]

		rec, recDur, err := timedCount(ctx, db, center, opts.radius, pointcount.ModeRecursive)
		if err != nil {
			return err
		}
		brute, bruteDur, err := timedCount(ctx, db, center, opts.radius, pointcount.ModeBruteForce)
		if err != nil {
			return err
		}

		stats.recursive += recDur
		stats.brute += bruteDur
		mark := ""
		if rec != brute {
			stats.mismatches++
			mark = "  MISMATCH"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s%s\n", center, rec, brute, recDur, bruteDur, mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\npoints=%d queries=%d radius=%g distribution=%s\n",
		opts.points, opts.queries, opts.radius, opts.distribution)
	fmt.Fprintf(out, "recursive total=%s  brute-force total=%s\n", stats.recursive, stats.brute)

	if stats.mismatches > 0 {
		return fmt.Errorf("%d of %d queries disagree", stats.mismatches, opts.queries)
	}
	return nil
}

func timedCount(ctx context.Context, db *pointcount.DB, center geom.ID, radius float64, mode pointcount.Mode) (int, time.Duration, error) {
	q, err := pointcount.NewQuery(center, radius, mode)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	n, err := db.Count(ctx, q)
	return n, time.Since(start), err
}
