package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"

	"github.com/hupe1980/pointcount/internal/observability"
)

// Config is the daemon configuration. It is read from a TOML file and then
// overridden by command-line flags.
type Config struct {
	Log      LogConfig                   `toml:"log"`
	HTTP     HTTPConfig                  `toml:"http"`
	Store    StoreConfig                 `toml:"store"`
	Counter  CounterConfig               `toml:"counter"`
	Resource ResourceConfig              `toml:"resource"`
	Snapshot SnapshotConfig              `toml:"snapshot"`
	Tracing  observability.TracingConfig `toml:"tracing"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // text | json
}

type HTTPConfig struct {
	Addr              string  `toml:"addr"`
	MetricsAddr       string  `toml:"metrics_addr"`
	BasePath          string  `toml:"base_path"`
	DefaultPageSize   int     `toml:"default_page_size"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type StoreConfig struct {
	Backend    string `toml:"backend"` // memory | badger
	Path       string `toml:"path"`
	SyncWrites bool   `toml:"sync_writes"`
}

type CounterConfig struct {
	MinPoints        int           `toml:"min_points"`
	XFactor          float64       `toml:"x_factor"`
	YFactor          float64       `toml:"y_factor"`
	LegacyThresholds bool          `toml:"legacy_thresholds"`
	MaxDepth         int           `toml:"max_depth"`
	MaxNodes         int64         `toml:"max_nodes"`
	Timeout          time.Duration `toml:"timeout"`
	Parallelism      int           `toml:"parallelism"`
}

type ResourceConfig struct {
	ScanPagesPerSec    float64 `toml:"scan_pages_per_sec"`
	MemoryLimitBytes   int64   `toml:"memory_limit_bytes"`
	IOLimitBytesPerSec int64   `toml:"io_limit_bytes_per_sec"`
}

type SnapshotConfig struct {
	Backend     string        `toml:"backend"` // "" (disabled) | local | s3 | minio
	Path        string        `toml:"path"`
	Bucket      string        `toml:"bucket"`
	Prefix      string        `toml:"prefix"`
	Endpoint    string        `toml:"endpoint"`
	Region      string        `toml:"region"`
	AccessKey   string        `toml:"access_key"`
	SecretKey   string        `toml:"secret_key"`
	Secure      bool          `toml:"secure"`
	Compression string        `toml:"compression"`
	Retain      int           `toml:"retain"`
	Interval    time.Duration `toml:"interval"`
	Restore     bool          `toml:"restore"`
}

func defaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{
			Addr:            ":5000",
			MetricsAddr:     ":9090",
			BasePath:        "/v1/NN",
			DefaultPageSize: 100,
		},
		Store: StoreConfig{Backend: "memory", Path: "./data"},
		Counter: CounterConfig{
			MinPoints: 16,
			XFactor:   0.1,
			YFactor:   0.1,
			MaxDepth:  256,
			MaxNodes:  1 << 20,
		},
		Snapshot: SnapshotConfig{
			Path:        "./snapshots",
			Compression: "lz4",
			Retain:      3,
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// setting binds one flag to one configuration field.
type setting struct {
	name  string
	usage string
	def   any
	set   func(c *Config, v any) error
}

func str(dst func(c *Config) *string) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		s, err := cast.ToStringE(v)
		*dst(c) = s
		return err
	}
}

func integer(dst func(c *Config) *int) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		n, err := cast.ToIntE(v)
		*dst(c) = n
		return err
	}
}

func integer64(dst func(c *Config) *int64) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		n, err := cast.ToInt64E(v)
		*dst(c) = n
		return err
	}
}

func float(dst func(c *Config) *float64) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		f, err := cast.ToFloat64E(v)
		*dst(c) = f
		return err
	}
}

func boolean(dst func(c *Config) *bool) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		b, err := cast.ToBoolE(v)
		*dst(c) = b
		return err
	}
}

func duration(dst func(c *Config) *time.Duration) func(c *Config, v any) error {
	return func(c *Config, v any) error {
		d, err := cast.ToDurationE(v)
		*dst(c) = d
		return err
	}
}

var settings = []setting{
	{"log-level", "log level (debug, info, warn, error)", "info", str(func(c *Config) *string { return &c.Log.Level })},
	{"log-format", "log format (text, json)", "text", str(func(c *Config) *string { return &c.Log.Format })},
	{"addr", "HTTP listen address", ":5000", str(func(c *Config) *string { return &c.HTTP.Addr })},
	{"metrics-addr", "Prometheus listen address; empty disables it", ":9090", str(func(c *Config) *string { return &c.HTTP.MetricsAddr })},
	{"rps", "global request rate limit; 0 disables it", 0.0, float(func(c *Config) *float64 { return &c.HTTP.RequestsPerSecond })},
	{"store", "record store backend (memory, badger)", "memory", str(func(c *Config) *string { return &c.Store.Backend })},
	{"data-dir", "badger data directory", "./data", str(func(c *Config) *string { return &c.Store.Path })},
	{"min-points", "aggregate count below which a rectangle is scanned", 16, integer(func(c *Config) *int { return &c.Counter.MinPoints })},
	{"legacy-thresholds", "use the asymmetric x/y base-case thresholds", false, boolean(func(c *Config) *bool { return &c.Counter.LegacyThresholds })},
	{"max-nodes", "per-count node budget; 0 disables it", int64(1 << 20), integer64(func(c *Config) *int64 { return &c.Counter.MaxNodes })},
	{"count-timeout", "per-count time budget; 0 disables it", time.Duration(0), duration(func(c *Config) *time.Duration { return &c.Counter.Timeout })},
	{"parallelism", "split branches evaluated concurrently", 0, integer(func(c *Config) *int { return &c.Counter.Parallelism })},
	{"snapshot-backend", "snapshot blob store (local, s3, minio); empty disables snapshots", "", str(func(c *Config) *string { return &c.Snapshot.Backend })},
	{"snapshot-path", "local snapshot directory", "./snapshots", str(func(c *Config) *string { return &c.Snapshot.Path })},
	{"snapshot-bucket", "snapshot bucket for s3 and minio", "", str(func(c *Config) *string { return &c.Snapshot.Bucket })},
	{"snapshot-compression", "snapshot compression (none, lz4, zstd)", "lz4", str(func(c *Config) *string { return &c.Snapshot.Compression })},
	{"snapshot-interval", "periodic snapshot interval; 0 saves only on shutdown", time.Duration(0), duration(func(c *Config) *time.Duration { return &c.Snapshot.Interval })},
	{"restore", "restore the latest snapshot on startup", false, boolean(func(c *Config) *bool { return &c.Snapshot.Restore })},
}

// registerFlags adds every setting to fs.
func registerFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		switch def := s.def.(type) {
		case string:
			fs.String(s.name, def, s.usage)
		case int:
			fs.Int(s.name, def, s.usage)
		case int64:
			fs.Int64(s.name, def, s.usage)
		case float64:
			fs.Float64(s.name, def, s.usage)
		case bool:
			fs.Bool(s.name, def, s.usage)
		case time.Duration:
			fs.Duration(s.name, def, s.usage)
		default:
			panic(fmt.Sprintf("flag %s: unsupported default %T", s.name, def))
		}
	}
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var errs []string
	fs.Visit(func(f *pflag.Flag) {
		for _, s := range settings {
			if s.name != f.Name {
				continue
			}
			if err := s.set(cfg, f.Value.String()); err != nil {
				errs = append(errs, fmt.Sprintf("--%s: %v", f.Name, err))
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("invalid flags: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Level, err)
	}
	return lvl, nil
}
