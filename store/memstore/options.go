package memstore

import "log/slog"

// Options configures an in-memory store.
type Options struct {
	// Logger receives debug output. Defaults to a discarding logger.
	Logger *slog.Logger

	// FirstID is the id assigned to the first inserted record.
	// Default: 1, so that id 0 never names a record.
	FirstID uint64
}

// DefaultOptions are applied before user options.
var DefaultOptions = Options{
	Logger:  slog.New(slog.DiscardHandler),
	FirstID: 1,
}
