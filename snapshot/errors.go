package snapshot

import "errors"

var (
	// ErrNoSnapshot is returned when nothing has been published yet.
	ErrNoSnapshot = errors.New("snapshot: no snapshot")

	// ErrCorrupt is returned for malformed headers, manifests or payloads.
	ErrCorrupt = errors.New("snapshot: corrupt")
)
