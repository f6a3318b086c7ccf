package resource

import "errors"

// ErrMemoryLimit is returned when a single reservation exceeds the hard
// memory limit and could never be granted.
var ErrMemoryLimit = errors.New("resource: request exceeds memory limit")
