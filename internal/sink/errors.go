package sink

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Write errors
	ErrWriteFailed = errors.ErrorCode("sink_write_failed")

	// Lifecycle errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
)
