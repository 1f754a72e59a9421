package collector

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrUnknownCategory = errors.ErrUnknownCategory
	ErrUnknownKind     = errors.ErrUnknownKind
	ErrNoTargets       = errors.ErrNoTargets

	// Fetch errors
	ErrDetailFetch = errors.ErrorCode("collector_detail_fetch_failed")
)
