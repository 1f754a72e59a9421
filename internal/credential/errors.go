package credential

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Lookup errors
	ErrMissing = errors.ErrorCode("credential_missing")
)
