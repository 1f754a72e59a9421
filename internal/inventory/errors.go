package inventory

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Normalization errors
	ErrInvalidPayload = errors.ErrorCode("inventory_invalid_payload")
	ErrNormalization  = errors.ErrorCode("inventory_normalization_failed")

	// Category errors
	ErrUnknownCategory = errors.ErrUnknownCategory
)
