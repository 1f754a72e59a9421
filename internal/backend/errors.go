package backend

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Authentication and probing errors
	ErrAuthFailed        = errors.ErrorCode("backend_auth_failed")
	ErrProbeInconclusive = errors.ErrorCode("backend_probe_inconclusive")

	// Listing errors
	ErrPageFetch = errors.ErrorCode("backend_page_fetch_failed")

	// Transport errors
	ErrDecodeResponse = errors.ErrorCode("backend_response_decode_failed")

	// Configuration errors
	ErrUnknownKind   = errors.ErrUnknownKind
	ErrInvalidConfig = errors.ErrInvalidConfig
)
