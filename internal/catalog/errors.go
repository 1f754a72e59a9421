package catalog

import "codeberg.org/mutker/fleetinv/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Query errors
	ErrQueryFailed = errors.ErrorCode("catalog_query_failed")
	ErrNoServers   = errors.ErrorCode("catalog_no_servers")
)
