package catalog

import "context"

// Source yields the fleet servers that a collection run should visit.
type Source interface {
	// Servers returns the deduplicated catalog entries. Individual page
	// failures are tolerated; an error is returned only when no entry
	// could be retrieved at all.
	Servers(ctx context.Context) ([]Server, error)
}
