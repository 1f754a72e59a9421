package collector

import (
	"context"

	"codeberg.org/mutker/fleetinv/internal/inventory"
)

// Collector runs collection passes over a fleet of targets.
type Collector interface {
	Collect(ctx context.Context, targets []inventory.Target) (*Report, error)
}
