package sink

import "codeberg.org/mutker/fleetinv/internal/inventory"

// Batch is one write unit: a named table of rows sharing a schema. The
// schema drives column order; fields a row does not carry render as empty
// (CSV) or NULL (SQLite).
type Batch struct {
	Name   string
	Schema inventory.Schema
	Rows   []inventory.DetailRecord
}

// Sink persists record batches from a collection run.
type Sink interface {
	WriteBatch(batch Batch) error
	Close() error
}
