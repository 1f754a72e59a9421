package inventory

// Target is one host to be inventoried during a collection run.
type Target struct {
	// Address is the hostname or IP the management console answers on.
	Address string
	// IP is the resolved address when Address was a name. Informational;
	// empty when resolution was not attempted or failed.
	IP string
	// Kind is the declared backend kind name, when known ahead of time.
	// Empty means the target must be probed.
	Kind string
}

// Entity is one top-level inventoried object (typically a physical server),
// immutable once materialized by a backend listing.
type Entity struct {
	// ID is the backend-assigned identifier used in detail endpoints.
	ID string
	// Name is the human-readable name reported by the console.
	Name string
	// Serial is the serial/service-tag field used for deduplication.
	Serial string
	// Target is the console this entity was listed from.
	Target Target
}

// DetailRecord is one flattened output row for one (Entity, Category) pair.
// Fields holds exactly the category schema's field names; fields the source
// did not provide carry the absent value.
type DetailRecord struct {
	Category string
	Fields   map[string]Value
}

// Field returns the named field's value, absent when the record does not
// carry it.
func (r DetailRecord) Field(name string) Value {
	return r.Fields[name]
}
