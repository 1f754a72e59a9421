package inventory

import (
	"strconv"

	"codeberg.org/mutker/fleetinv/internal/errors"
	"codeberg.org/mutker/fleetinv/internal/logger"
)

// FieldMapping binds one schema field to a source path. Paths on a fan-out
// level are relative to that level's item; top-level paths are relative to
// the payload root.
type FieldMapping struct {
	Field string
	Path  Path
}

// FanOutLevel names a nested collection that multiplies output rows: every
// item of the collection at Path contributes its Fields to the rows built
// beneath it. Levels nest (e.g. NICs -> ports -> partitions).
type FanOutLevel struct {
	Path   Path
	Fields []FieldMapping
}

// MappingSet is the declarative extraction for one (backend kind, category)
// pair: root-level field mappings plus zero or more fan-out levels. A set
// without fan-out yields exactly one record per payload; with fan-out, one
// record per innermost item, zero when the collection is missing or empty.
type MappingSet struct {
	Fields []FieldMapping
	FanOut []FanOutLevel
}

// Normalizer converts detail payloads into DetailRecords. The batch epoch is
// fixed at construction so that normalizing the same inputs always yields
// identical records.
type Normalizer struct {
	batchEpoch int64
}

func NewNormalizer(batchEpoch int64) *Normalizer {
	return &Normalizer{batchEpoch: batchEpoch}
}

// Normalize flattens payload into records conforming to cat.Schema. Every
// schema field is present in every record; fields the payload does not
// provide carry the absent value. Returned errors are per-row normalization
// failures (the affected row is dropped); they never abort the remaining
// rows.
func (n *Normalizer) Normalize(entity Entity, cat Category, ms MappingSet, payload any) ([]DetailRecord, []error) {
	errFactory := errors.New()

	root, ok := payload.(map[string]any)
	if !ok {
		if payload == nil {
			root = map[string]any{}
		} else {
			err := errFactory.WithData(ErrInvalidPayload, struct {
				Category string
				DeviceID string
			}{cat.Name, entity.ID})

			return nil, []error{err}
		}
	}

	base := n.newRow(entity, cat)
	n.applyFields(cat, ms.Fields, root, base)

	if len(ms.FanOut) == 0 {
		return []DetailRecord{{Category: cat.Name, Fields: base}}, nil
	}

	var (
		records []DetailRecord
		errs    []error
	)
	n.fanOut(entity, cat, ms.FanOut, root, base, &records, &errs)

	return records, errs
}

func (n *Normalizer) fanOut(
	entity Entity,
	cat Category,
	levels []FanOutLevel,
	node map[string]any,
	row map[string]Value,
	records *[]DetailRecord,
	errs *[]error,
) {
	errFactory := errors.New()
	level := levels[0]

	raw, ok := level.Path.Lookup(node)
	if !ok {
		// Missing collection means nothing to report for this branch.
		return
	}

	list, ok := raw.([]any)
	if !ok {
		*errs = append(*errs, errFactory.WithData(ErrNormalization, struct {
			Category string
			DeviceID string
			Path     string
		}{cat.Name, entity.ID, level.Path.String()}))

		return
	}

	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			*errs = append(*errs, errFactory.WithData(ErrNormalization, struct {
				Category string
				DeviceID string
				Path     string
			}{cat.Name, entity.ID, level.Path.String() + "." + strconv.Itoa(i)}))

			continue
		}

		branch := cloneRow(row)
		n.applyFields(cat, level.Fields, obj, branch)

		if len(levels) == 1 {
			*records = append(*records, DetailRecord{Category: cat.Name, Fields: branch})
		} else {
			n.fanOut(entity, cat, levels[1:], obj, branch, records, errs)
		}
	}
}

func (n *Normalizer) applyFields(cat Category, mappings []FieldMapping, node any, row map[string]Value) {
	for _, m := range mappings {
		if _, declared := row[m.Field]; !declared {
			logger.Debug().
				Str("category", cat.Name).
				Str("field", m.Field).
				Msg("Mapping references a field outside the category schema")

			continue
		}

		raw, ok := m.Path.Lookup(node)
		if !ok {
			continue // stays absent
		}

		ft, _ := cat.Schema.FieldType(m.Field)
		v, ok := Coerce(raw, ft)
		if !ok {
			logger.Warn().
				Str("category", cat.Name).
				Str("field", m.Field).
				Str("path", m.Path.String()).
				Msg("Source value not coercible; recording absent value")

			continue
		}

		row[m.Field] = v
	}
}

// newRow builds a row carrying every schema field (absent) with the identity
// prefix populated from the entity.
func (n *Normalizer) newRow(entity Entity, cat Category) map[string]Value {
	row := make(map[string]Value, len(cat.Schema))
	for _, f := range cat.Schema {
		row[f.Name] = Absent()
	}

	row[FieldDeviceID] = StringValue(entity.ID)
	row[FieldDeviceName] = StringValue(entity.Name)
	row[FieldSerialNumber] = StringValue(entity.Serial)
	row[FieldConsoleAddress] = StringValue(entity.Target.Address)
	row[FieldCollectedEpoch] = IntValue(n.batchEpoch)

	return row
}

func cloneRow(row map[string]Value) map[string]Value {
	out := make(map[string]Value, len(row))
	for k, v := range row {
		out[k] = v
	}

	return out
}
