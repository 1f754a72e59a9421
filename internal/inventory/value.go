package inventory

import "strconv"

// ValueKind discriminates the representations a record field can take.
type ValueKind uint8

const (
	ValueAbsent ValueKind = iota
	ValueString
	ValueInt
	ValueFloat
)

// Value is one typed record field. The zero Value is the absent value: the
// single sentinel used for every unknown, missing, or unparseable source
// field. Values are comparable, so records can be checked for equality.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
}

// Absent returns the explicit absent value.
func Absent() Value {
	return Value{}
}

func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

func IntValue(i int64) Value {
	return Value{kind: ValueInt, num: i}
}

func FloatValue(f float64) Value {
	return Value{kind: ValueFloat, flt: f}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) IsAbsent() bool {
	return v.kind == ValueAbsent
}

func (v Value) Str() string {
	return v.str
}

func (v Value) Int64() (int64, bool) {
	return v.num, v.kind == ValueInt
}

func (v Value) Float64() (float64, bool) {
	return v.flt, v.kind == ValueFloat
}

// CSV renders the value as a CSV cell. Absent renders as the empty cell.
func (v Value) CSV() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueInt:
		return strconv.FormatInt(v.num, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.flt, 'f', -1, 64)
	default:
		return ""
	}
}

// SQL renders the value as a database/sql argument. Absent renders as NULL.
func (v Value) SQL() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueInt:
		return v.num
	case ValueFloat:
		return v.flt
	default:
		return nil
	}
}

// FieldType declares how a schema field is coerced from source payloads.
type FieldType uint8

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	// TypeEpoch is an integer seconds-since-epoch field whose source may be
	// numeric or one of the accepted textual datetime formats.
	TypeEpoch
)

// Field is one column of a category schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered field list of a category. Order is the output
// column order.
type Schema []Field

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}

	return names
}

// FieldType returns the declared type of the named field.
func (s Schema) FieldType(name string) (FieldType, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}

	return TypeString, false
}
