package inventory

import (
	"strconv"
	"strings"
	"time"
)

// epochFormats are the accepted textual datetime formats, tried in order.
// Console families disagree on timestamp rendering; anything not matching
// one of these coerces to the absent value.
var epochFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// Coerce converts a raw decoded JSON value into a Value of the declared
// field type. The second return is false when the raw value cannot be
// represented in that type; the returned Value is then absent.
func Coerce(raw any, ft FieldType) (Value, bool) {
	switch ft {
	case TypeString:
		return coerceString(raw)
	case TypeInt:
		return coerceInt(raw)
	case TypeFloat:
		return coerceFloat(raw)
	case TypeEpoch:
		return coerceEpoch(raw)
	default:
		return Absent(), false
	}
}

func coerceString(raw any) (Value, bool) {
	switch v := raw.(type) {
	case string:
		return StringValue(v), true
	case float64:
		return StringValue(strconv.FormatFloat(v, 'f', -1, 64)), true
	case bool:
		return StringValue(strconv.FormatBool(v)), true
	default:
		return Absent(), false
	}
}

func coerceInt(raw any) (Value, bool) {
	switch v := raw.(type) {
	case float64:
		return IntValue(int64(v)), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Absent(), false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return IntValue(int64(f)), true
		}
		return Absent(), false
	default:
		return Absent(), false
	}
}

func coerceFloat(raw any) (Value, bool) {
	switch v := raw.(type) {
	case float64:
		return FloatValue(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Absent(), false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f), true
		}
		return Absent(), false
	default:
		return Absent(), false
	}
}

func coerceEpoch(raw any) (Value, bool) {
	switch v := raw.(type) {
	case float64:
		return IntValue(int64(v)), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Absent(), false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i), true
		}
		for _, layout := range epochFormats {
			if t, err := time.Parse(layout, s); err == nil {
				return IntValue(t.Unix()), true
			}
		}
		return Absent(), false
	default:
		return Absent(), false
	}
}
