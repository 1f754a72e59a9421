package inventory

import (
	"strconv"
	"strings"
)

// Path addresses a value inside a decoded JSON payload: a sequence of object
// keys and numeric list indices. Lookup short-circuits on the first missing
// step, so a missing intermediate object never panics and never partially
// resolves.
type Path []string

// PathOf parses a dotted path expression, e.g.
// "Temperature_data.instantaneousTemperature" or "metricList.0.metricSamples.0.1".
func PathOf(expr string) Path {
	if expr == "" {
		return nil
	}

	return Path(strings.Split(expr, "."))
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Lookup walks node along the path. The second return is false when any step
// is missing, out of range, of the wrong shape, or resolves to JSON null.
func (p Path) Lookup(node any) (any, bool) {
	cur := node
	for _, tok := range p {
		switch n := cur.(type) {
		case map[string]any:
			next, ok := n[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, false
			}
			cur = n[idx]
		default:
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}

	return cur, true
}
