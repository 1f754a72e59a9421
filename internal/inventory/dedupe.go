package inventory

// Dedupe removes logical duplicates first-seen-wins: items are scanned in
// order and an item whose non-empty key was already seen is dropped. Items
// with an empty key are always retained; they are never duplicates of each
// other.
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))

	for _, item := range items {
		k := key(item)
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, item)
	}

	return out
}
