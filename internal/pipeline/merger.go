package pipeline

import (
	"encoding/json"
	"fmt"
)

// MergeRaw flattens a sequence of raw chunk/batch outputs into one
// deduplicated item sequence. Each raw output may wrap its items one level
// deep or be a bare item; both normalize through the tagged shape form.
// Order is first-seen; duplicate normalized titles drop; untitled items
// are always kept.
func MergeRaw(raws []json.RawMessage) ([]Item, error) {
	var flat []Item
	for i, raw := range raws {
		s, err := normalizeShape(raw)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		flat = append(flat, s.flatten()...)
	}
	return Merge(flat), nil
}

// Merge deduplicates an item sequence on normalized title, first
// occurrence winning. Items without a title never collide with each other.
func Merge(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		key := it.dedupeKey()
		if key == "" {
			out = append(out, it)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}
