package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Item is one structured entry produced by the backend. The schema is
// owned by the caller; the pipeline only interprets the title field, which
// keys deduplication.
type Item map[string]any

// Title returns the item's title field, or "" when absent or non-string.
func (it Item) Title() string {
	t, _ := it["title"].(string)
	return t
}

// dedupeKey is the normalized (trimmed, case-folded) title. Empty means
// the item must never be deduplicated.
func (it Item) dedupeKey() string {
	return strings.ToLower(strings.TrimSpace(it.Title()))
}

// ExtractionResult is the parsed output of one invocation: a required
// top-level items collection.
type ExtractionResult struct {
	Items []Item `json:"items"`
}

// shapeKind tags the normalized form of a raw output.
type shapeKind int

const (
	shapeCollection shapeKind = iota
	shapeSingle
)

// shape is the tagged variant a raw output normalizes into at the parse
// boundary, so downstream code never re-checks dynamic forms.
type shape struct {
	kind   shapeKind
	single Item
	items  []Item
}

func (s shape) flatten() []Item {
	if s.kind == shapeSingle {
		return []Item{s.single}
	}
	return s.items
}

// normalizeShape parses one raw chunk/batch output into its tagged form.
// Accepted forms: an object wrapping an items array, a bare array of
// items, or a bare single item object.
func normalizeShape(raw json.RawMessage) (shape, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return shape{kind: shapeCollection}, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []Item
		if err := json.Unmarshal(raw, &items); err != nil {
			return shape{}, fmt.Errorf("failed to parse item array: %w", err)
		}
		return shape{kind: shapeCollection, items: items}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return shape{}, fmt.Errorf("failed to parse output object: %w", err)
	}

	if wrapped, ok := obj["items"]; ok {
		var items []Item
		if err := json.Unmarshal(wrapped, &items); err != nil {
			return shape{}, fmt.Errorf("failed to parse items field: %w", err)
		}
		return shape{kind: shapeCollection, items: items}, nil
	}

	var single Item
	if err := json.Unmarshal(raw, &single); err != nil {
		return shape{}, fmt.Errorf("failed to parse bare item: %w", err)
	}
	return shape{kind: shapeSingle, single: single}, nil
}

// ParseResult parses a balanced JSON document into an ExtractionResult,
// normalizing wrapper and bare forms.
func ParseResult(doc string) (*ExtractionResult, error) {
	s, err := normalizeShape(json.RawMessage(doc))
	if err != nil {
		return nil, err
	}
	return &ExtractionResult{Items: s.flatten()}, nil
}
