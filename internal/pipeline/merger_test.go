package pipeline

import (
	"encoding/json"
	"testing"
)

func TestMergeDeduplicatesOnNormalizedTitle(t *testing.T) {
	items := []Item{
		{"title": "A", "summary": "first"},
		{"title": "a ", "summary": "duplicate"},
		{"title": "B", "summary": "second"},
	}
	out := Merge(items)
	if len(out) != 2 {
		t.Fatalf("Merge() returned %d items, want 2", len(out))
	}
	// First occurrence wins.
	if out[0].Title() != "A" || out[0]["summary"] != "first" {
		t.Errorf("out[0] = %v, want the first A", out[0])
	}
	if out[1].Title() != "B" {
		t.Errorf("out[1].Title() = %q, want B", out[1].Title())
	}
}

func TestMergeKeepsUntitledItems(t *testing.T) {
	items := []Item{
		{"summary": "no title one"},
		{"summary": "no title two"},
		{"title": "", "summary": "empty title"},
	}
	out := Merge(items)
	if len(out) != 3 {
		t.Errorf("Merge() returned %d items, want all 3 untitled items kept", len(out))
	}
}

func TestMergeRawNormalizesShapes(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"items": [{"title": "A"}, {"title": "B"}]}`),
		json.RawMessage(`[{"title": "C"}]`),
		json.RawMessage(`{"title": "A", "summary": "dupe across chunks"}`),
		json.RawMessage(`{"title": "D"}`),
	}
	out, err := MergeRaw(raws)
	if err != nil {
		t.Fatalf("MergeRaw() error = %v", err)
	}
	titles := make([]string, len(out))
	for i, it := range out {
		titles[i] = it.Title()
	}
	want := []string{"A", "B", "C", "D"}
	if len(titles) != len(want) {
		t.Fatalf("MergeRaw() titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
}

func TestMergeRawRejectsMalformedOutput(t *testing.T) {
	raws := []json.RawMessage{json.RawMessage(`"just a string"`)}
	if _, err := MergeRaw(raws); err == nil {
		t.Error("MergeRaw() expected error for non-object output")
	}
}

func TestParseResultForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"wrapper object", `{"items": [{"title": "a"}, {"title": "b"}]}`, 2},
		{"bare array", `[{"title": "a"}]`, 1},
		{"bare item", `{"title": "solo"}`, 1},
		{"empty items", `{"items": []}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult(tt.doc)
			if err != nil {
				t.Fatalf("ParseResult(%q) error = %v", tt.doc, err)
			}
			if len(result.Items) != tt.want {
				t.Errorf("ParseResult(%q) items = %d, want %d", tt.doc, len(result.Items), tt.want)
			}
		})
	}
}
