package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMarkdownRendererRender(t *testing.T) {
	r, err := NewMarkdownRenderer("Casey")
	if err != nil {
		t.Fatal(err)
	}

	entries := []Entry{
		{
			Title:    "Go 1.25 released",
			Summary:  "The new release improves the garbage collector.",
			Keywords: []string{"go", "release"},
			Link:     "https://example.com/go",
		},
		{Summary: "An item without a title."},
	}

	path := filepath.Join(t.TempDir(), "reports", "run", "newsletters.md")
	if err := r.Render("newsletters", entries, path); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)

	for _, want := range []string{
		"# newsletters digest",
		"Casey",
		"2 items",
		"## Go 1.25 released",
		"Keywords: go, release",
		"[source](https://example.com/go)",
		"## (untitled)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestEntryFromItem(t *testing.T) {
	item := map[string]any{
		"title":    "T",
		"summary":  "S",
		"link":     "https://example.com",
		"keywords": []any{"one", "two", 3},
		"enrichment": map[string]any{
			"category": "tech",
			"priority": "high",
		},
	}
	e := EntryFromItem(item)
	if e.Title != "T" || e.Summary != "S" || e.Link != "https://example.com" {
		t.Errorf("EntryFromItem() = %+v", e)
	}
	// Non-string keyword entries drop silently.
	if len(e.Keywords) != 2 {
		t.Errorf("Keywords = %v, want the 2 string entries", e.Keywords)
	}
	if e.Enrichment["priority"] != "high" {
		t.Errorf("Enrichment = %v", e.Enrichment)
	}
}

func TestEntryFromItemMissingFields(t *testing.T) {
	e := EntryFromItem(map[string]any{"summary": 42})
	if e.Title != "" || e.Summary != "" || len(e.Keywords) != 0 {
		t.Errorf("EntryFromItem() on junk = %+v, want zero values", e)
	}
}
