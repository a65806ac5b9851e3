package mail

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMail(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirSourceFetch(t *testing.T) {
	root := t.TempDir()
	catDir := filepath.Join(root, "newsletters")
	old := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)

	// One file with an array, one with a single message, written out of
	// date order.
	writeMail(t, catDir, "batch.json", []Message{
		{ID: "3", Subject: "newest", Date: newest, HTMLOrText: "c"},
		{ID: "1", Subject: "too old", Date: old, HTMLOrText: "a"},
	})
	writeMail(t, catDir, "single.json", Message{
		ID: "2", Subject: "recent", Date: recent, HTMLOrText: "b",
	})

	src := NewDirSource(root)
	since := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	got, err := src.Fetch(context.Background(), "newsletters", since)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Fetch() = %d messages, want 2 within the window", len(got))
	}
	if got[0].ID != "2" || got[1].ID != "3" {
		t.Errorf("messages out of date order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestDirSourceMissingCategory(t *testing.T) {
	src := NewDirSource(t.TempDir())
	got, err := src.Fetch(context.Background(), "nonexistent", time.Time{})
	if err != nil {
		t.Fatalf("Fetch() error = %v, want nil for missing directory", err)
	}
	if len(got) != 0 {
		t.Errorf("Fetch() = %d messages, want none", len(got))
	}
}

func TestDirSourceIgnoresNonJSON(t *testing.T) {
	root := t.TempDir()
	catDir := filepath.Join(root, "news")
	writeMail(t, catDir, "ok.json", Message{ID: "1", Date: time.Now()})
	if err := os.WriteFile(filepath.Join(catDir, "notes.txt"), []byte("not mail"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(root)
	got, err := src.Fetch(context.Background(), "news", time.Time{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Fetch() = %d messages, want 1", len(got))
	}
}

func TestDirSourceRejectsMalformedFile(t *testing.T) {
	root := t.TempDir()
	catDir := filepath.Join(root, "news")
	if err := os.MkdirAll(catDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(catDir, "bad.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewDirSource(root)
	if _, err := src.Fetch(context.Background(), "news", time.Time{}); err == nil {
		t.Error("Fetch() expected error for malformed JSON")
	}
}
