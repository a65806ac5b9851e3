package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirLayout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "maildigest-home")
	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	if d.Path() != root {
		t.Errorf("Path() = %q, want %q", d.Path(), root)
	}
	if got, want := d.ConfigPath(), filepath.Join(root, "config.yaml"); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
	if got, want := d.ProgressPath("r1"), filepath.Join(root, "runs", "r1", "progress.json"); got != want {
		t.Errorf("ProgressPath() = %q, want %q", got, want)
	}
	if got, want := d.StepOutputPath("r1", "news", "merge"), filepath.Join(root, "runs", "r1", "categories", "news", "merge.json"); got != want {
		t.Errorf("StepOutputPath() = %q, want %q", got, want)
	}
	if got, want := d.ChunksPath("r1", "news"), filepath.Join(root, "runs", "r1", "categories", "news", "chunks"); got != want {
		t.Errorf("ChunksPath() = %q, want %q", got, want)
	}
	if got, want := d.ReportPath("r1", "news"), filepath.Join(root, "reports", "r1", "news.md"); got != want {
		t.Errorf("ReportPath() = %q, want %q", got, want)
	}
}

func TestDirEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "maildigest-home")
	d, err := New(root)
	if err != nil {
		t.Fatal(err)
	}

	if d.Exists() {
		t.Error("Exists() before creation should be false")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatal(err)
	}
	if !d.Exists() {
		t.Error("Exists() after EnsureExists should be true")
	}
	for _, dir := range []string{d.MailPath(), d.ReportsPath(), filepath.Join(root, "runs")} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}
	if d.ConfigExists() {
		t.Error("ConfigExists() should be false before setup writes one")
	}
}

func TestDirEnsureRunDirs(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "h"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.EnsureRunDirs("r1", "news"); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(d.ChunksPath("r1", "news")); err != nil || !info.IsDir() {
		t.Errorf("chunks dir missing: %v", err)
	}
}
