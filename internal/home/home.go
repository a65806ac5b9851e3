// Package home lays out the maildigest home directory: configuration,
// per-run state files, in-flight chunk artifacts, and rendered reports.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the maildigest home directory.
	DefaultDirName = ".maildigest"

	// RunsDirName is the subdirectory for per-run state and artifacts.
	RunsDirName = "runs"

	// ReportsDirName is the subdirectory for rendered reports.
	ReportsDirName = "reports"

	// MailDirName is the subdirectory the local directory source reads.
	MailDirName = "mail"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the maildigest home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.maildigest).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// MailPath returns the local mail directory.
func (d *Dir) MailPath() string {
	return filepath.Join(d.path, MailDirName)
}

// ReportsPath returns the rendered-reports directory.
func (d *Dir) ReportsPath() string {
	return filepath.Join(d.path, ReportsDirName)
}

// ReportPath returns the report file for one category in a run.
func (d *Dir) ReportPath(runID, category string) string {
	return filepath.Join(d.ReportsPath(), runID, category+".md")
}

// RunPath returns the state directory for one run.
func (d *Dir) RunPath(runID string) string {
	return filepath.Join(d.path, RunsDirName, runID)
}

// ProgressPath returns the run's progress-state file.
func (d *Dir) ProgressPath(runID string) string {
	return filepath.Join(d.RunPath(runID), "progress.json")
}

// FailedBatchesPath returns the run's failed-batches file.
func (d *Dir) FailedBatchesPath(runID string) string {
	return filepath.Join(d.RunPath(runID), "failed_batches.json")
}

// CategoryPath returns the per-category directory inside a run, holding
// step outputs.
func (d *Dir) CategoryPath(runID, category string) string {
	return filepath.Join(d.RunPath(runID), "categories", category)
}

// ChunksPath returns the directory for in-flight chunk artifacts of one
// category.
func (d *Dir) ChunksPath(runID, category string) string {
	return filepath.Join(d.CategoryPath(runID, category), "chunks")
}

// StepOutputPath returns the durable output file for one pipeline step.
func (d *Dir) StepOutputPath(runID, category, step string) string {
	return filepath.Join(d.CategoryPath(runID, category), step+".json")
}

// EnsureExists creates the home directory and subdirectories if they
// don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.path, d.MailPath(), d.ReportsPath(), filepath.Join(d.path, RunsDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureRunDirs creates the state directories for one run and category.
func (d *Dir) EnsureRunDirs(runID, category string) error {
	if err := os.MkdirAll(d.ChunksPath(runID, category), 0o755); err != nil {
		return fmt.Errorf("failed to create run directories: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
