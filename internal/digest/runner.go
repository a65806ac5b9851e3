package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/maildigest/internal/home"
	"github.com/jackzampolin/maildigest/internal/mail"
	"github.com/jackzampolin/maildigest/internal/pipeline"
	"github.com/jackzampolin/maildigest/internal/report"
	"github.com/jackzampolin/maildigest/internal/state"
)

// Pipeline step names, in execution order. Each step persists its output
// under the run directory so a resumed run can pick up after the last
// completed step without repeating work.
const (
	StepFetch   = "fetch"
	StepExtract = "llm_extract"
	StepMerge   = "merge"
	StepEnrich  = "enrich"
	StepRender  = "render"
)

// Steps returns the ordered step list for a work unit.
func Steps() []string {
	return []string{StepFetch, StepExtract, StepMerge, StepEnrich, StepRender}
}

// messageSeparator joins normalized email bodies; the splitter treats it
// as a paragraph boundary.
const messageSeparator = "\n\n---\n\n"

// RunnerConfig wires a Runner. All pipeline knobs arrive as explicit
// parameters; nothing is read from the environment here.
type RunnerConfig struct {
	Home  *home.Dir
	RunID string

	Source   mail.Source
	Since    time.Time
	Renderer report.Renderer

	// Invoker is the decorated call stack (truncation over backoff over
	// the base invoker).
	Invoker   pipeline.Invoker
	Validator pipeline.Validator

	Progress *state.ProgressManager
	Failures *state.FailedBatchManager

	SizeLimit      int
	MaxHeaderChars int

	BatchLadder      []int
	InitialBatchSize int

	// MaxConcurrentUnits caps how many categories run at once. The shared
	// rate limit dominates any parallelism benefit, so this stays small.
	MaxConcurrentUnits int

	Logger *slog.Logger
}

// Runner drives the full pipeline for each category: fetch, extract,
// merge, enrich, render. One logical worker owns a category end-to-end;
// categories are admitted through a FIFO gate.
type Runner struct {
	cfg    RunnerConfig
	gate   *Gate
	batch  *pipeline.BatchProcessor
	enrich pipeline.BatchCall
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Home == nil || cfg.RunID == "" {
		return nil, fmt.Errorf("Runner requires a home dir and run ID")
	}
	if cfg.Source == nil || cfg.Invoker == nil || cfg.Renderer == nil {
		return nil, fmt.Errorf("Runner requires source, invoker, and renderer")
	}
	if cfg.Progress == nil || cfg.Failures == nil {
		return nil, fmt.Errorf("Runner requires progress and failure stores")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", cfg.RunID)

	batch, err := pipeline.NewBatchProcessor(pipeline.BatchProcessorConfig{
		Ladder:      cfg.BatchLadder,
		InitialSize: cfg.InitialBatchSize,
		Failures:    cfg.Failures,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:    cfg,
		gate:   NewGate(cfg.MaxConcurrentUnits),
		batch:  batch,
		enrich: NewEnrichCall(cfg.Invoker),
		logger: logger,
	}, nil
}

// Run processes every category. Category failures are isolated; the first
// error is returned after all categories finish.
func (r *Runner) Run(ctx context.Context, categories []string) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, category := range categories {
		if err := r.gate.Enter(ctx); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			defer r.gate.Leave()

			if err := r.runCategory(ctx, label); err != nil {
				r.logger.Error("category failed", "category", label, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("category %s: %w", label, err)
				}
				mu.Unlock()
			}
		}(category)
	}

	wg.Wait()
	return firstErr
}

// runCategory drives one work unit through every step, consulting the
// progress store before each step and marking completion after.
func (r *Runner) runCategory(ctx context.Context, label string) error {
	logger := r.logger.With("category", label)

	if err := r.cfg.Home.EnsureRunDirs(r.cfg.RunID, label); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrPersistence, err)
	}
	if err := r.cfg.Progress.InitLabel(label, Steps()); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrPersistence, err)
	}

	if err := r.runStep(label, StepFetch, logger, func() error {
		return r.stepFetch(ctx, label)
	}); err != nil {
		return err
	}
	if err := r.runStep(label, StepExtract, logger, func() error {
		return r.stepExtract(ctx, label, logger)
	}); err != nil {
		return err
	}
	if err := r.runStep(label, StepMerge, logger, func() error {
		return r.stepMerge(label)
	}); err != nil {
		return err
	}
	if err := r.runStep(label, StepEnrich, logger, func() error {
		return r.stepEnrich(ctx, label, logger)
	}); err != nil {
		return err
	}
	return r.runStep(label, StepRender, logger, func() error {
		return r.stepRender(label)
	})
}

// runStep gates fn on step status: completed steps are skipped, anything
// else runs from scratch. Failure leaves the step in_progress, which a
// resumed run treats as pending.
func (r *Runner) runStep(label, step string, logger *slog.Logger, fn func() error) error {
	if r.cfg.Progress.IsStepCompleted(label, step) {
		logger.Info("step already completed, skipping", "step", step)
		return nil
	}
	if err := r.cfg.Progress.SetStepStatus(label, step, state.StatusInProgress); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrPersistence, err)
	}
	if err := fn(); err != nil {
		return fmt.Errorf("step %s: %w", step, err)
	}
	if err := r.cfg.Progress.SetStepStatus(label, step, state.StatusCompleted); err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrPersistence, err)
	}
	logger.Info("step completed", "step", step)
	return nil
}

// fetchOutput is the persisted result of the fetch step.
type fetchOutput struct {
	Messages int    `json:"messages"`
	Text     string `json:"text"`
}

func (r *Runner) stepFetch(ctx context.Context, label string) error {
	messages, err := r.cfg.Source.Fetch(ctx, label, r.cfg.Since)
	if err != nil {
		return fmt.Errorf("fetching mail: %w", err)
	}

	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		body := mail.Normalize(m.HTMLOrText)
		if body == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s",
			m.Sender, m.Subject, m.Date.Format("2006-01-02"), body))
	}

	return r.writeStep(label, StepFetch, fetchOutput{
		Messages: len(messages),
		Text:     strings.Join(parts, messageSeparator),
	})
}

func (r *Runner) stepExtract(ctx context.Context, label string, logger *slog.Logger) error {
	var fetched fetchOutput
	if err := r.readStep(label, StepFetch, &fetched); err != nil {
		return err
	}
	if fetched.Text == "" {
		logger.Info("no mail to extract")
		return r.writeStep(label, StepExtract, &pipeline.ExtractionResult{Items: []pipeline.Item{}})
	}

	orch, err := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Invoker:        r.cfg.Invoker,
		ArtifactDir:    r.cfg.Home.ChunksPath(r.cfg.RunID, label),
		MaxHeaderChars: r.cfg.MaxHeaderChars,
		Validator:      r.cfg.Validator,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	_, failedChunks, err := orch.Process(ctx, extractionPrompt, fetched.Text, r.cfg.SizeLimit,
		r.cfg.Home.StepOutputPath(r.cfg.RunID, label, StepExtract))
	if err != nil {
		return err
	}
	if failedChunks > 0 {
		// The run continues on the successful subset; the degraded
		// portion stays queryable in the failure log.
		if rerr := r.cfg.Failures.RecordFailure(label, StepExtract, 0,
			fmt.Sprintf("%d chunks exhausted their retry ladders", failedChunks),
			map[string]any{"failed_chunks": failedChunks}); rerr != nil {
			return fmt.Errorf("%w: %w", pipeline.ErrPersistence, rerr)
		}
	}
	return nil
}

func (r *Runner) stepMerge(label string) error {
	var extracted pipeline.ExtractionResult
	if err := r.readStep(label, StepExtract, &extracted); err != nil {
		return err
	}
	merged := pipeline.Merge(extracted.Items)
	return r.writeStep(label, StepMerge, &pipeline.ExtractionResult{Items: merged})
}

func (r *Runner) stepEnrich(ctx context.Context, label string, logger *slog.Logger) error {
	var merged pipeline.ExtractionResult
	if err := r.readStep(label, StepMerge, &merged); err != nil {
		return err
	}

	enriched, failedWindows, err := r.batch.ProcessAll(ctx, label, StepEnrich, merged.Items, r.enrich)
	if err != nil {
		return err
	}
	if failedWindows > 0 {
		logger.Warn("enrichment degraded for some windows", "failed_windows", failedWindows)
	}
	return r.writeStep(label, StepEnrich, &pipeline.ExtractionResult{Items: enriched})
}

func (r *Runner) stepRender(label string) error {
	var enriched pipeline.ExtractionResult
	if err := r.readStep(label, StepEnrich, &enriched); err != nil {
		return err
	}

	entries := make([]report.Entry, 0, len(enriched.Items))
	for _, item := range enriched.Items {
		entries = append(entries, report.EntryFromItem(item))
	}
	return r.cfg.Renderer.Render(label, entries, r.cfg.Home.ReportPath(r.cfg.RunID, label))
}

// writeStep persists a step output durably.
func (r *Runner) writeStep(label, step string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s output: %w", pipeline.ErrPersistence, step, err)
	}
	path := r.cfg.Home.StepOutputPath(r.cfg.RunID, label, step)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s output: %w", pipeline.ErrPersistence, step, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: writing %s output: %w", pipeline.ErrPersistence, step, err)
	}
	return nil
}

// readStep loads a prior step's persisted output.
func (r *Runner) readStep(label, step string, v any) error {
	path := r.cfg.Home.StepOutputPath(r.cfg.RunID, label, step)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading %s output: %w", pipeline.ErrPersistence, step, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s output: %w", step, err)
	}
	return nil
}
