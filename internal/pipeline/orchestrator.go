package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Validator checks a parsed response document against the caller-owned
// extraction schema. A failure is a SchemaViolation: surfaced for that
// invocation, never retried.
type Validator interface {
	Validate(doc json.RawMessage) error
}

// OrchestratorConfig configures a chunk orchestrator.
type OrchestratorConfig struct {
	// Invoker is the fully decorated call stack, truncation outermost.
	Invoker Invoker

	// ArtifactDir receives one durable temp file per successful chunk.
	ArtifactDir string

	// MaxHeaderChars caps the header before budget math. Default 4000.
	MaxHeaderChars int

	// Validator is optional; nil skips schema validation.
	Validator Validator

	Logger *slog.Logger
}

// Orchestrator decides whether an input needs chunking, drives chunk-by-
// chunk invocation, persists intermediate results durably, and merges
// them. Chunk failures are isolated; partial progress survives a crash via
// the per-chunk artifacts.
type Orchestrator struct {
	invoker        Invoker
	artifactDir    string
	maxHeaderChars int
	validator      Validator
	logger         *slog.Logger
}

// NewOrchestrator creates a chunk orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("Orchestrator requires an invoker")
	}
	if cfg.ArtifactDir == "" {
		return nil, fmt.Errorf("Orchestrator requires an artifact directory")
	}
	maxHeader := cfg.MaxHeaderChars
	if maxHeader <= 0 {
		maxHeader = 4000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		invoker:        cfg.Invoker,
		artifactDir:    cfg.ArtifactDir,
		maxHeaderChars: maxHeader,
		validator:      cfg.Validator,
		logger:         logger.With("component", "orchestrator"),
	}, nil
}

// Process runs the extraction over input, chunking when it exceeds the
// available budget (sizeLimit minus capped header). The merged result is
// written durably to finalPath before chunk artifacts are removed. Returns
// the merged result and the count of chunks that exhausted their retry
// ladders.
func (o *Orchestrator) Process(ctx context.Context, header, input string, sizeLimit int, finalPath string) (*ExtractionResult, int, error) {
	if len(header) > o.maxHeaderChars {
		header = header[:o.maxHeaderChars]
	}
	budget := sizeLimit - len(header)
	if budget <= 0 {
		return nil, 0, fmt.Errorf("size limit %d leaves no budget after %d header chars", sizeLimit, len(header))
	}

	if len(input) <= budget {
		doc, err := o.invokeOne(ctx, header, input)
		if err != nil {
			return nil, 0, err
		}
		result, err := ParseResult(doc)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
		}
		if err := o.writeFinal(finalPath, result); err != nil {
			return nil, 0, err
		}
		return result, 0, nil
	}

	chunks := Split(input, budget)
	o.logger.Info("input exceeds budget, chunking",
		"input_chars", len(input),
		"budget", budget,
		"chunks", len(chunks))

	var artifacts []string
	failed := 0

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}

		doc, err := o.invokeOne(ctx, header, chunk)
		if err != nil {
			// One chunk exhausting both ladders does not abort the rest.
			o.logger.Warn("chunk failed",
				"chunk", i,
				"chunks", len(chunks),
				"error", err)
			failed++
			continue
		}

		// Persist before attempting the next chunk so a mid-run crash
		// keeps what already succeeded.
		path := filepath.Join(o.artifactDir, fmt.Sprintf("chunk_%03d_%s.json", i, uuid.New().String()[:8]))
		if err := writeFileAtomic(path, []byte(doc)); err != nil {
			return nil, failed, fmt.Errorf("%w: chunk %d artifact: %w", ErrPersistence, i, err)
		}
		artifacts = append(artifacts, path)
		o.logger.Debug("chunk persisted", "chunk", i, "artifact", path)
	}

	if len(artifacts) == 0 {
		return nil, failed, fmt.Errorf("%w: all %d chunks failed", ErrExhaustedRetry, len(chunks))
	}

	raws := make([]json.RawMessage, 0, len(artifacts))
	for _, path := range artifacts {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, failed, fmt.Errorf("%w: reading back %s: %w", ErrPersistence, path, err)
		}
		raws = append(raws, json.RawMessage(data))
	}

	items, err := MergeRaw(raws)
	if err != nil {
		return nil, failed, fmt.Errorf("merging chunk results: %w", err)
	}
	result := &ExtractionResult{Items: items}

	// Artifacts are removed only after the final result is durable; a
	// failed final write leaves them on disk for manual recovery.
	if err := o.writeFinal(finalPath, result); err != nil {
		return nil, failed, err
	}
	for _, path := range artifacts {
		if err := os.Remove(path); err != nil {
			o.logger.Warn("failed to remove chunk artifact", "artifact", path, "error", err)
		}
	}

	if failed > 0 {
		o.logger.Warn("run completed with failed chunks",
			"failed", failed,
			"succeeded", len(artifacts),
			"items", len(result.Items))
	}
	return result, failed, nil
}

// invokeOne performs one decorated call and validates the response shape.
func (o *Orchestrator) invokeOne(ctx context.Context, header, input string) (string, error) {
	doc, err := o.invoker.Invoke(ctx, header, input)
	if err != nil {
		return "", err
	}
	if o.validator != nil {
		if err := o.validator.Validate(json.RawMessage(doc)); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSchemaViolation, err)
		}
	}
	return doc, nil
}

// writeFinal durably writes the merged result.
func (o *Orchestrator) writeFinal(path string, result *ExtractionResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding final result: %w", ErrPersistence, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: writing final result: %w", ErrPersistence, err)
	}
	return nil
}

// writeFileAtomic writes data via a temp file and rename so readers never
// observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp-" + uuid.New().String()[:8]
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
