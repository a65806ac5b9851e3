package pipeline

import (
	"context"
	"fmt"
	"log/slog"
)

// BatchCall performs one downstream enrichment call over a batch of items.
// It returns the enriched batch; an empty result signals the backend could
// not handle the batch at this size.
type BatchCall func(ctx context.Context, batch []Item) ([]Item, error)

// FailureRecorder records un-recovered batch failures for post-run
// diagnosis. Implemented by state.FailedBatchManager.
type FailureRecorder interface {
	RecordFailure(label, step string, batchIndex int, message string, context map[string]any) error
}

// DefaultBatchLadder is the descending batch-size ladder.
var DefaultBatchLadder = []int{6, 4, 2, 1}

// BatchProcessorConfig configures an adaptive batch processor.
type BatchProcessorConfig struct {
	// Ladder is the descending batch-size ladder. Nil selects
	// DefaultBatchLadder.
	Ladder []int

	// InitialSize selects the starting rung. Values not on the ladder
	// start at the largest rung.
	InitialSize int

	// Failures receives a record for every window that exhausts the
	// ladder. Required.
	Failures FailureRecorder

	Logger *slog.Logger
}

// BatchProcessor processes an ordered item collection in batches, shrinking
// the batch size on empty or failed responses and growing it back one rung
// per success. A window that fails at the smallest rung degrades
// gracefully: the original items pass through unenriched and a failure
// record is written. The cursor only ever moves forward and every input
// item appears exactly once in the output.
type BatchProcessor struct {
	ladder      []int
	initialRung int
	failures    FailureRecorder
	logger      *slog.Logger
}

// NewBatchProcessor creates an adaptive batch processor.
func NewBatchProcessor(cfg BatchProcessorConfig) (*BatchProcessor, error) {
	ladder := cfg.Ladder
	if len(ladder) == 0 {
		ladder = DefaultBatchLadder
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i] >= ladder[i-1] || ladder[i] < 1 {
			return nil, fmt.Errorf("batch ladder must be strictly descending and positive, got %v", ladder)
		}
	}
	if cfg.Failures == nil {
		return nil, fmt.Errorf("BatchProcessor requires a failure recorder")
	}

	rung := 0
	for i, size := range ladder {
		if size == cfg.InitialSize {
			rung = i
			break
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BatchProcessor{
		ladder:      ladder,
		initialRung: rung,
		failures:    cfg.Failures,
		logger:      logger.With("component", "batch"),
	}, nil
}

// ProcessAll runs call over items window by window. Returns the output
// sequence and the count of windows that degraded to original items.
func (p *BatchProcessor) ProcessAll(ctx context.Context, label, step string, items []Item, call BatchCall) ([]Item, int, error) {
	out := make([]Item, 0, len(items))
	rung := p.initialRung
	failedWindows := 0
	i := 0

	for i < len(items) {
		if err := ctx.Err(); err != nil {
			return nil, failedWindows, err
		}

		size := p.ladder[rung]
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batch := items[i:end]

		enriched, err := call(ctx, batch)
		if err == nil && len(enriched) > 0 {
			out = append(out, enriched...)
			i = end
			if rung > 0 {
				rung--
			}
			continue
		}

		if err != nil && ctx.Err() != nil {
			return nil, failedWindows, err
		}

		// Empty result or failure: re-attempt the same window at finer
		// granularity, regardless of failure class. Smaller batches
		// plausibly avoid both overflows and backend instability.
		if rung < len(p.ladder)-1 {
			rung++
			p.logger.Warn("batch failed, stepping down",
				"label", label,
				"step", step,
				"cursor", i,
				"next_size", p.ladder[rung],
				"error", err)
			continue
		}

		// Smallest rung still failing: keep the original items so no
		// data is dropped, record the failure, and move on.
		msg := "empty enrichment response"
		if err != nil {
			msg = err.Error()
		}
		if rerr := p.failures.RecordFailure(label, step, i, msg, map[string]any{
			"window_start": i,
			"window_size":  size,
		}); rerr != nil {
			return nil, failedWindows, fmt.Errorf("%w: recording batch failure: %w", ErrPersistence, rerr)
		}
		p.logger.Warn("batch window gave up at smallest rung",
			"label", label,
			"step", step,
			"cursor", i,
			"window_size", size)

		out = append(out, batch...)
		failedWindows++
		i = end
	}

	return out, failedWindows, nil
}
