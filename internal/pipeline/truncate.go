package pipeline

import (
	"context"
	"log/slog"
	"strings"
)

// continuationMarker is appended to truncated input so the model knows the
// document was cut short.
const continuationMarker = "\n\n[trimmed for length]"

// DefaultTruncationRatios is the shrinking fraction ladder applied when the
// backend rejects a call for size. The first entry is the untruncated
// attempt.
var DefaultTruncationRatios = []float64{1.0, 0.8, 0.6, 0.4}

// TruncatingInvoker retries the same logical call with progressively
// truncated input when the backend reports a size overflow. Transient
// failures pass straight through; this decorator never sleeps.
type TruncatingInvoker struct {
	next   Invoker
	ratios []float64
	logger *slog.Logger
}

// NewTruncatingInvoker wraps next with the size-overflow ratio ladder.
// A nil or empty ratios slice selects DefaultTruncationRatios.
func NewTruncatingInvoker(next Invoker, ratios []float64, logger *slog.Logger) *TruncatingInvoker {
	if len(ratios) == 0 {
		ratios = DefaultTruncationRatios
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TruncatingInvoker{
		next:   next,
		ratios: ratios,
		logger: logger.With("component", "truncate"),
	}
}

// Invoke tries the ladder top to bottom. The original error surfaces when
// every rung overflows.
func (t *TruncatingInvoker) Invoke(ctx context.Context, header, input string) (string, error) {
	var firstErr error

	for i, ratio := range t.ratios {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		attempt := input
		if ratio < 1.0 {
			attempt = truncateAtSentence(input, ratio)
			t.logger.Info("retrying with truncated input",
				"rung", i,
				"ratio", ratio,
				"original_chars", len(input),
				"truncated_chars", len(attempt))
		}

		out, err := t.next.Invoke(ctx, header, attempt)
		if err == nil {
			return out, nil
		}
		if !IsSizeOverflow(err) {
			return "", err
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return "", exhausted(firstErr)
}

// truncateAtSentence cuts input to ratio of its length at the nearest
// preceding sentence boundary when one exists, then appends the
// continuation marker.
func truncateAtSentence(input string, ratio float64) string {
	target := int(float64(len(input)) * ratio)
	if target >= len(input) {
		return input
	}
	if target < 1 {
		target = 1
	}

	cut := target
	for i := target - 1; i > 0; i-- {
		if strings.ContainsRune(sentenceTerminators, rune(input[i])) {
			if i+1 >= len(input) || input[i+1] == ' ' || input[i+1] == '\n' {
				cut = i + 1
				break
			}
		}
	}

	return strings.TrimRight(input[:cut], " \n") + continuationMarker
}

var _ Invoker = (*TruncatingInvoker)(nil)
