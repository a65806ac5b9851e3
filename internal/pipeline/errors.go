package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackzampolin/maildigest/internal/providers"
)

// Sentinel errors for the pipeline failure taxonomy. Size overflows and
// transient failures have separate recovery paths and are never conflated.
var (
	// ErrSizeOverflow means the backend rejected the call because the input
	// was too large. Recovered by the truncation ladder, never by backoff.
	ErrSizeOverflow = errors.New("input exceeds backend context window")

	// ErrTransient covers timeouts, 5xx, 429, connection resets and
	// incomplete output. Recovered by the delay ladder.
	ErrTransient = errors.New("transient backend failure")

	// ErrSchemaViolation means the response parsed but does not match the
	// required shape. Not retried.
	ErrSchemaViolation = errors.New("response violates extraction schema")

	// ErrExhaustedRetry means a retry ladder was fully consumed. Scoped to
	// one chunk or batch; never aborts siblings.
	ErrExhaustedRetry = errors.New("retry ladder exhausted")

	// ErrPersistence means a durable artifact could not be written.
	// Always fatal for the run.
	ErrPersistence = errors.New("persistence failure")
)

// sizeOverflowSignatures are error-text fragments that identify a
// context-length rejection across backends.
var sizeOverflowSignatures = []string{
	"context_length_exceeded",
	"context length",
	"maximum context",
	"max_tokens",
	"too many tokens",
	"prompt is too long",
	"input is too long",
	"request too large",
}

// IsSizeOverflow reports whether err is a backend rejection due to input
// length, either tagged explicitly or matched by error-text signature.
func IsSizeOverflow(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSizeOverflow) {
		return true
	}
	var callErr *providers.CallError
	if errors.As(err, &callErr) && callErr.StatusCode == 413 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range sizeOverflowSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// transientSignatures are error-text fragments that identify backend
// instability worth retrying.
var transientSignatures = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"overloaded",
	"temporarily unavailable",
	"rate limit",
	"incomplete response",
}

// IsTransient reports whether err should be retried via the delay ladder.
// Size overflows are explicitly excluded so the two ladders never compose
// on the same failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsSizeOverflow(err) {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var callErr *providers.CallError
	if errors.As(err, &callErr) {
		return callErr.StatusCode == 429 || callErr.StatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// exhausted wraps the last error from a consumed ladder.
func exhausted(err error) error {
	return fmt.Errorf("%w: %w", ErrExhaustedRetry, err)
}
