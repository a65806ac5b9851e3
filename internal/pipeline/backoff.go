package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultBackoffDelays is the delay ladder for transient failures.
var DefaultBackoffDelays = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	6 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	90 * time.Second,
}

// BackoffInvokerConfig configures the transient-failure decorator.
type BackoffInvokerConfig struct {
	Next Invoker

	// Delays is the ladder of sleeps between attempts. Attempt count is
	// len(Delays)+1. Nil selects DefaultBackoffDelays.
	Delays []time.Duration

	// AttemptTimeout is the hard wall-clock limit per attempt. A deadline
	// hit is a transient failure consuming one ladder slot. Zero disables
	// the per-attempt timeout.
	AttemptTimeout time.Duration

	Logger *slog.Logger
}

// BackoffInvoker retries transient failures with a fixed delay ladder.
// Size overflows pass through untouched so the truncation ladder above can
// handle them. A successful call must contain one balanced top-level JSON
// document; anything else is itself a transient failure.
type BackoffInvoker struct {
	next           Invoker
	delays         []time.Duration
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewBackoffInvoker wraps next with the transient delay ladder.
func NewBackoffInvoker(cfg BackoffInvokerConfig) *BackoffInvoker {
	delays := cfg.Delays
	if len(delays) == 0 {
		delays = DefaultBackoffDelays
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BackoffInvoker{
		next:           cfg.Next,
		delays:         delays,
		attemptTimeout: cfg.AttemptTimeout,
		logger:         logger.With("component", "backoff"),
	}
}

// Invoke runs the wrapped invoker under the delay ladder and returns the
// first balanced JSON document from the raw output.
func (b *BackoffInvoker) Invoke(ctx context.Context, header, input string) (string, error) {
	var attempt int

	out, err := retry.DoWithData(
		func() (string, error) {
			attempt++
			return b.attemptOnce(ctx, header, input)
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(b.delays)+1)),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if int(n) >= len(b.delays) {
				return b.delays[len(b.delays)-1]
			}
			return b.delays[n]
		}),
		retry.OnRetry(func(n uint, err error) {
			b.logger.Warn("transient failure, backing off",
				"attempt", n+1,
				"max_attempts", len(b.delays)+1,
				"error", err)
		}),
	)
	if err != nil {
		if IsTransient(err) {
			return "", exhausted(err)
		}
		return "", err
	}

	if attempt > 1 {
		b.logger.Info("call recovered after retries", "attempts", attempt)
	}
	return out, nil
}

// attemptOnce performs one attempt under the per-attempt timeout and
// validates output completeness.
func (b *BackoffInvoker) attemptOnce(ctx context.Context, header, input string) (string, error) {
	attemptCtx := ctx
	if b.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, b.attemptTimeout)
		defer cancel()
	}

	raw, err := b.next.Invoke(attemptCtx, header, input)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("%w: attempt exceeded %s wall clock", ErrTransient, b.attemptTimeout)
		}
		return "", err
	}

	doc, err := ExtractJSON(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return doc, nil
}

var _ Invoker = (*BackoffInvoker)(nil)
