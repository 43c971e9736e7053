package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/resume-analyzer/internal/logger"
)

const maxRetryDelay = 30 * time.Second

// RetryPolicy is applied by callers of the pipeline. The pipeline itself
// never retries.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Logger       *zap.Logger
}

// Retry calls fn until it succeeds, fails with a non-retryable error, the
// attempts are used up or ctx is done. Delays double after each attempt.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	log := logger.OrNop(policy.Logger)
	attempts := max(policy.MaxAttempts, 1)
	delay := policy.InitialDelay

	var zero T
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts {
			break
		}

		log.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.String("kind", string(KindOf(err))),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted: %w", lastErr)
		case <-time.After(delay):
		}

		delay = min(delay*2, maxRetryDelay)
	}

	return zero, lastErr
}
