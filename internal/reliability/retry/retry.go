package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Retryable decides whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
}

// DefaultPolicy suits calls to a local database or cache.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Func is one attempt of an operation.
type Func[T any] func(ctx context.Context) (T, error)

// Do runs fn until it succeeds, the error is not retryable, attempts run out
// or ctx is done. Errors that are not retryable are returned unwrapped.
func Do[T any](ctx context.Context, p Policy, log *slog.Logger, op string, fn Func[T]) (T, error) {
	var zero T
	if log == nil {
		log = slog.Default()
	}
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}

		wait := p.backoff(attempt - 1)
		log.Warn("operation failed, retrying",
			slog.String("operation", op),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, log, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (p Policy) backoff(n int) time.Duration {
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(p.InitialBackoff) * math.Pow(mult, float64(n)))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}
