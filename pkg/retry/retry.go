// Package retry runs startup connection attempts with quadratic backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts counts the first call. Zero means one attempt.
	MaxAttempts int
	// BaseDelay scales the wait after attempt n to BaseDelay * n².
	BaseDelay time.Duration
	// MaxDelay caps a single wait when positive.
	MaxDelay time.Duration
	// OnRetry runs after a failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts run
// out, or ctx is done. The returned error is the last one fn produced, with
// any Permanent marker removed.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		t := time.NewTimer(Delay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}
}

// Delay is the wait after the given failed attempt.
func Delay(cfg Config, attempt int) time.Duration {
	d := cfg.BaseDelay * time.Duration(attempt*attempt)
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return d
}
