// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAttempts is the number of tries a Retrier makes when Attempts
	// is not set.
	DefaultAttempts = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// =============================================================================
// RETRY
// =============================================================================

// Retrier retries a Saver with exponential backoff.
type Retrier struct {
	Saver     Saver
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// SaveWithRetry saves rec, retrying up to attempts times with the default
// backoff (500ms doubling, capped at 10s).
func SaveWithRetry(ctx context.Context, saver Saver, rec Record, attempts int) error {
	r := Retrier{Saver: saver, Attempts: attempts}
	return r.Save(ctx, rec)
}

// Save implements Saver.
func (r Retrier) Save(ctx context.Context, rec Record) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := r.Saver.Save(ctx, rec)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("save failed after %d attempts: %w", attempts, lastErr)
}

// backoff returns the delay before retry n (0-based): base, 2*base, 4*base...
func (r Retrier) backoff(n int) time.Duration {
	base, limit := r.BaseDelay, r.MaxDelay
	if base <= 0 {
		base = retryBaseDelay
	}
	if limit <= 0 {
		limit = retryMaxDelay
	}
	delay := base * time.Duration(1<<uint(n))
	if delay > limit || delay <= 0 {
		delay = limit
	}
	return delay
}

// retryable reports whether err may go away on its own.
func retryable(err error) bool {
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}
	return true
}

// =============================================================================
// THROTTLE
// =============================================================================

// Throttled limits how often the wrapped Saver is called. Saves wait for a
// token; they are never dropped.
type Throttled struct {
	saver   Saver
	limiter *rate.Limiter
}

// NewThrottled allows one save per interval with the given burst.
func NewThrottled(saver Saver, interval time.Duration, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		saver:   saver,
		limiter: rate.NewLimiter(rate.Every(interval), burst),
	}
}

// Save implements Saver.
func (t *Throttled) Save(ctx context.Context, rec Record) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("transcript throttle: %w", err)
	}
	return t.saver.Save(ctx, rec)
}
