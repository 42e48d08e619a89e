package utils

import (
	"context"
	"fmt"
	"time"

	"guild-contributions/internal/types"
)

// DefaultPollInterval is roughly the shortest time the page needs to settle
// after an input event
const DefaultPollInterval = 100 * time.Millisecond

// Condition reports whether the awaited state holds, along with whatever the
// caller wants back from it. A non-nil error counts as "not yet".
type Condition[T any] func(ctx context.Context) (T, bool, error)

// Await evaluates cond right away and then once per interval until it holds
// or timeout elapses. On timeout the returned error wraps types.ErrTimedOut.
func Await[T any](ctx context.Context, timeout, interval time.Duration, cond Condition[T]) (T, error) {
	var zero T
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	var lastErr error
	for {
		value, ok, err := cond(ctx)
		if err == nil && ok {
			return value, nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr != nil {
				return zero, fmt.Errorf("%w after %v: %v", types.ErrTimedOut, timeout, lastErr)
			}
			return zero, fmt.Errorf("%w after %v", types.ErrTimedOut, timeout)
		}

		wait := interval
		if remaining < wait {
			wait = remaining
		}
		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
