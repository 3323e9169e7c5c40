package utils

import (
	"context"
	"time"
)

// WaitFor blocks for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff doubles base for every attempt after the first one. The result never exceeds limit
// when limit is positive.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt < 1 {
		return 0
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}

	if limit > 0 && d > limit {
		return limit
	}
	return d
}
