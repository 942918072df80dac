package cache

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWindow is returned when a sliding window is requested with a non-positive limit or width.
var ErrInvalidWindow = errors.New("cache: limit and window must be positive")

// WindowResult reports the outcome of one sliding window evaluation.
type WindowResult struct {
	// Allowed is true when the event was counted.
	Allowed bool
	// Count is the number of events inside the window after evaluation.
	Count int
	// ResetAt is the instant the oldest counted event leaves the window.
	ResetAt time.Time
}

// Store is the shared counter store backing the rate limiter.
type Store interface {
	// SlidingWindow drops events older than window, then counts a new event at now when fewer
	// than limit remain. Denied events are not recorded.
	SlidingWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowResult, error)
	Ping(ctx context.Context) error
	Close() error
}

func validateWindow(limit int, window time.Duration) error {
	if limit <= 0 || window <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

func resetAt(oldestMillis int64, window time.Duration, now time.Time) time.Time {
	if oldestMillis <= 0 {
		return now.Add(window)
	}
	return time.UnixMilli(oldestMillis).Add(window)
}
