package ratelimit

import (
	"math"
	"time"
)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	ResetAt   time.Time
	Limit     int
	Remaining int
	// FailOpen is set when the counter store could not be consulted and the call was admitted.
	FailOpen bool
}

// WaitSeconds returns the whole seconds until ResetAt, rounded up and never negative.
func (d Decision) WaitSeconds(now time.Time) int {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}
