package checks

import (
	"context"
	"time"

	"github.com/charlesng35/inkpost/internal/monitoring"
)

// Pinger represents the minimal interface required to probe a counter store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Redis returns a probe for the rate limiter's Redis store. The limiter fails open, so an
// unreachable Redis only degrades the service. When Redis is disabled the probe reports up.
func Redis(client Pinger, enabled bool) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if !enabled {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled, using database counters"}
		}
		if client == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable, using database counters"}
		}

		if err := client.Ping(ctx); err != nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  err.Error(),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
