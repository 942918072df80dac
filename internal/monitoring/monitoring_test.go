package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/inkpost/internal/cache"
	"github.com/charlesng35/inkpost/internal/database/testutil"
	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/internal/monitoring/checks"
)

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(0)
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "redis", report.Checks[1].Component)

	manager.RegisterReadiness(monitoring.NewCheck("boom", func(ctx context.Context) monitoring.ProbeResult {
		panic("exploded")
	}))
	report = manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "exploded", report.Checks[2].Details)
}

func TestHealthManagerAppliesTimeout(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(10 * time.Millisecond)
	manager.RegisterLiveness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
}

func TestDatabaseCheck(t *testing.T) {
	t.Parallel()

	db := testutil.MustOpenTestDB(t)
	result := checks.Database(db).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = checks.Database(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestRedisCheckDegradesInsteadOfFailing(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: srv.Addr(), Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	check := checks.Redis(store, true)
	require.Equal(t, monitoring.StatusUp, check.Run(context.Background()).Status)

	srv.Close()
	require.Equal(t, monitoring.StatusDegraded, check.Run(context.Background()).Status)

	require.Equal(t, monitoring.StatusUp, checks.Redis(nil, false).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true).Run(context.Background()).Status)
}

func TestMaintenanceCheck(t *testing.T) {
	t.Parallel()

	tracker := monitoring.NewJobTracker()
	tracker.Register("token_sweep")
	result := checks.Maintenance(tracker, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "pending first run")

	tracker.RecordRun("token_sweep", nil, time.Millisecond)
	tracker.RecordRun("ratelimit_purge", errors.New("database is locked"), time.Millisecond)

	result = checks.Maintenance(tracker, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "database is locked")

	jobs := tracker.Snapshot()
	require.Len(t, jobs, 2)
	require.Equal(t, "ratelimit_purge", jobs[0].Job)
	require.EqualValues(t, 1, jobs[0].ConsecutiveFailures)
	require.EqualValues(t, 0, jobs[1].ConsecutiveFailures)
}
