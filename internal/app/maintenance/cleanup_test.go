package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/charlesng35/inkpost/internal/cache"
	testutil "github.com/charlesng35/inkpost/internal/database/testutil"
	"github.com/charlesng35/inkpost/internal/models"
	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/internal/tokens"
)

func TestCleanerRunOnce(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	manager, err := tokens.NewManager(db, tokens.WithClock(clock.Now))
	require.NoError(t, err)
	_, err = manager.Issue(ctx, tokens.KindTwoFactor, "expired@example.com")
	require.NoError(t, err)
	_, err = manager.Issue(ctx, tokens.KindVerification, "active@example.com")
	require.NoError(t, err)

	hits := cache.NewDatabaseStore(db)
	_, err = hits.SlidingWindow(ctx, "ratelimit:login:old", 5, 15*time.Minute, clock.Now().Add(-3*time.Hour))
	require.NoError(t, err)
	_, err = hits.SlidingWindow(ctx, "ratelimit:login:new", 5, 15*time.Minute, clock.Now().Add(-time.Minute))
	require.NoError(t, err)

	clock.current = clock.current.Add(time.Hour)

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(manager, hits,
		WithNow(clock.Now),
		WithHitRetention(2*time.Hour),
		WithTracker(tracker),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.NoError(t, c.RunOnce(ctx))

	var tokenRows []models.AuthToken
	require.NoError(t, db.Find(&tokenRows).Error)
	require.Len(t, tokenRows, 1)
	require.Equal(t, "active@example.com", tokenRows[0].Email)

	var hitRows []models.RateLimitHit
	require.NoError(t, db.Find(&hitRows).Error)
	require.Len(t, hitRows, 1)
	require.Equal(t, "ratelimit:login:new", hitRows[0].Bucket)

	for _, job := range tracker.Snapshot() {
		require.EqualValues(t, 1, job.TotalRuns, job.Job)
		require.Zero(t, job.ConsecutiveFailures)
	}
}

type failingSweeper struct{ err error }

func (f failingSweeper) Sweep(context.Context) (int64, error) { return 0, f.err }

type failingPurger struct{ err error }

func (f failingPurger) PurgeBefore(context.Context, time.Time) (int64, error) { return 0, f.err }

func TestCleanerAggregatesErrors(t *testing.T) {
	sweepErr := errors.New("sweep failed")
	purgeErr := errors.New("purge failed")

	tracker := monitoring.NewJobTracker()
	c := NewCleaner(failingSweeper{err: sweepErr}, failingPurger{err: purgeErr}, WithTracker(tracker))

	err := c.RunOnce(context.Background())
	require.ErrorIs(t, err, sweepErr)
	require.ErrorIs(t, err, purgeErr)
	require.Len(t, multierr.Errors(err), 2)

	for _, job := range tracker.Snapshot() {
		require.EqualValues(t, 1, job.ConsecutiveFailures)
	}
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	c := NewCleaner(failingSweeper{}, failingPurger{}, WithCron(scheduler), WithTokenSchedule("@every 1h"))

	require.NoError(t, c.Start())
	t.Cleanup(func() { <-c.Stop().Done() })
	require.Len(t, scheduler.Entries(), 2)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner(failingSweeper{}, nil, WithTokenSchedule("not a schedule"))
	require.Error(t, c.Start())
}

func TestCleanerWithoutJobs(t *testing.T) {
	c := NewCleaner(nil, nil)
	require.NoError(t, c.Start())
	require.NoError(t, c.RunOnce(context.Background()))
}

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}
