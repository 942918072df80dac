package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/monitoring"
	"github.com/charlesng35/inkpost/pkg/logger"
)

const (
	defaultTokenSpec     = "@hourly"
	defaultRateLimitSpec = "@every 10m"
	defaultHitRetention  = time.Hour

	jobTokenSweep     = "token_sweep"
	jobRateLimitPurge = "ratelimit_purge"
)

// TokenSweeper removes expired single-use tokens.
type TokenSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// HitPurger removes rate limit hits recorded before a cutoff.
type HitPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: sweeping expired tokens and purging stale rate limit
// hits from the database counter store.
type Cleaner struct {
	tokens  TokenSweeper
	hits    HitPurger
	tracker *monitoring.JobTracker
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger

	tokenSchedule     string
	rateLimitSchedule string
	hitRetention      time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cutoff computations.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTokenSchedule overrides the cron specification for the token sweep.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// WithRateLimitSchedule overrides the cron specification for the rate limit hit purge.
func WithRateLimitSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.rateLimitSchedule = spec
		}
	}
}

// WithHitRetention sets how long rate limit hits are kept. It must cover the longest policy window.
func WithHitRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.hitRetention = d
		}
	}
}

// WithTracker records job outcomes for the maintenance health probe.
func WithTracker(tracker *monitoring.JobTracker) Option {
	return func(cleaner *Cleaner) {
		cleaner.tracker = tracker
	}
}

// NewCleaner constructs a Cleaner. A nil dependency disables the corresponding job.
func NewCleaner(tokens TokenSweeper, hits HitPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		tokens:            tokens,
		hits:              hits,
		now:               time.Now,
		tokenSchedule:     defaultTokenSpec,
		rateLimitSchedule: defaultRateLimitSpec,
		hitRetention:      defaultHitRetention,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	if cleaner.tracker != nil {
		for _, job := range cleaner.jobs() {
			cleaner.tracker.Register(job.name)
		}
	}

	return cleaner
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.tokens != nil {
		jobs = append(jobs, job{name: jobTokenSweep, schedule: c.tokenSchedule, run: c.tokens.Sweep})
	}
	if c.hits != nil {
		jobs = append(jobs, job{name: jobRateLimitPurge, schedule: c.rateLimitSchedule, run: c.purgeHits})
	}
	return jobs
}

func (c *Cleaner) purgeHits(ctx context.Context) (int64, error) {
	return c.hits.PurgeBefore(ctx, c.now().Add(-c.hitRetention))
}

// Start registers the enabled jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.schedule, func() {
			_ = c.execute(context.Background(), j)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce executes every enabled job sequentially and aggregates their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error
	for _, j := range c.jobs() {
		errs = multierr.Append(errs, c.execute(ctx, j))
	}
	return errs
}

func (c *Cleaner) execute(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.run(ctx)
	duration := time.Since(start)

	if c.tracker != nil {
		c.tracker.RecordRun(j.name, err, duration)
	}
	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		return err
	}

	c.log.Debug("maintenance job finished",
		zap.String("job", j.name),
		zap.Int64("removed", removed),
		zap.Duration("duration", duration),
	)
	return nil
}
