package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/inkpost/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	err error
}

func (s failingStore) SlidingWindow(context.Context, string, int, time.Duration, time.Time) (cache.WindowResult, error) {
	return cache.WindowResult{}, s.err
}
func (s failingStore) Ping(context.Context) error { return s.err }
func (s failingStore) Close() error                { return nil }

type blockingStore struct{}

func (blockingStore) SlidingWindow(ctx context.Context, _ string, _ int, _ time.Duration, _ time.Time) (cache.WindowResult, error) {
	<-ctx.Done()
	return cache.WindowResult{}, ctx.Err()
}
func (blockingStore) Ping(context.Context) error { return nil }
func (blockingStore) Close() error                { return nil }

func newMemoryLimiter(t *testing.T, clock *fakeClock) *Limiter {
	t.Helper()
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	limiter, err := New(store, DefaultPolicies(), WithClock(clock.Now))
	require.NoError(t, err)
	return limiter
}

func TestLimiterCommentPolicyAllowsTwoThenDenies(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(t, clock)
	ctx := context.Background()

	var outcomes []bool
	for i := 0; i < 3; i++ {
		decision, err := limiter.Check(ctx, PolicyComment, "1.2.3.4")
		require.NoError(t, err)
		outcomes = append(outcomes, decision.Allowed)
		clock.Advance(time.Second)
	}
	require.Equal(t, []bool{true, true, false}, outcomes)
}

func TestLimiterDeniedDecisionCarriesReset(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(t, clock)
	ctx := context.Background()
	start := clock.Now()

	_, err := limiter.Check(ctx, PolicyResendVerification, "1.2.3.4:a@example.com")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	decision, err := limiter.Check(ctx, PolicyResendVerification, "1.2.3.4:a@example.com")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.Limit)
	require.Equal(t, 0, decision.Remaining)
	require.True(t, decision.ResetAt.Equal(start.Add(4*time.Minute)))
	require.Equal(t, 210, decision.WaitSeconds(clock.Now()))
}

func TestLimiterAllowsAgainAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(t, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := limiter.Check(ctx, PolicyComment, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
	decision, err := limiter.Check(ctx, PolicyComment, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	clock.Advance(time.Minute)
	decision, err = limiter.Check(ctx, PolicyComment, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterSeparatesIdentitiesAndPolicies(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(t, clock)
	ctx := context.Background()

	decision, err := limiter.Check(ctx, PolicyResendVerification, Identity("1.2.3.4", "a@example.com"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Check(ctx, PolicyResendVerification, Identity("1.2.3.4", "a@example.com"))
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	decision, err = limiter.Check(ctx, PolicyResendVerification, Identity("1.2.3.4", "b@example.com"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Check(ctx, PolicyRegister, Identity("1.2.3.4", "a@example.com"))
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestLimiterRemainingCountsDown(t *testing.T) {
	clock := newFakeClock()
	limiter := newMemoryLimiter(t, clock)

	for want := 4; want >= 0; want-- {
		decision, err := limiter.Check(context.Background(), PolicyLogin, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.Equal(t, want, decision.Remaining)
	}
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	limiter, err := New(failingStore{err: errors.New("connection refused")}, DefaultPolicies(),
		WithLogger(zap.New(core)))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		decision, err := limiter.Check(context.Background(), PolicyComment, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.True(t, decision.FailOpen)
	}

	entries := logs.FilterMessage("rate limiter store unavailable, allowing request").All()
	require.Len(t, entries, 5)
	require.Equal(t, PolicyComment, entries[0].ContextMap()["policy"])
}

func TestLimiterFailsOpenOnTimeout(t *testing.T) {
	limiter, err := New(blockingStore{}, DefaultPolicies(), WithTimeout(20*time.Millisecond),
		WithLogger(zap.NewNop()))
	require.NoError(t, err)

	start := time.Now()
	decision, err := limiter.Check(context.Background(), PolicyLogin, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiterFailsOpenWhenRedisGoesAway(t *testing.T) {
	srv := miniredis.RunT(t)
	store, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: srv.Addr(), Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	limiter, err := New(store, DefaultPolicies(), WithLogger(zap.NewNop()))
	require.NoError(t, err)

	decision, err := limiter.Check(context.Background(), PolicyComment, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.False(t, decision.FailOpen)

	srv.Close()
	decision, err = limiter.Check(context.Background(), PolicyComment, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.True(t, decision.FailOpen)
}

func TestLimiterUnknownPolicy(t *testing.T) {
	limiter := newMemoryLimiter(t, newFakeClock())

	_, err := limiter.Check(context.Background(), "bogus", "1.2.3.4")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestLimiterConcurrentChecksRespectCapacity(t *testing.T) {
	limiter := newMemoryLimiter(t, newFakeClock())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Check(context.Background(), PolicyLogin, "1.2.3.4")
			if err == nil && decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, allowed)
	require.Len(t, limiter.instances, 1)
}

func TestNewValidatesPolicies(t *testing.T) {
	store := cache.NewMemoryStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	_, err := New(nil, DefaultPolicies())
	require.ErrorIs(t, err, ErrNilStore)

	_, err = New(store, []Policy{{Name: "x", Capacity: 0, Window: time.Minute, KeyPrefix: "x"}})
	require.ErrorContains(t, err, "capacity must be positive")

	dup := []Policy{
		{Name: "x", Capacity: 1, Window: time.Minute, KeyPrefix: "x"},
		{Name: "x", Capacity: 1, Window: time.Minute, KeyPrefix: "y"},
	}
	_, err = New(store, dup)
	require.ErrorContains(t, err, "duplicate policy")
}
