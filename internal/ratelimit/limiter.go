package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/inkpost/internal/cache"
	"github.com/charlesng35/inkpost/pkg/logger"
	"github.com/charlesng35/inkpost/pkg/metrics"
)

// DefaultTimeout bounds a single counter store round trip.
const DefaultTimeout = time.Second

var (
	// ErrUnknownPolicy is returned for a policy name absent from the limiter's table.
	ErrUnknownPolicy = errors.New("ratelimit: unknown policy")
	// ErrNilStore is returned when a limiter is built without a counter store.
	ErrNilStore = errors.New("ratelimit: counter store is required")
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithTimeout sets the per-check store timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Limiter) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(log *zap.Logger) Option {
	return func(l *Limiter) {
		l.log = log
	}
}

// Limiter admits or denies actions per policy and identity. It is built once at startup and is
// safe for concurrent use.
type Limiter struct {
	store    cache.Store
	policies map[string]Policy
	timeout  time.Duration
	clock    func() time.Time
	log      *zap.Logger

	mu        sync.Mutex
	instances map[string]*policyLimiter
}

// policyLimiter evaluates a single policy against the shared store.
type policyLimiter struct {
	policy Policy
	store  cache.Store
}

func (p *policyLimiter) allow(ctx context.Context, identity string, now time.Time) (cache.WindowResult, error) {
	return p.store.SlidingWindow(ctx, p.policy.Key(identity), p.policy.Capacity, p.policy.Window, now)
}

// New constructs a Limiter over store with the supplied policy table.
func New(store cache.Store, policies []Policy, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	table := make(map[string]Policy, len(policies))
	for _, policy := range policies {
		if err := policy.validate(); err != nil {
			return nil, err
		}
		if _, exists := table[policy.Name]; exists {
			return nil, fmt.Errorf("ratelimit: duplicate policy %q", policy.Name)
		}
		table[policy.Name] = policy
	}

	l := &Limiter{
		store:     store,
		policies:  table,
		timeout:   DefaultTimeout,
		clock:     time.Now,
		instances: make(map[string]*policyLimiter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check records an attempt of identity under the named policy. Store failures admit the call.
func (l *Limiter) Check(ctx context.Context, policyName, identity string) (Decision, error) {
	instance, err := l.instance(policyName)
	if err != nil {
		return Decision{}, err
	}
	policy := instance.policy

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	now := l.clock()
	result, err := instance.allow(ctx, identity, now)
	if err != nil {
		l.logger().Warn("rate limiter store unavailable, allowing request",
			zap.String("policy", policy.Name),
			zap.String("identity", identity),
			zap.Error(err),
		)
		metrics.RateLimitDecisions.WithLabelValues(policy.Name, "fail_open").Inc()
		return Decision{
			Allowed:   true,
			ResetAt:   now,
			Limit:     policy.Capacity,
			Remaining: policy.Capacity,
			FailOpen:  true,
		}, nil
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "denied"
	}
	metrics.RateLimitDecisions.WithLabelValues(policy.Name, outcome).Inc()

	return Decision{
		Allowed:   result.Allowed,
		ResetAt:   result.ResetAt,
		Limit:     policy.Capacity,
		Remaining: max(policy.Capacity-result.Count, 0),
	}, nil
}

// instance returns the cached per-policy limiter, constructing it on first use.
func (l *Limiter) instance(name string) (*policyLimiter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if instance, ok := l.instances[name]; ok {
		return instance, nil
	}
	policy, ok := l.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	instance := &policyLimiter{policy: policy, store: l.store}
	l.instances[name] = instance
	return instance, nil
}

func (l *Limiter) logger() *zap.Logger {
	if l.log != nil {
		return l.log
	}
	return logger.WithModule("ratelimit")
}
