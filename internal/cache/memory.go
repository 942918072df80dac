package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides process-local sliding windows. It is concurrency-safe but not shared
// between instances.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string][]int64
	tick   *time.Ticker
	done   chan struct{}
	once   sync.Once
	clock  func() time.Time
	maxAge time.Duration
}

// NewMemoryStore constructs an in-memory store. Keys idle for longer than maxAge are dropped by a
// background sweep; maxAge <= 0 defaults to one hour.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	store := &MemoryStore{
		data:   make(map[string][]int64),
		tick:   time.NewTicker(time.Minute),
		done:   make(chan struct{}),
		clock:  time.Now,
		maxAge: maxAge,
	}

	go store.cleanupLoop()
	return store
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.tick.C:
			s.evictIdle(s.clock())
		}
	}
}

func (s *MemoryStore) evictIdle(now time.Time) {
	cutoff := now.Add(-s.maxAge).UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, hits := range s.data {
		if len(hits) == 0 || hits[len(hits)-1] <= cutoff {
			delete(s.data, key)
		}
	}
}

// SlidingWindow implements Store.
func (s *MemoryStore) SlidingWindow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (WindowResult, error) {
	if err := validateWindow(limit, window); err != nil {
		return WindowResult{}, err
	}

	nowMillis := now.UnixMilli()
	floor := nowMillis - window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.data[key]
	idx := 0
	for idx < len(hits) && hits[idx] <= floor {
		idx++
	}
	hits = hits[idx:]

	result := WindowResult{}
	if len(hits) < limit {
		hits = append(hits, nowMillis)
		result.Allowed = true
	}
	s.data[key] = hits

	result.Count = len(hits)
	result.ResetAt = resetAt(hits[0], window, now)
	return result, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the background sweep.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.tick.Stop()
		close(s.done)
	})
	return nil
}
