package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig captures the connection parameters of the Redis counter store.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
}

const defaultRedisTimeout = time.Second
const redisKeyPrefix = "inkpost:"

// slidingWindowScript evaluates one sliding window atomically on the server.
// KEYS[1] key, ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
if count > 0 then
  redis.call('PEXPIRE', key, window)
end

local oldest = 0
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisStore implements Store on a Redis sorted set per key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection so misconfiguration surfaces at startup.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	store := &RedisStore{client: redis.NewClient(opts)}
	if err := store.Ping(ctx); err != nil {
		_ = store.client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Address, err)
	}
	return store, nil
}

// SlidingWindow implements Store.
func (s *RedisStore) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (WindowResult, error) {
	if err := validateWindow(limit, window); err != nil {
		return WindowResult{}, err
	}

	nowMillis := now.UnixMilli()
	member := strconv.FormatInt(nowMillis, 10) + "-" + uuid.NewString()

	values, err := slidingWindowScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + key},
		nowMillis, window.Milliseconds(), limit, member,
	).Int64Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("redis: sliding window: %w", err)
	}
	if len(values) != 3 {
		return WindowResult{}, fmt.Errorf("redis: sliding window: unexpected reply length %d", len(values))
	}

	return WindowResult{
		Allowed: values[0] == 1,
		Count:   int(values[1]),
		ResetAt: resetAt(values[2], window, now),
	}, nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
