package app

import (
	"strings"

	"github.com/charlesng35/inkpost/internal/cache"
)

// RedisOptions converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisOptions() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}
