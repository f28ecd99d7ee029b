package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheConfig defines settings for the public response cache.  When Enabled
// is false or no Redis client is configured, caching is disabled.  Methods
// lists the HTTP methods to cache, TTL is the lifetime of an entry and
// Prefix namespaces keys so admin writes can purge them in one sweep.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	Methods      []string      `env:"CACHE_METHODS" envDefault:"GET" envSeparator:","`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"salon:cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Caches reports whether responses to the given method are cacheable.
func (c CacheConfig) Caches(method string) bool {
	for _, m := range c.Methods {
		if strings.EqualFold(strings.TrimSpace(m), method) {
			return true
		}
	}
	return false
}

// LoadCacheConfig reads CACHE_* variables, falling back to defaults.
func LoadCacheConfig() (CacheConfig, error) {
	cfg, err := env.ParseAs[CacheConfig]()
	if err != nil {
		return CacheConfig{}, fmt.Errorf("parsing cache config: %w", err)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	return cfg, nil
}
