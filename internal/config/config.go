// Package config assembles runtime settings from defaults, a TOML file and
// INSPECTCTL_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/inspectctl/internal/cache"
	"github.com/danmuck/inspectctl/internal/gateway"
	"github.com/danmuck/inspectctl/internal/httpapi"
	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/resolver"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

var ErrInvalidConfig = errors.New("config: invalid")

type CacheConfig struct {
	Type          string
	SweepInterval time.Duration
	Redis         cache.RedisConfig
}

type Config struct {
	LogLevel string
	HTTP     httpapi.Config
	Queue    inspect.Config
	Resolver resolver.Config
	// Gateway.Address empty means no game session: masked links only.
	Gateway gateway.Config
	Cache   CacheConfig
}

func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP:     httpapi.DefaultConfig(),
		Queue:    inspect.DefaultConfig(),
		Resolver: resolver.DefaultConfig(),
		Gateway:  gateway.DefaultConfig(),
		Cache: CacheConfig{
			Type:          CacheMemory,
			SweepInterval: time.Minute,
			Redis: cache.RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: cache.DefaultKeyPrefix,
			},
		},
	}
}

// Load applies path (when non-empty) and then the environment over Default.
func Load(path string, dotenv ...string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := LoadEnv(&cfg, dotenv...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GatewayEnabled reports whether unmasked links can be resolved.
func (c Config) GatewayEnabled() bool {
	return strings.TrimSpace(c.Gateway.Address) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTP.ListenAddr) == "" {
		return fmt.Errorf("%w: http.listen_addr is required", ErrInvalidConfig)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("%w: queue.capacity must be positive", ErrInvalidConfig)
	}
	if c.Queue.RequestDelay < 0 {
		return fmt.Errorf("%w: queue.request_delay must not be negative", ErrInvalidConfig)
	}
	if c.GatewayEnabled() {
		if strings.TrimSpace(c.Gateway.Account) == "" {
			return fmt.Errorf("%w: gateway.account is required with gateway.address", ErrInvalidConfig)
		}
		if err := c.Gateway.Session.ValidateClientTransport(); err != nil {
			return fmt.Errorf("%w: gateway transport: %w", ErrInvalidConfig, err)
		}
	}
	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return fmt.Errorf("%w: cache.redis_addr is required for redis cache", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache.type %q", ErrInvalidConfig, c.Cache.Type)
	}
	return nil
}
