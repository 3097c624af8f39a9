package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "INSPECTCTL"

// envOverrides leaves a field nil unless its variable is set.
type envOverrides struct {
	LogLevel        *string        `envconfig:"LOG_LEVEL"`
	HTTPAddr        *string        `envconfig:"HTTP_ADDR"`
	RequestDelay    *time.Duration `envconfig:"REQUEST_DELAY"`
	QueueCapacity   *int           `envconfig:"QUEUE_CAPACITY"`
	GatewayAddr     *string        `envconfig:"GATEWAY_ADDR"`
	GatewayAccount  *string        `envconfig:"GATEWAY_ACCOUNT"`
	GatewayPassword *string        `envconfig:"GATEWAY_PASSWORD"`
	GatewayAuthCode *string        `envconfig:"GATEWAY_AUTH_CODE"`
	CacheType       *string        `envconfig:"CACHE_TYPE"`
	CacheTTL        *time.Duration `envconfig:"CACHE_TTL"`
	RedisAddr       *string        `envconfig:"REDIS_ADDR"`
	RedisPassword   *string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         *int           `envconfig:"REDIS_DB"`
}

// LoadEnv loads dotenv files (".env" when none are named; missing files are
// skipped) and overlays INSPECTCTL_* variables onto cfg.
func LoadEnv(cfg *Config, dotenv ...string) error {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	setString(&cfg.LogLevel, env.LogLevel)
	setString(&cfg.HTTP.ListenAddr, env.HTTPAddr)
	if env.RequestDelay != nil {
		cfg.Queue.RequestDelay = *env.RequestDelay
	}
	if env.QueueCapacity != nil {
		cfg.Queue.Capacity = *env.QueueCapacity
	}
	setString(&cfg.Gateway.Address, env.GatewayAddr)
	setString(&cfg.Gateway.Account, env.GatewayAccount)
	if env.GatewayPassword != nil {
		cfg.Gateway.Password = *env.GatewayPassword
	}
	setString(&cfg.Gateway.AuthCode, env.GatewayAuthCode)
	if env.CacheType != nil {
		cfg.Cache.Type = strings.ToLower(strings.TrimSpace(*env.CacheType))
	}
	if env.CacheTTL != nil {
		cfg.Resolver.CacheTTL = *env.CacheTTL
	}
	setString(&cfg.Cache.Redis.Addr, env.RedisAddr)
	if env.RedisPassword != nil {
		cfg.Cache.Redis.Password = *env.RedisPassword
	}
	if env.RedisDB != nil {
		cfg.Cache.Redis.DB = *env.RedisDB
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
