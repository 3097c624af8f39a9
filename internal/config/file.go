package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/inspectctl/internal/protocol/session"
)

type fileConfig struct {
	LogLevel string      `toml:"log_level"`
	HTTP     httpFile    `toml:"http"`
	Queue    queueFile   `toml:"queue"`
	Gateway  gatewayFile `toml:"gateway"`
	Cache    cacheFile   `toml:"cache"`
}

type httpFile struct {
	ListenAddr      string   `toml:"listen_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	InspectTimeout  string   `toml:"inspect_timeout"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
}

type queueFile struct {
	Capacity       int    `toml:"capacity"`
	RequestDelay   string `toml:"request_delay"`
	RequestTimeout string `toml:"request_timeout"`
	QueueExpiry    string `toml:"queue_expiry"`
	ConnectTimeout string `toml:"connect_timeout"`
}

type gatewayFile struct {
	Address            string `toml:"address"`
	Account            string `toml:"account"`
	Password           string `toml:"password"`
	AuthCode           string `toml:"auth_code"`
	ClientID           string `toml:"client_id"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	DialTimeout        string `toml:"dial_timeout"`
	SecurityMode       string `toml:"security_mode"`
	TLS                bool   `toml:"tls"`
	TLSMutual          bool   `toml:"tls_mutual"`
	TLSCAFile          string `toml:"tls_ca_file"`
	TLSCertFile        string `toml:"tls_cert_file"`
	TLSKeyFile         string `toml:"tls_key_file"`
	TLSServerName      string `toml:"tls_server_name"`
	TLSInsecure        bool   `toml:"tls_insecure_skip_verify"`
}

type cacheFile struct {
	Type          string `toml:"type"`
	TTL           string `toml:"ttl"`
	SweepInterval string `toml:"sweep_interval"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix"`
}

// LoadFile overlays keys present in the TOML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("http", "listen_addr") {
		cfg.HTTP.ListenAddr = strings.TrimSpace(raw.HTTP.ListenAddr)
	}
	if meta.IsDefined("http", "cors_origins") {
		cfg.HTTP.CorsOrigins = normalizeList(raw.HTTP.CorsOrigins)
	}
	if err := overlayDuration(meta, &cfg.HTTP.InspectTimeout, raw.HTTP.InspectTimeout, "http", "inspect_timeout"); err != nil {
		return err
	}
	if err := overlayDuration(meta, &cfg.HTTP.ShutdownTimeout, raw.HTTP.ShutdownTimeout, "http", "shutdown_timeout"); err != nil {
		return err
	}

	if meta.IsDefined("queue", "capacity") {
		cfg.Queue.Capacity = raw.Queue.Capacity
	}
	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&cfg.Queue.RequestDelay, raw.Queue.RequestDelay, "request_delay"},
		{&cfg.Queue.RequestTimeout, raw.Queue.RequestTimeout, "request_timeout"},
		{&cfg.Queue.QueueExpiry, raw.Queue.QueueExpiry, "queue_expiry"},
		{&cfg.Queue.ConnectTimeout, raw.Queue.ConnectTimeout, "connect_timeout"},
	} {
		if err := overlayDuration(meta, d.dst, d.raw, "queue", d.key); err != nil {
			return err
		}
	}

	if meta.IsDefined("gateway", "address") {
		cfg.Gateway.Address = strings.TrimSpace(raw.Gateway.Address)
	}
	if meta.IsDefined("gateway", "account") {
		cfg.Gateway.Account = strings.TrimSpace(raw.Gateway.Account)
	}
	if meta.IsDefined("gateway", "password") {
		cfg.Gateway.Password = raw.Gateway.Password
	}
	if meta.IsDefined("gateway", "auth_code") {
		cfg.Gateway.AuthCode = strings.TrimSpace(raw.Gateway.AuthCode)
	}
	if meta.IsDefined("gateway", "client_id") {
		cfg.Gateway.ClientID = strings.TrimSpace(raw.Gateway.ClientID)
	}
	if meta.IsDefined("gateway", "max_connect_attempts") {
		cfg.Gateway.MaxConnectAttempts = raw.Gateway.MaxConnectAttempts
	}
	if err := overlayDuration(meta, &cfg.Gateway.Session.ConnectTimeout, raw.Gateway.DialTimeout, "gateway", "dial_timeout"); err != nil {
		return err
	}
	if meta.IsDefined("gateway", "security_mode") {
		cfg.Gateway.Session.SecurityMode = session.NormalizeSecurityMode(session.SecurityMode(raw.Gateway.SecurityMode))
	}
	if meta.IsDefined("gateway", "tls") {
		cfg.Gateway.Session.TLS.Enabled = raw.Gateway.TLS
	}
	if meta.IsDefined("gateway", "tls_mutual") {
		cfg.Gateway.Session.TLS.Mutual = raw.Gateway.TLSMutual
	}
	if meta.IsDefined("gateway", "tls_ca_file") {
		cfg.Gateway.Session.TLS.CAFile = strings.TrimSpace(raw.Gateway.TLSCAFile)
	}
	if meta.IsDefined("gateway", "tls_cert_file") {
		cfg.Gateway.Session.TLS.CertFile = strings.TrimSpace(raw.Gateway.TLSCertFile)
	}
	if meta.IsDefined("gateway", "tls_key_file") {
		cfg.Gateway.Session.TLS.KeyFile = strings.TrimSpace(raw.Gateway.TLSKeyFile)
	}
	if meta.IsDefined("gateway", "tls_server_name") {
		cfg.Gateway.Session.TLS.ServerName = strings.TrimSpace(raw.Gateway.TLSServerName)
	}
	if meta.IsDefined("gateway", "tls_insecure_skip_verify") {
		cfg.Gateway.Session.TLS.InsecureSkipVerify = raw.Gateway.TLSInsecure
	}

	if meta.IsDefined("cache", "type") {
		cfg.Cache.Type = strings.ToLower(strings.TrimSpace(raw.Cache.Type))
	}
	if err := overlayDuration(meta, &cfg.Resolver.CacheTTL, raw.Cache.TTL, "cache", "ttl"); err != nil {
		return err
	}
	if err := overlayDuration(meta, &cfg.Cache.SweepInterval, raw.Cache.SweepInterval, "cache", "sweep_interval"); err != nil {
		return err
	}
	if meta.IsDefined("cache", "redis_addr") {
		cfg.Cache.Redis.Addr = strings.TrimSpace(raw.Cache.RedisAddr)
	}
	if meta.IsDefined("cache", "redis_password") {
		cfg.Cache.Redis.Password = raw.Cache.RedisPassword
	}
	if meta.IsDefined("cache", "redis_db") {
		cfg.Cache.Redis.DB = raw.Cache.RedisDB
	}
	if meta.IsDefined("cache", "key_prefix") {
		cfg.Cache.Redis.KeyPrefix = strings.TrimSpace(raw.Cache.KeyPrefix)
	}
	return nil
}

func overlayDuration(meta toml.MetaData, dst *time.Duration, raw string, key ...string) error {
	if !meta.IsDefined(key...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse %s: %w", strings.Join(key, "."), err)
	}
	*dst = d
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
