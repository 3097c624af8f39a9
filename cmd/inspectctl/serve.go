package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/inspectctl/internal/cache"
	"github.com/danmuck/inspectctl/internal/config"
	"github.com/danmuck/inspectctl/internal/gateway"
	"github.com/danmuck/inspectctl/internal/httpapi"
	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/logging"
	"github.com/danmuck/inspectctl/internal/protocol/session"
	"github.com/danmuck/inspectctl/internal/resolver"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const reconnectCheck = 2 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	path := fs.String("config", "", "path to a TOML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logging.ConfigureRuntime()
	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		zerolog.SetGlobalLevel(lvl)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}

	var (
		inspector resolver.Inspector
		queue     httpapi.QueueStatus
	)
	if cfg.GatewayEnabled() {
		gs, err := gateway.New(cfg.Gateway)
		if err != nil {
			return err
		}
		client := inspect.New(cfg.Queue, gs)
		defer client.Close()
		go keepConnected(ctx, client, cfg.Gateway.Session.Backoff)
		inspector, queue = client, client
	} else {
		log.Warn().Msg("inspectctl.serve no gateway configured, unmasked links disabled")
	}

	res := resolver.New(cfg.Resolver, inspector, c)
	return httpapi.New(cfg.HTTP, res, queue).Run(ctx)
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case config.CacheRedis:
		return cache.NewRedis(ctx, cfg.Redis)
	case config.CacheNone:
		return nil, nil
	default:
		return cache.NewMemory(cfg.SweepInterval), nil
	}
}

// keepConnected reconnects the client whenever it drops, backing off between
// failed attempts.
func keepConnected(ctx context.Context, client *inspect.Client, backoff session.BackoffConfig) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	failures := 0
	for {
		wait := reconnectCheck
		if !client.IsReady() {
			err := client.Connect(ctx)
			switch {
			case err == nil:
				failures = 0
			case errors.Is(err, inspect.ErrClientClosed), ctx.Err() != nil:
				return
			default:
				failures++
				wait = session.NextBackoffDelay(backoff, failures, rng)
				log.Warn().Err(err).Int("failures", failures).Dur("retry_in", wait).Msg("inspectctl.keepConnected connect failed")
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
