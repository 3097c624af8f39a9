// Package httpapi exposes link decoding, encoding and queue status over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/observability"
	"github.com/danmuck/inspectctl/internal/resolver"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

type Config struct {
	ListenAddr      string
	CorsOrigins     []string
	InspectTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      ":8080",
		InspectTimeout:  45 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// QueueStatus is the read-only view of the inspect queue. *inspect.Client
// satisfies it.
type QueueStatus interface {
	QueueDepth() int
	State() inspect.SessionState
}

type Server struct {
	cfg      Config
	resolver *resolver.Resolver
	queue    QueueStatus
	router   *gin.Engine
	started  time.Time
}

// New builds the router. queue may be nil when no game session is configured.
func New(cfg Config, res *resolver.Resolver, queue QueueStatus) *Server {
	observability.RegisterMetrics()
	router := gin.New()
	router.Use(
		gin.Recovery(),
		observability.RequestID(),
		observability.RequestLogger(log.Logger),
		observability.RequestMetricsMiddleware(),
		cors.New(cors.Config{
			AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type", observability.RequestIDHeader},
			MaxAge:       12 * time.Hour,
		}),
	)
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	s := &Server{
		cfg:      cfg,
		resolver: res,
		queue:    queue,
		router:   router,
		started:  time.Now(),
	}
	s.registerRoutes()
	return s
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("httpapi.Run listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	log.Info().Msg("httpapi.Run shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
