package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/inspectctl/internal/inspect"
	"github.com/danmuck/inspectctl/internal/item"
	"github.com/danmuck/inspectctl/internal/link"
	"github.com/danmuck/inspectctl/internal/protocol"
	"github.com/danmuck/inspectctl/internal/protocol/frame"
	"github.com/danmuck/inspectctl/internal/resolver"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type decodeRequest struct {
	Link string `json:"link"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "inspectctl",
			"version":   Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.GET("/inspect", func(c *gin.Context) {
		s.decode(c, c.Query("link"))
	})
	v1.POST("/inspect", func(c *gin.Context) {
		var req decodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
			return
		}
		s.decode(c, req.Link)
	})
	v1.POST("/encode", func(c *gin.Context) {
		var rec item.Record
		if err := c.ShouldBindJSON(&rec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
			return
		}
		c.JSON(http.StatusOK, s.resolver.Encode(rec))
	})
	v1.GET("/queue", func(c *gin.Context) {
		if s.queue == nil {
			c.JSON(http.StatusOK, gin.H{"enabled": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"enabled": true,
			"depth":   s.queue.QueueDepth(),
			"state":   s.queue.State().String(),
		})
	})
}

func (s *Server) decode(c *gin.Context, text string) {
	if strings.TrimSpace(text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "link is required", "code": "bad_request"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.InspectTimeout)
	defer cancel()

	res, err := s.resolver.Decode(ctx, text)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Warn().Err(err).Str("request_id", c.GetString("request_id")).Msg("httpapi.decode failed")
		}
		c.JSON(status, gin.H{"error": err.Error(), "code": code})
		return
	}
	c.JSON(http.StatusOK, res)
}

// statusFor maps resolution errors to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, link.ErrInvalidLinkFormat):
		return http.StatusBadRequest, "invalid_link"
	case errors.Is(err, frame.ErrInvalidChecksumFraming):
		return http.StatusBadRequest, "invalid_framing"
	case errors.Is(err, protocol.ErrCodecTruncated):
		return http.StatusBadRequest, "codec_truncated"
	case errors.Is(err, inspect.ErrQueueFull):
		return http.StatusTooManyRequests, "queue_full"
	case errors.Is(err, inspect.ErrSessionNotReady),
		errors.Is(err, inspect.ErrSessionConnectFailed),
		errors.Is(err, inspect.ErrClientClosed),
		errors.Is(err, resolver.ErrNoSession):
		return http.StatusServiceUnavailable, "session_unavailable"
	case errors.Is(err, inspect.ErrRequestTimedOut),
		errors.Is(err, inspect.ErrRequestExpired),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "canceled"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
