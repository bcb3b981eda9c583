package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldroute/jobsync/internal/pkg/logger"
	"github.com/fieldroute/jobsync/internal/ratelimit"
)

// requestLogger logs one line per request at Info, mirroring the
// teacher's gin logging middleware shape (method, path, status, latency).
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// recovery converts a panic in a handler into a 500 response instead of
// crashing the process, logging the panic value before responding.
func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("http handler panicked, recovering", "panic", r, "path", c.FullPath())
				c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{Error: "internal error"})
			}
		}()
		c.Next()
	}
}

// rateLimitMiddleware enforces a per-(operation, client IP) fixed-window
// quota ahead of the handler, the HTTP-layer half of SPEC_FULL.md §9's
// dual rate limiter (the other half guards the sync_job/poll_job_updates
// use cases directly, so a request that bypasses HTTP is still bounded).
func rateLimitMiddleware(limiter ratelimit.Limiter, operation string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), operation, c.ClientIP(), limit, window) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
