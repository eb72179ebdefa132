package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reward360/pointsguard/internal/idgen"
	"github.com/reward360/pointsguard/internal/logging"
	"github.com/reward360/pointsguard/internal/metrics"
	"github.com/reward360/pointsguard/internal/ratelimit"
	"github.com/reward360/pointsguard/internal/validation"
)

// installMiddleware sets the global chain. Order matters: recovery is
// outermost, request IDs are assigned before the access log runs.
func (s *Server) installMiddleware() {
	s.engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.engine.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.limiter = ratelimit.New(limiterCfg)
	s.engine.Use(s.limiter.Middleware())

	s.engine.Use(metrics.Middleware())
	s.engine.Use(requestID(s))
	s.engine.Use(accessLog())
}

// requestID honors an inbound X-Request-ID (load balancers set one) and
// mints a req_ id otherwise. The id rides the request context so every
// log line downstream carries it.
func requestID(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = idgen.WithPrefix("req_")
		}

		ctx := logging.WithRequestID(c.Request.Context(), id)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// accessLog writes one line per request, escalating the level with the
// response status.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}
