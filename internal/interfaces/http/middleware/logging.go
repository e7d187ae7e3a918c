package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

// LoggingConfig controls the request logging middleware.
type LoggingConfig struct {
	// SkipPaths are request paths that are never logged (health probes,
	// metrics scrapes).
	SkipPaths []string

	// SlowThreshold marks requests slower than this duration with a warning.
	// Zero disables slow-request detection.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig returns the logging configuration used by the API server.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogger returns middleware that logs one line per request. The log
// level follows the response status: 5xx at error, 4xx at warn, everything
// else at info. Slow requests are flagged separately so they stand out even
// when they succeed.
func RequestLogger(logger logging.Logger, cfg LoggingConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.Int("response_bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logging.String("query", query))
		}
		if id := GetRequestID(c); id != "" {
			fields = append(fields, logging.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		case cfg.SlowThreshold > 0 && duration > cfg.SlowThreshold:
			fields = append(fields, logging.Duration("slow_threshold", cfg.SlowThreshold))
			logger.Warn("slow request", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
