// Package http assembles the gin route tree and the API server around the
// analysis pipeline.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlex/medfuse/internal/interfaces/http/handlers"
	"github.com/clinlex/medfuse/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for the
// route tree.
type RouterConfig struct {
	AnalyzeHandler *handlers.AnalyzeHandler
	HealthHandler  *handlers.HealthHandler

	// Mode selects the gin mode: debug, release, or test.
	Mode string

	// MaxBodySize caps request bodies in bytes. Zero disables the cap.
	MaxBodySize int64

	// RateLimit enables per-client throttling when Limiter is set.
	Limiter         middleware.RateLimiter
	RateLimitConfig middleware.RateLimitConfig

	// CORS is applied when it has at least one allowed origin.
	CORS middleware.CORSConfig

	Logging middleware.LoggingConfig

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics

	// MetricsCollector serves GET /metrics when present.
	MetricsCollector prometheus.MetricsCollector
}

// NewRouter builds the engine: recovery, request IDs, logging, metrics, and
// throttling around the health probes and the /api/v1 analysis endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.RequestLogger(logger, cfg.Logging))
	if cfg.Metrics != nil {
		engine.Use(middleware.HTTPMetrics(cfg.Metrics))
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		engine.Use(middleware.CORS(cfg.CORS))
	}
	if cfg.Limiter != nil {
		engine.Use(middleware.RateLimit(cfg.Limiter, cfg.RateLimitConfig))
	}
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		engine.GET("/healthz", cfg.HealthHandler.Liveness)
		engine.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		engine.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	if cfg.AnalyzeHandler != nil {
		v1 := engine.Group("/api/v1")
		v1.POST("/analyze", cfg.AnalyzeHandler.Analyze)
		v1.POST("/analyze/batch", cfg.AnalyzeHandler.AnalyzeBatch)
		v1.GET("/demo", cfg.AnalyzeHandler.Demo)
	}

	return engine
}
