package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clinlex/medfuse/internal/config"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	monitoring "github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
	httpapi "github.com/clinlex/medfuse/internal/interfaces/http"
	"github.com/clinlex/medfuse/internal/interfaces/http/handlers"
	"github.com/clinlex/medfuse/internal/interfaces/http/middleware"
)

// App is the fully wired service: metrics, analysis engine and the HTTP
// server in front of it. Construct with NewApp, then Run until the context
// is cancelled. Handler is the routed gin engine, exposed so tests and
// embedders can serve it without binding a port.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector monitoring.MetricsCollector
	Engine    *Engine
	Server    *httpapi.Server
	Handler   http.Handler
}

// NewApp assembles every layer of the service from configuration. version
// is reported by the liveness endpoint.
func NewApp(cfg *config.Config, logger logging.Logger, version string) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var collector monitoring.MetricsCollector
	var appMetrics *monitoring.AppMetrics
	if cfg != nil && cfg.Metrics.Enabled {
		c, err := monitoring.NewMetricsCollector(monitoring.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			Subsystem:            cfg.Metrics.Subsystem,
			EnableProcessMetrics: cfg.Metrics.EnableProcessMetrics,
			EnableGoMetrics:      cfg.Metrics.EnableGoMetrics,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("metrics collector: %w", err)
		}
		collector = c
		appMetrics = monitoring.NewAppMetrics(c)
	}

	engine, err := BuildEngine(cfg, logger, collector)
	if err != nil {
		return nil, err
	}

	analyzeHandler := handlers.NewAnalyzeHandler(handlers.AnalyzeHandlerConfig{
		Service:       engine.Pipeline,
		MaxTextChars:  cfg.Analysis.MaxTextChars,
		MaxBatchTexts: cfg.Analysis.MaxBatchTexts,
		Logger:        logger,
		Metrics:       appMetrics,
	})
	healthHandler := handlers.NewHealthHandler(healthCheckers(engine), logger, appMetrics, version)

	rateCfg := middleware.DefaultRateLimitConfig()
	router := httpapi.NewRouter(httpapi.RouterConfig{
		AnalyzeHandler:   analyzeHandler,
		HealthHandler:    healthHandler,
		Mode:             cfg.Server.Mode,
		MaxBodySize:      cfg.Server.MaxBodySize,
		Limiter:          middleware.NewTokenBucketLimiter(rateCfg.RequestsPerSecond, rateCfg.BurstSize, rateCfg.CleanupInterval),
		RateLimitConfig:  rateCfg,
		CORS:             middleware.DefaultCORSConfig(),
		Logging:          middleware.DefaultLoggingConfig(),
		Logger:           logger,
		Metrics:          appMetrics,
		MetricsCollector: collector,
	})

	server := httpapi.NewServer(httpapi.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, router, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Collector: collector,
		Engine:    engine,
		Server:    server,
		Handler:   router,
	}, nil
}

// healthCheckers builds the readiness probes: the pipeline itself plus one
// probe per registered model backend.
func healthCheckers(engine *Engine) []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{
			ComponentName: "pipeline",
			Fn: func(ctx context.Context) error {
				if engine.Pipeline == nil {
					return fmt.Errorf("pipeline not initialized")
				}
				return nil
			},
		},
	}
	for _, name := range engine.Registry.List() {
		name := name
		checkers = append(checkers, handlers.CheckerFunc{
			ComponentName: "backend:" + name,
			Fn: func(ctx context.Context) error {
				backend, err := engine.Registry.Get(name)
				if err != nil {
					return err
				}
				return backend.Healthy(ctx)
			},
		})
	}
	return checkers
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// everything down in order: server drain first, engine second.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.Server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = err
	}

	grace := a.Config.Server.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := a.Server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	if err := a.Engine.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
