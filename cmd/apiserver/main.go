// API server entry point for the medfuse clinical entity service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinlex/medfuse/internal/application"
	"github.com/clinlex/medfuse/internal/config"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("medfuse-apiserver %s (commit %s, built %s)\n", version, commit, buildDate)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medfuse-apiserver: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "medfuse-apiserver: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	app, err := application.NewApp(cfg, logger, version)
	if err != nil {
		logger.Error("startup failed", logging.Err(err))
		logger.Sync()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting medfuse API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("port", cfg.Server.Port),
		logging.String("backend", cfg.Tagger.Backend),
	)

	if err := app.Run(ctx); err != nil {
		logger.Error("server exited with error", logging.Err(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// loadConfig reads the configuration file when it exists and falls back to
// environment variables and defaults when it does not. An explicit file that
// fails to parse or validate is fatal.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
