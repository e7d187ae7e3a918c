// Package integration drives the fully assembled service over real HTTP:
// configuration, engine, router and the Go SDK all in one loop. Unit
// coverage lives next to each package; these tests only assert on the
// externally visible contract.
package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinlex/medfuse/internal/application"
	"github.com/clinlex/medfuse/internal/config"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/pkg/client"
)

// TestTimeout bounds one request round trip through the full stack.
const TestTimeout = 30 * time.Second

// TestEnvironment is one running service instance plus an SDK client
// pointed at it.
type TestEnvironment struct {
	Ctx    context.Context
	Cfg    *config.Config
	App    *application.App
	Server *httptest.Server
	Client *client.Client
}

// testConfig builds the configuration under test: mock model backend,
// every rule source enabled, gin in test mode.
func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.Mode = "test"
	cfg.Tagger.MinScore = config.DefaultTaggerMinScore
	cfg.Analysis.ConfidenceThreshold = config.DefaultConfidenceThreshold
	cfg.Analysis.EnablePatterns = true
	cfg.Analysis.EnableDictionary = true
	cfg.Analysis.EnableMorphology = true
	cfg.Analysis.EnableContextualBoost = true
	cfg.Analysis.ConcurrentSources = true
	return cfg
}

// SetupTestEnvironment assembles the whole service, serves it from an
// ephemeral port and tears everything down when the test finishes.
func SetupTestEnvironment(t *testing.T, mutate func(*config.Config)) *TestEnvironment {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	app, err := application.NewApp(cfg, logging.NewNopLogger(), "integration-test")
	if err != nil {
		t.Fatalf("assemble application: %v", err)
	}

	server := httptest.NewServer(app.Handler)
	t.Cleanup(server.Close)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Engine.Shutdown(shutdownCtx)
	})

	sdk, err := client.NewClient(server.URL,
		client.WithTimeout(TestTimeout),
		client.WithRetryMax(0),
	)
	if err != nil {
		t.Fatalf("create SDK client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)

	return &TestEnvironment{
		Ctx:    ctx,
		Cfg:    cfg,
		App:    app,
		Server: server,
		Client: sdk,
	}
}

// findEntity returns the first entity with the label whose text contains
// substr, or nil.
func findEntity(entities []client.Entity, label, substr string) *client.Entity {
	for i := range entities {
		e := &entities[i]
		if e.Label == label && strings.Contains(e.Text, substr) {
			return e
		}
	}
	return nil
}
