package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlex/medfuse/internal/testutil"
)

func newLoggedEngine(logger *testutil.MockLogger, cfg LoggingConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(RequestLogger(logger, cfg))
	engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	engine.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	engine.GET("/slow", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	engine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestRequestLogger_LevelsFollowStatus(t *testing.T) {
	logger := testutil.NewMockLogger()
	engine := newLoggedEngine(logger, DefaultLoggingConfig())

	doGet(engine, "/ok")
	doGet(engine, "/bad")
	doGet(engine, "/boom")

	assert.Equal(t, 1, logger.CountLevel("info"))
	assert.Equal(t, 1, logger.CountLevel("warn"))
	assert.Equal(t, 1, logger.CountLevel("error"))
}

func TestRequestLogger_SkipPaths(t *testing.T) {
	logger := testutil.NewMockLogger()
	engine := newLoggedEngine(logger, DefaultLoggingConfig())

	doGet(engine, "/healthz")

	assert.Empty(t, logger.GetMessages(), "skip paths must not be logged")
}

func TestRequestLogger_SlowRequestFlagged(t *testing.T) {
	logger := testutil.NewMockLogger()
	cfg := LoggingConfig{SlowThreshold: time.Millisecond}
	engine := newLoggedEngine(logger, cfg)

	doGet(engine, "/slow")

	assert.True(t, logger.HasMessage("warn", "slow request"))
}

func TestRequestLogger_IncludesRequestID(t *testing.T) {
	logger := testutil.NewMockLogger()
	engine := newLoggedEngine(logger, DefaultLoggingConfig())

	rec := doGet(engine, "/ok")
	requestID := rec.Header().Get(HeaderRequestID)
	require.NotEmpty(t, requestID)

	messages := logger.GetMessages()
	require.Len(t, messages, 1)

	found := false
	for _, field := range messages[0].Fields {
		if field.Key == "request_id" {
			assert.Equal(t, requestID, field.Value)
			found = true
		}
	}
	assert.True(t, found, "log entry must carry the request_id field")
}
