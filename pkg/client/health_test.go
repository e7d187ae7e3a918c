package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		json.NewEncoder(w).Encode(LivenessResponse{
			Status:        "ok",
			Version:       "1.2.3",
			UptimeSeconds: 42,
		})
	}
	c := newTestClient(t, handler)

	resp, err := c.Liveness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, int64(42), resp.UptimeSeconds)
}

func TestReadiness_Ready(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readyz", r.URL.Path)
		json.NewEncoder(w).Encode(ReadinessResponse{
			Status: "ready",
			Components: map[string]ComponentCheck{
				"pipeline":       {Status: "up", Latency: "1ms"},
				"backend:tagger": {Status: "up", Latency: "3ms"},
			},
		})
	}
	c := newTestClient(t, handler)

	resp, err := c.Readiness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ready", resp.Status)
	assert.Len(t, resp.Components, 2)
	assert.Equal(t, "up", resp.Components["pipeline"].Status)
}

func TestReadiness_NotReady(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ReadinessResponse{Status: "not_ready"})
	}
	c := newTestClient(t, handler, WithRetryMax(0))

	_, err := c.Readiness(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsServerError())
}
