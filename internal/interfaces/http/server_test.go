package http

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_AppliesDefaults(t *testing.T) {
	srv := NewServer(ServerConfig{Port: 8080}, http.NewServeMux(), nil)

	assert.Equal(t, ":8080", srv.Addr())
	assert.Equal(t, 15*time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 30*time.Second, srv.srv.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.srv.IdleTimeout)
}

func TestNewServer_KeepsExplicitTimeouts(t *testing.T) {
	srv := NewServer(ServerConfig{
		Port:         9090,
		ReadTimeout:  time.Second,
		WriteTimeout: 2 * time.Second,
		IdleTimeout:  3 * time.Second,
	}, http.NewServeMux(), nil)

	assert.Equal(t, time.Second, srv.srv.ReadTimeout)
	assert.Equal(t, 2*time.Second, srv.srv.WriteTimeout)
	assert.Equal(t, 3*time.Second, srv.srv.IdleTimeout)
}

func TestServer_StartStopCycle(t *testing.T) {
	// Port 0 lets the kernel pick a free port so the test never collides.
	srv := NewServer(ServerConfig{Port: 0}, http.NewServeMux(), nil)

	done := make(chan error, 1)
	go func() {
		done <- srv.Start()
	}()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "a shutdown-initiated stop must not surface as an error")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	srv := NewServer(ServerConfig{Port: 0}, http.NewServeMux(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	first := NewServer(ServerConfig{Port: 0}, http.NewServeMux(), nil)

	// Grab a concrete port by binding the first server.
	done := make(chan error, 1)
	go func() { done <- first.Start() }()
	time.Sleep(50 * time.Millisecond)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = first.Stop(ctx)
		<-done
	}()

	// Addr is ":0" in config; a second bind on an occupied fixed port is the
	// realistic failure, so exercise the error path with an invalid address
	// instead of racing for a kernel-assigned one.
	bad := NewServer(ServerConfig{Port: -1}, http.NewServeMux(), nil)
	err := bad.Start()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "listen"),
		"error should come from the listener, got: %v", err)
}
