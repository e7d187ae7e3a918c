package common

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// BackendRegistry
// ---------------------------------------------------------------------------

// BackendRegistry tracks the live tagger backends by name. The HTTP readiness
// probe uses HealthCheck to aggregate their state, and Close tears all of
// them down during shutdown.
type BackendRegistry interface {
	// Register adds a backend under a unique name.
	Register(name string, backend ModelBackend) error
	// Get returns the backend registered under name.
	Get(name string) (ModelBackend, error)
	// List returns the registered names in sorted order.
	List() []string
	// HealthCheck probes every backend and returns a name -> error map;
	// a nil map value means the backend is healthy.
	HealthCheck(ctx context.Context) map[string]error
	// Close shuts down every backend. The registry is unusable afterwards.
	Close() error
}

// healthCheckTimeout bounds a single backend probe so one hung backend
// cannot stall the readiness endpoint.
const healthCheckTimeout = 5 * time.Second

type backendRegistry struct {
	mu       sync.RWMutex
	backends map[string]ModelBackend
	closed   bool
}

// NewBackendRegistry creates an empty registry.
func NewBackendRegistry() BackendRegistry {
	return &backendRegistry{
		backends: make(map[string]ModelBackend),
	}
}

func (r *backendRegistry) Register(name string, backend ModelBackend) error {
	if name == "" {
		return apperrors.InvalidParam("backend name is required")
	}
	if backend == nil {
		return apperrors.InvalidParam(fmt.Sprintf("backend %q is nil", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return apperrors.InvalidState("backend registry is closed")
	}
	if _, exists := r.backends[name]; exists {
		return apperrors.Conflict(fmt.Sprintf("backend %q already registered", name))
	}
	r.backends[name] = backend
	return nil
}

func (r *backendRegistry) Get(name string) (ModelBackend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, apperrors.InvalidState("backend registry is closed")
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeModelNotAvailable,
			fmt.Sprintf("backend %q not registered", name))
	}
	return backend, nil
}

func (r *backendRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *backendRegistry) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	snapshot := make(map[string]ModelBackend, len(r.backends))
	for name, backend := range r.backends {
		snapshot[name] = backend
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for name, backend := range snapshot {
		wg.Add(1)
		go func(name string, backend ModelBackend) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			err := backend.Healthy(probeCtx)

			resultMu.Lock()
			results[name] = err
			resultMu.Unlock()
		}(name, backend)
	}
	wg.Wait()

	return results
}

func (r *backendRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	failed := 0
	for name, backend := range r.backends {
		if err := backend.Close(); err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("close backend %q: %w", name, err)
			}
		}
	}
	r.backends = nil

	if firstErr != nil {
		if failed > 1 {
			return fmt.Errorf("%d backends failed to close; first: %w", failed, firstErr)
		}
		return firstErr
	}
	return nil
}

var _ BackendRegistry = (*backendRegistry)(nil)
