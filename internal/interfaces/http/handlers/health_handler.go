package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
)

// HealthChecker probes one dependency of the service.
type HealthChecker interface {
	// Name identifies the component in the readiness response.
	Name() string
	// Check returns nil when the component is usable.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the HealthChecker interface.
type CheckerFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.ComponentName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// checkTimeout bounds a single component probe.
const checkTimeout = 5 * time.Second

// LivenessResponse is the body of GET /healthz.
type LivenessResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ComponentCheck is one component's state in the readiness response.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadinessResponse is the body of GET /readyz.
type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	checkers  []HealthChecker
	logger    logging.Logger
	metrics   *prometheus.AppMetrics
	version   string
	startTime time.Time
}

// NewHealthHandler creates the handler. Checkers may be empty, in which case
// readiness reduces to liveness.
func NewHealthHandler(checkers []HealthChecker, logger logging.Logger, metrics *prometheus.AppMetrics, version string) *HealthHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &HealthHandler{
		checkers:  checkers,
		logger:    logger,
		metrics:   metrics,
		version:   version,
		startTime: time.Now(),
	}
}

// Liveness handles GET /healthz. It answers 200 as long as the process is
// serving requests; dependency state is the readiness endpoint's concern.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Readiness handles GET /readyz. All checkers run concurrently; any failure
// turns the response into a 503 so load balancers stop routing here.
func (h *HealthHandler) Readiness(c *gin.Context) {
	components := h.checkAll(c.Request.Context())

	ready := true
	for _, check := range components {
		if check.Status != "up" {
			ready = false
			break
		}
	}

	resp := ReadinessResponse{
		Status:     "ready",
		Components: components,
	}
	status := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

func (h *HealthHandler) checkAll(ctx context.Context) map[string]ComponentCheck {
	if len(h.checkers) == 0 {
		return nil
	}

	results := make(map[string]ComponentCheck, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(checker HealthChecker) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := checker.Check(probeCtx)
			latency := time.Since(start)

			check := ComponentCheck{
				Status:  "up",
				Latency: latency.Round(time.Millisecond).String(),
			}
			up := 1.0
			if err != nil {
				check.Status = "down"
				check.Error = err.Error()
				up = 0
				h.logger.Warn("component check failed",
					logging.String("component", checker.Name()),
					logging.Duration("latency", latency),
					logging.Err(err))
			}
			if h.metrics != nil {
				h.metrics.HealthCheckStatus.WithLabelValues(checker.Name()).Set(up)
			}

			mu.Lock()
			results[checker.Name()] = check
			mu.Unlock()
		}(checker)
	}
	wg.Wait()

	return results
}
