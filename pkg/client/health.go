package client

import "context"

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

// Liveness reports whether the server process is up.
func (c *Client) Liveness(ctx context.Context) (*LivenessResponse, error) {
	var resp LivenessResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Readiness reports whether the server and its backends can take traffic.
// A not-ready server responds 503, which is surfaced as an *APIError after
// the retry budget is exhausted.
func (c *Client) Readiness(ctx context.Context) (*ReadinessResponse, error) {
	var resp ReadinessResponse
	if err := c.get(ctx, "/readyz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
