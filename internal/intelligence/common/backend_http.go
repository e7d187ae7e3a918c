package common

import (
	"bytes"
	"context"
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// HTTPBackend
// ---------------------------------------------------------------------------

// HTTPBackendConfig configures a remote tagger serving endpoint.
type HTTPBackendConfig struct {
	// Endpoint is the full predict URL, e.g. http://tagger:8501/v1/predict.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIKey, when set, is sent as a bearer token.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout bounds each individual request attempt.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries on 429, 5xx and network errors.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBase is the base delay for exponential back-off between retries.
	RetryBase time.Duration `json:"retry_base" yaml:"retry_base"`
}

const (
	defaultHTTPTimeout    = 10 * time.Second
	defaultHTTPMaxRetries = 2
	defaultHTTPRetryBase  = 250 * time.Millisecond

	errorBodyLimit = 1024
)

// httpBackend implements ModelBackend against a remote serving endpoint that
// speaks the JSON predict protocol.
type httpBackend struct {
	cfg       HTTPBackendConfig
	client    *http.Client
	healthURL string
	logger    logging.Logger
}

// NewHTTPBackend creates a ModelBackend backed by a remote serving endpoint.
// The health URL is derived from the endpoint host with path /healthz.
func NewHTTPBackend(cfg HTTPBackendConfig, logger logging.Logger) (ModelBackend, error) {
	if cfg.Endpoint == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "http backend endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid endpoint %q", cfg.Endpoint))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("unsupported endpoint scheme %q", u.Scheme))
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultHTTPMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultHTTPRetryBase
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	health := *u
	health.Path = "/healthz"
	health.RawQuery = ""
	health.Fragment = ""

	return &httpBackend{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		healthURL: health.String(),
		logger:    logger.Named("http-backend"),
	}, nil
}

// ---------------------------------------------------------------------------
// Wire format
// ---------------------------------------------------------------------------

type httpPredictRequest struct {
	ModelName string          `json:"model_name"`
	Variant   string          `json:"variant,omitempty"`
	Tokens    json.RawMessage `json:"tokens"`
	Outputs   []string        `json:"outputs,omitempty"`
}

type httpPredictResponse struct {
	ModelName       string                     `json:"model_name"`
	ModelVersion    string                     `json:"model_version"`
	Variant         string                     `json:"variant"`
	Outputs         map[string]json.RawMessage `json:"outputs"`
	InferenceTimeMs float64                    `json:"inference_time_ms"`
	Error           string                     `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// ModelBackend implementation
// ---------------------------------------------------------------------------

func (b *httpBackend) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	body, err := json.Marshal(&httpPredictRequest{
		ModelName: req.ModelName,
		Variant:   req.Variant,
		Tokens:    json.RawMessage(req.InputData),
		Outputs:   req.OutputNames,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode predict request")
	}

	resp, err := b.doWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, b.statusError(resp)
	}

	var wire httpPredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendParseError, "decode predict response")
	}
	if wire.Error != "" {
		return nil, apperrors.New(apperrors.ErrCodeInferenceFailed, wire.Error)
	}

	outputs := make(map[string]interface{}, len(wire.Outputs))
	for name, raw := range wire.Outputs {
		outputs[name] = []byte(raw)
	}

	inferenceMs := wire.InferenceTimeMs
	if inferenceMs <= 0 {
		inferenceMs = msSince(start)
	}

	return &PredictResponse{
		ModelName:       wire.ModelName,
		ModelVersion:    wire.ModelVersion,
		Variant:         wire.Variant,
		Outputs:         outputs,
		InferenceTimeMs: inferenceMs,
	}, nil
}

// doWithRetry posts body to the endpoint, retrying 429, 5xx and transport
// errors with exponential back-off. Responses that will not be returned are
// drained and closed before the next attempt.
func (b *httpBackend) doWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * b.cfg.RetryBase
			select {
			case <-ctx.Done():
				return nil, b.transportError(ctx.Err())
			case <-time.After(backoff):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build predict request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		if b.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
		}

		resp, err := b.client.Do(httpReq)
		if err != nil {
			lastErr = err
			b.logger.Warn("predict request failed",
				logging.Int("attempt", attempt+1),
				logging.Err(err),
			)
			continue
		}

		if !retriableStatus(resp.StatusCode) || attempt == b.cfg.MaxRetries {
			return resp, nil
		}

		b.logger.Warn("predict returned retriable status",
			logging.Int("attempt", attempt+1),
			logging.Int("status", resp.StatusCode),
		)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil, b.transportError(lastErr)
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// statusError maps a non-200 response to an AppError, consuming a bounded
// prefix of the body for the message.
func (b *httpBackend) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	msg := fmt.Sprintf("predict returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.New(apperrors.ErrCodeBackendAuthFailed, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return apperrors.New(apperrors.ErrCodeBackendRateLimited, msg)
	case resp.StatusCode >= 500:
		return apperrors.New(apperrors.ErrCodeBackendUnavailable, msg)
	default:
		return apperrors.New(apperrors.ErrCodeInferenceFailed, msg)
	}
}

func (b *httpBackend) transportError(err error) error {
	if err == nil {
		err = stdliberrors.New("predict request failed")
	}
	if stdliberrors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendTimeout, "predict request timed out")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "predict request failed")
}

// Healthy implements ModelBackend by probing the endpoint's /healthz.
func (b *httpBackend) Healthy(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.healthURL, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build health request")
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "health probe failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.ErrCodeBackendUnavailable,
			fmt.Sprintf("health probe returned status %d", resp.StatusCode))
	}
	return nil
}

// Close implements ModelBackend.
func (b *httpBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

var _ ModelBackend = (*httpBackend)(nil)
