package common

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

func newTestHTTPBackend(t *testing.T, handler http.Handler, mutate func(*HTTPBackendConfig)) ModelBackend {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := HTTPBackendConfig{
		Endpoint:   srv.URL + "/v1/predict",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryBase:  time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	b, err := NewHTTPBackend(cfg, nil)
	require.NoError(t, err)
	return b
}

func emissionResponse(matrix [][]float64) httpPredictResponse {
	raw, _ := json.Marshal(matrix)
	return httpPredictResponse{
		ModelName:       "medner-it",
		ModelVersion:    "remote-1.0",
		Variant:         VariantSimple,
		Outputs:         map[string]json.RawMessage{OutputEmission: raw},
		InferenceTimeMs: 3.5,
	}
}

func TestHTTPBackend_PredictSuccess(t *testing.T) {
	var gotWire httpPredictRequest
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/predict", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotWire))
		json.NewEncoder(w).Encode(emissionResponse([][]float64{{0.1, 0.9, 0, 0, 0, 0, 0}}))
	})

	b := newTestHTTPBackend(t, handler, nil)
	resp, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		Variant:   VariantSimple,
		InputData: EncodeTokenList([]string{"febbre"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "medner-it", gotWire.ModelName)
	assert.Equal(t, VariantSimple, gotWire.Variant)

	assert.Equal(t, "remote-1.0", resp.ModelVersion)
	assert.InDelta(t, 3.5, resp.InferenceTimeMs, 0.001)

	matrix, err := DecodeFloat64Matrix(resp.Outputs[OutputEmission])
	require.NoError(t, err)
	require.Len(t, matrix, 1)
	assert.InDelta(t, 0.9, matrix[0][1], 0.001)
}

func TestHTTPBackend_SendsBearerToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(emissionResponse(nil))
	})

	b := newTestHTTPBackend(t, handler, func(cfg *HTTPBackendConfig) {
		cfg.APIKey = "sekrit"
	})
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	assert.NoError(t, err)
}

func TestHTTPBackend_RetriesOn429(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(emissionResponse([][]float64{{1, 0, 0, 0, 0, 0, 0}}))
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPBackend_RateLimitExhausted(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBackendRateLimited, apperrors.GetCode(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls)) // 1 try + 2 retries
}

func TestHTTPBackend_ServerErrorRetriesThenFails(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBackendUnavailable, apperrors.GetCode(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPBackend_AuthFailureNotRetried(t *testing.T) {
	var calls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBackendAuthFailed, apperrors.GetCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPBackend_RemoteErrorField(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(httpPredictResponse{Error: "model exploded"})
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInferenceFailed, apperrors.GetCode(err))
}

func TestHTTPBackend_MalformedResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	b := newTestHTTPBackend(t, handler, nil)
	_, err := b.Predict(context.Background(), &PredictRequest{
		ModelName: "medner-it",
		InputData: EncodeTokenList([]string{"x"}),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBackendParseError, apperrors.GetCode(err))
}

func TestHTTPBackend_Healthy(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	b := newTestHTTPBackend(t, mux, nil)
	assert.NoError(t, b.Healthy(context.Background()))
}

func TestHTTPBackend_UnhealthyStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	b := newTestHTTPBackend(t, mux, nil)
	err := b.Healthy(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeBackendUnavailable, apperrors.GetCode(err))
}

func TestNewHTTPBackend_ConfigValidation(t *testing.T) {
	_, err := NewHTTPBackend(HTTPBackendConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))

	_, err = NewHTTPBackend(HTTPBackendConfig{Endpoint: "ftp://tagger/predict"}, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
}
