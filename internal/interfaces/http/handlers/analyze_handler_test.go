package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlex/medfuse/internal/intelligence/medner"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubService scripts the pipeline behind the handler.
type stubService struct {
	analyzeFn func(ctx context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error)
	batchFn   func(ctx context.Context, texts []string) ([]*medner.AnalysisResult, error)
}

func (s *stubService) AnalyzeWithOptions(ctx context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error) {
	if s.analyzeFn == nil {
		return &medner.AnalysisResult{Text: text}, nil
	}
	return s.analyzeFn(ctx, text, opts)
}

func (s *stubService) AnalyzeBatch(ctx context.Context, texts []string) ([]*medner.AnalysisResult, error) {
	if s.batchFn == nil {
		results := make([]*medner.AnalysisResult, len(texts))
		for i, text := range texts {
			results[i] = &medner.AnalysisResult{Text: text}
		}
		return results, nil
	}
	return s.batchFn(ctx, texts)
}

func newAnalyzeEngine(service AnalysisService, mutate func(*AnalyzeHandlerConfig)) *gin.Engine {
	cfg := AnalyzeHandlerConfig{Service: service}
	if mutate != nil {
		mutate(&cfg)
	}
	handler := NewAnalyzeHandler(cfg)

	engine := gin.New()
	engine.POST("/api/v1/analyze", handler.Analyze)
	engine.POST("/api/v1/analyze/batch", handler.AnalyzeBatch)
	engine.GET("/api/v1/demo", handler.Demo)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAnalyze_ReturnsResult(t *testing.T) {
	var gotText string
	var gotOpts *medner.Options
	service := &stubService{
		analyzeFn: func(_ context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error) {
			gotText = text
			gotOpts = opts
			return &medner.AnalysisResult{Text: text, TotalEntities: 2}, nil
		},
	}
	engine := newAnalyzeEngine(service, nil)

	rec := postJSON(engine, "/api/v1/analyze",
		`{"text":"La febbre persiste.","confidence_threshold":0.4,"enhancement":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "La febbre persiste.", gotText)
	require.NotNil(t, gotOpts)
	require.NotNil(t, gotOpts.ConfidenceThreshold)
	assert.InDelta(t, 0.4, *gotOpts.ConfidenceThreshold, 1e-9)
	require.NotNil(t, gotOpts.EnableContextualBoost)
	assert.False(t, *gotOpts.EnableContextualBoost)

	var result medner.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalEntities)
}

func TestAnalyze_OmittedOptionsStayNil(t *testing.T) {
	var gotOpts *medner.Options
	service := &stubService{
		analyzeFn: func(_ context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error) {
			gotOpts = opts
			return &medner.AnalysisResult{Text: text}, nil
		},
	}
	engine := newAnalyzeEngine(service, nil)

	rec := postJSON(engine, "/api/v1/analyze", `{"text":"Nausea."}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotOpts)
	assert.Nil(t, gotOpts.ConfidenceThreshold)
	assert.Nil(t, gotOpts.EnableContextualBoost)
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, nil)

	rec := postJSON(engine, "/api/v1/analyze", `{"text": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeBadRequest), decodeError(t, rec).Code)
}

func TestAnalyze_TextTooLong(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, func(cfg *AnalyzeHandlerConfig) {
		cfg.MaxTextChars = 10
	})

	rec := postJSON(engine, "/api/v1/analyze", `{"text":"`+strings.Repeat("a", 11)+`"}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeTextTooLong), resp.Code)
	assert.Contains(t, resp.Detail, "limit is 10")
}

func TestAnalyze_LimitCountsRunesNotBytes(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, func(cfg *AnalyzeHandlerConfig) {
		cfg.MaxTextChars = 10
	})

	// 10 accented characters are more than 10 bytes but within the limit.
	rec := postJSON(engine, "/api/v1/analyze", `{"text":"`+strings.Repeat("à", 10)+`"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyze_ServiceErrorsKeepTheirStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "model unavailable",
			err:        apperrors.New(apperrors.ErrCodeModelNotAvailable, "tagger model not available"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "MDL_001",
		},
		{
			name:       "threshold invalid",
			err:        apperrors.New(apperrors.ErrCodeThresholdInvalid, "confidence threshold out of range"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "CFG_003",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubService{
				analyzeFn: func(context.Context, string, *medner.Options) (*medner.AnalysisResult, error) {
					return nil, tc.err
				},
			}
			engine := newAnalyzeEngine(service, nil)

			rec := postJSON(engine, "/api/v1/analyze", `{"text":"x"}`)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestAnalyze_UnknownErrorsAreMasked(t *testing.T) {
	service := &stubService{
		analyzeFn: func(context.Context, string, *medner.Options) (*medner.AnalysisResult, error) {
			return nil, errors.New("pq: connection refused")
		},
	}
	engine := newAnalyzeEngine(service, nil)

	rec := postJSON(engine, "/api/v1/analyze", `{"text":"x"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeInternal), resp.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAnalyzeBatch_ReturnsTotals(t *testing.T) {
	service := &stubService{
		batchFn: func(_ context.Context, texts []string) ([]*medner.AnalysisResult, error) {
			results := make([]*medner.AnalysisResult, len(texts))
			for i, text := range texts {
				results[i] = &medner.AnalysisResult{Text: text, TotalEntities: i + 1}
			}
			return results, nil
		},
	}
	engine := newAnalyzeEngine(service, nil)

	rec := postJSON(engine, "/api/v1/analyze/batch", `{"texts":["uno","due"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp BatchAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalTexts)
	assert.Equal(t, 3, resp.TotalEntities)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "uno", resp.Results[0].Text)
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, nil)

	rec := postJSON(engine, "/api/v1/analyze/batch", `{"texts":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeBatchEmpty), decodeError(t, rec).Code)
}

func TestAnalyzeBatch_TooLarge(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, func(cfg *AnalyzeHandlerConfig) {
		cfg.MaxBatchTexts = 2
	})

	rec := postJSON(engine, "/api/v1/analyze/batch", `{"texts":["a","b","c"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, string(apperrors.ErrCodeBatchTooLarge), resp.Code)
	assert.Contains(t, resp.Detail, "limit is 2")
}

func TestAnalyzeBatch_OversizedTextRejected(t *testing.T) {
	engine := newAnalyzeEngine(&stubService{}, func(cfg *AnalyzeHandlerConfig) {
		cfg.MaxTextChars = 5
	})

	rec := postJSON(engine, "/api/v1/analyze/batch", `{"texts":["ok","troppo lungo"]}`)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, string(apperrors.ErrCodeTextTooLong), decodeError(t, rec).Code)
}

func TestDemo_AnalyzesCannedSentence(t *testing.T) {
	var gotText string
	service := &stubService{
		analyzeFn: func(_ context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error) {
			gotText = text
			return &medner.AnalysisResult{Text: text, TotalEntities: 4}, nil
		},
	}
	engine := newAnalyzeEngine(service, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/demo", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gotText, "paracetamolo")
	assert.Contains(t, gotText, "esame del sangue")
}
