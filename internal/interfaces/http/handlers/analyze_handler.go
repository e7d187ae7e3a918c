package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlex/medfuse/internal/intelligence/medner"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// AnalysisService is the slice of the fusion pipeline the HTTP layer depends on.
type AnalysisService interface {
	AnalyzeWithOptions(ctx context.Context, text string, opts *medner.Options) (*medner.AnalysisResult, error)
	AnalyzeBatch(ctx context.Context, texts []string) ([]*medner.AnalysisResult, error)
}

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
	// ConfidenceThreshold overrides the configured threshold for this request.
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	// Enhancement toggles contextual boosting for this request.
	Enhancement *bool `json:"enhancement,omitempty"`
}

// BatchAnalyzeRequest is the body of POST /api/v1/analyze/batch.
type BatchAnalyzeRequest struct {
	Texts []string `json:"texts"`
}

// BatchAnalyzeResponse aggregates per-text results with batch totals.
type BatchAnalyzeResponse struct {
	Results          []*medner.AnalysisResult `json:"results"`
	TotalTexts       int                      `json:"total_texts"`
	TotalEntities    int                      `json:"total_entities"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
}

// demoText is the canned sentence served by GET /api/v1/demo. It touches all
// three entity categories without requiring a request body.
const demoText = "Il paziente presenta forti mal di testa e nausea persistente. " +
	"È stato prescritto paracetamolo per la febbre e richiesto un esame del sangue."

// AnalyzeHandler serves the text analysis endpoints.
type AnalyzeHandler struct {
	service       AnalysisService
	maxTextChars  int
	maxBatchTexts int
	logger        logging.Logger
	metrics       *prometheus.AppMetrics
}

// AnalyzeHandlerConfig wires the analyze handler.
type AnalyzeHandlerConfig struct {
	Service AnalysisService
	// MaxTextChars caps a single text, in codepoints.
	MaxTextChars int
	// MaxBatchTexts caps the number of texts per batch request.
	MaxBatchTexts int
	Logger        logging.Logger
	Metrics       *prometheus.AppMetrics
}

// NewAnalyzeHandler creates the handler. Zero limits fall back to the
// defaults used across the service.
func NewAnalyzeHandler(cfg AnalyzeHandlerConfig) *AnalyzeHandler {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 10000
	}
	if cfg.MaxBatchTexts <= 0 {
		cfg.MaxBatchTexts = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnalyzeHandler{
		service:       cfg.Service,
		maxTextChars:  cfg.MaxTextChars,
		maxBatchTexts: cfg.MaxBatchTexts,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// Analyze handles POST /api/v1/analyze.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.checkTextLength(req.Text); err != nil {
		respondError(c, err)
		return
	}

	opts := &medner.Options{
		ConfidenceThreshold:   req.ConfidenceThreshold,
		EnableContextualBoost: req.Enhancement,
	}

	start := time.Now()
	result, err := h.service.AnalyzeWithOptions(c.Request.Context(), req.Text, opts)
	if err != nil {
		prometheus.RecordAnalyze(h.metrics, false, time.Since(start), 0, 0)
		h.logger.Warn("analysis failed",
			logging.Int("text_chars", utf8.RuneCountInString(req.Text)),
			logging.Err(err))
		respondError(c, err)
		return
	}

	prometheus.RecordAnalyze(h.metrics, true, time.Since(start),
		utf8.RuneCountInString(req.Text), result.TotalEntities)
	c.JSON(http.StatusOK, result)
}

// AnalyzeBatch handles POST /api/v1/analyze/batch.
func (h *AnalyzeHandler) AnalyzeBatch(c *gin.Context) {
	var req BatchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if len(req.Texts) == 0 {
		respondError(c, apperrors.New(apperrors.ErrCodeBatchEmpty,
			apperrors.DefaultMessageForCode(apperrors.ErrCodeBatchEmpty)))
		return
	}
	if len(req.Texts) > h.maxBatchTexts {
		respondError(c, apperrors.New(apperrors.ErrCodeBatchTooLarge,
			apperrors.DefaultMessageForCode(apperrors.ErrCodeBatchTooLarge)).
			WithDetail(batchSizeDetail(len(req.Texts), h.maxBatchTexts)))
		return
	}
	for _, text := range req.Texts {
		if err := h.checkTextLength(text); err != nil {
			respondError(c, err)
			return
		}
	}

	start := time.Now()
	results, err := h.service.AnalyzeBatch(c.Request.Context(), req.Texts)
	if err != nil {
		prometheus.RecordBatch(h.metrics, false, len(req.Texts), time.Since(start))
		h.logger.Warn("batch analysis failed",
			logging.Int("texts", len(req.Texts)),
			logging.Err(err))
		respondError(c, err)
		return
	}
	elapsed := time.Since(start)

	total := 0
	for _, r := range results {
		total += r.TotalEntities
	}

	prometheus.RecordBatch(h.metrics, true, len(req.Texts), elapsed)
	c.JSON(http.StatusOK, BatchAnalyzeResponse{
		Results:          results,
		TotalTexts:       len(results),
		TotalEntities:    total,
		ProcessingTimeMs: elapsed.Milliseconds(),
	})
}

// Demo handles GET /api/v1/demo: it analyzes a canned Italian clinical
// sentence so the service can be exercised without composing a request body.
func (h *AnalyzeHandler) Demo(c *gin.Context) {
	start := time.Now()
	result, err := h.service.AnalyzeWithOptions(c.Request.Context(), demoText, nil)
	if err != nil {
		prometheus.RecordAnalyze(h.metrics, false, time.Since(start), 0, 0)
		respondError(c, err)
		return
	}

	prometheus.RecordAnalyze(h.metrics, true, time.Since(start),
		utf8.RuneCountInString(demoText), result.TotalEntities)
	c.JSON(http.StatusOK, result)
}

func (h *AnalyzeHandler) checkTextLength(text string) error {
	chars := utf8.RuneCountInString(text)
	if chars > h.maxTextChars {
		return apperrors.New(apperrors.ErrCodeTextTooLong,
			apperrors.DefaultMessageForCode(apperrors.ErrCodeTextTooLong)).
			WithDetail(textLengthDetail(chars, h.maxTextChars))
	}
	return nil
}

func textLengthDetail(got, limit int) string {
	return fmt.Sprintf("text is %d characters, limit is %d", got, limit)
}

func batchSizeDetail(got, limit int) string {
	return fmt.Sprintf("batch has %d texts, limit is %d", got, limit)
}
