package client

import (
	"context"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// Entity is one extracted clinical entity. Start and End are rune offsets
// into the analyzed text, end exclusive.
type Entity struct {
	Text            string   `json:"text"`
	Label           string   `json:"label"`
	Start           int      `json:"start"`
	End             int      `json:"end"`
	Confidence      float64  `json:"confidence"`
	Source          string   `json:"source"`
	ContextualBoost float64  `json:"contextual_boost,omitempty"`
	MergeProvenance []string `json:"merge_provenance,omitempty"`
}

// AnalysisResult is the server's response for one analyzed text.
type AnalysisResult struct {
	Text                string         `json:"text"`
	Entities            []Entity       `json:"entities"`
	EntityCounts        map[string]int `json:"entity_counts"`
	SourceDistribution  map[string]int `json:"source_distribution"`
	TotalEntities       int            `json:"total_entities"`
	AverageConfidence   float64        `json:"average_confidence"`
	ConfidenceStd       float64        `json:"confidence_std"`
	MinConfidence       float64        `json:"min_confidence"`
	MaxConfidence       float64        `json:"max_confidence"`
	AverageBoost        float64        `json:"average_boost"`
	ConfidenceThreshold float64        `json:"confidence_threshold"`
	EnhancementApplied  bool           `json:"enhancement_applied"`
	ProcessingTimeMs    int64          `json:"processing_time_ms"`
}

// AnalyzeRequest is the body of POST /api/v1/analyze. The optional fields
// override the server's configuration for this request only.
type AnalyzeRequest struct {
	Text                string   `json:"text"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	Enhancement         *bool    `json:"enhancement,omitempty"`
}

// BatchAnalyzeRequest is the body of POST /api/v1/analyze/batch.
type BatchAnalyzeRequest struct {
	Texts []string `json:"texts"`
}

// BatchAnalyzeResponse aggregates per-text results with batch totals.
type BatchAnalyzeResponse struct {
	Results          []*AnalysisResult `json:"results"`
	TotalTexts       int               `json:"total_texts"`
	TotalEntities    int               `json:"total_entities"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// Analyze extracts clinical entities from one Italian text. Empty or
// whitespace-only text is valid and yields a result with zero entities,
// mirroring the server contract.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := c.post(ctx, "/api/v1/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeBatch extracts entities from several texts in one round trip.
func (c *Client) AnalyzeBatch(ctx context.Context, texts []string) (*BatchAnalyzeResponse, error) {
	if len(texts) == 0 {
		return nil, apperrors.InvalidParam("client: at least one text is required")
	}
	var resp BatchAnalyzeResponse
	if err := c.post(ctx, "/api/v1/analyze/batch", BatchAnalyzeRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Demo runs the server's canned demonstration sentence.
func (c *Client) Demo(ctx context.Context) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := c.get(ctx, "/api/v1/demo", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
