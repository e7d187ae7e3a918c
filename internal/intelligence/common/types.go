// Package common holds the shared contracts of the intelligence layer:
// the ModelBackend interface every tagger backend implements, the request
// and response types that cross it, and the telemetry and batching
// utilities built on top of them.
package common

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// Backend types
// ---------------------------------------------------------------------------

// BackendType identifies a tagger backend implementation.
type BackendType string

const (
	BackendTypeHTTP BackendType = "http"
	BackendTypeONNX BackendType = "onnx"
	BackendTypeMock BackendType = "mock"
	BackendTypeNone BackendType = "none"
)

// Variant names the sub-word aggregation strategy a backend applies when it
// pools transformer sub-tokens back into word-level scores. The names follow
// the convention of the upstream inference services.
const (
	VariantSimple  = "simple"
	VariantMax     = "max"
	VariantAverage = "average"
	VariantFirst   = "first"
)

// KnownVariants lists every aggregation strategy a backend may be asked for.
var KnownVariants = []string{VariantSimple, VariantMax, VariantAverage, VariantFirst}

// IsKnownVariant reports whether name is a recognised aggregation strategy.
func IsKnownVariant(name string) bool {
	for _, v := range KnownVariants {
		if v == name {
			return true
		}
	}
	return false
}

// InputFormat describes how PredictRequest.InputData is encoded.
type InputFormat string

const (
	FormatJSON InputFormat = "json"
)

// ---------------------------------------------------------------------------
// Request / response
// ---------------------------------------------------------------------------

// PredictRequest asks a backend for per-token label probabilities.
// InputData carries the token list encoded per InputFormat; use
// EncodeTokenList to build it.
type PredictRequest struct {
	ModelName   string            `json:"model_name"`
	Variant     string            `json:"variant,omitempty"`
	InputData   []byte            `json:"input_data"`
	InputFormat InputFormat       `json:"input_format"`
	OutputNames []string          `json:"output_names,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request is well formed before it reaches a backend.
func (r *PredictRequest) Validate() error {
	if r == nil {
		return apperrors.New(apperrors.CodeInvalidParam, "predict request is nil")
	}
	if r.ModelName == "" {
		return apperrors.New(apperrors.CodeInvalidParam, "model name is required")
	}
	if len(r.InputData) == 0 {
		return apperrors.New(apperrors.CodeInvalidParam, "input data is empty")
	}
	if r.Variant != "" && !IsKnownVariant(r.Variant) {
		return apperrors.New(apperrors.ErrCodeStrategyUnknown,
			fmt.Sprintf("unknown variant %q", r.Variant))
	}
	return nil
}

// PredictResponse carries backend outputs keyed by tensor name. The emission
// matrix for token tagging lives under OutputEmission as either a decoded
// [][]float64 (in-process backends) or raw JSON values (remote backends);
// DecodeFloat64Matrix accepts both.
type PredictResponse struct {
	ModelName       string                 `json:"model_name"`
	ModelVersion    string                 `json:"model_version,omitempty"`
	Variant         string                 `json:"variant,omitempty"`
	Outputs         map[string]interface{} `json:"outputs"`
	InferenceTimeMs float64                `json:"inference_time_ms"`
	Metadata        map[string]string      `json:"metadata,omitempty"`
}

// OutputEmission is the conventional output name for the per-token label
// probability matrix, one row per input token.
const OutputEmission = "emission"

// ---------------------------------------------------------------------------
// ModelBackend
// ---------------------------------------------------------------------------

// ModelBackend is implemented by every tagger serving path. Predict must be
// safe for concurrent use; Close releases any native or network resources and
// further Predict calls after Close return an error.
type ModelBackend interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	Healthy(ctx context.Context) error
	Close() error
}

// ---------------------------------------------------------------------------
// Payload codecs
// ---------------------------------------------------------------------------

// EncodeTokenList serialises a token list for PredictRequest.InputData.
func EncodeTokenList(tokens []string) []byte {
	data, err := json.Marshal(tokens)
	if err != nil {
		// A []string cannot fail to marshal; keep the signature simple.
		return []byte("[]")
	}
	return data
}

// DecodeTokenList parses a token list from PredictRequest.InputData.
func DecodeTokenList(data []byte) ([]string, error) {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	return tokens, nil
}

// EncodeFloat64Matrix serialises an emission matrix for transport.
func EncodeFloat64Matrix(matrix [][]float64) ([]byte, error) {
	data, err := json.Marshal(matrix)
	if err != nil {
		return nil, fmt.Errorf("encode matrix: %w", err)
	}
	return data, nil
}

// DecodeFloat64Matrix converts a backend output into a [][]float64. It
// accepts an already-typed matrix, raw JSON bytes, or the []interface{}
// shape produced by encoding/json.
func DecodeFloat64Matrix(input interface{}) ([][]float64, error) {
	if input == nil {
		return nil, fmt.Errorf("matrix input is nil")
	}

	if mat, ok := input.([][]float64); ok {
		return mat, nil
	}

	if b, ok := input.([]byte); ok {
		var raw interface{}
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal matrix json: %w", err)
		}
		return DecodeFloat64Matrix(raw)
	}

	slice, ok := input.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected matrix, got %T", input)
	}

	result := make([][]float64, len(slice))
	for i, rowRaw := range slice {
		rowSlice, ok := rowRaw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("matrix row %d is %T, not a slice", i, rowRaw)
		}
		row := make([]float64, len(rowSlice))
		for j, valRaw := range rowSlice {
			f, err := toFloat64(valRaw)
			if err != nil {
				return nil, fmt.Errorf("matrix row %d col %d: %w", i, j, err)
			}
			row[j] = f
		}
		result[i] = row
	}

	return result, nil
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
