package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_013"
	ErrCodeNotImplemented     ErrorCode = "COMMON_014"
)

// Short aliases used throughout the codebase.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
)

// Text Input Error Codes
const (
	ErrCodeTextTooLong    ErrorCode = "TXT_001"
	ErrCodeTextNotUTF8    ErrorCode = "TXT_002"
	ErrCodeSpanOutOfRange ErrorCode = "TXT_003"
	ErrCodeBatchEmpty     ErrorCode = "TXT_004"
	ErrCodeBatchTooLarge  ErrorCode = "TXT_005"
)

// Lexical Resource Error Codes (patterns, dictionaries, root families, boost tables)
const (
	ErrCodePatternInvalid     ErrorCode = "LEX_001"
	ErrCodeLexiconNotFound    ErrorCode = "LEX_002"
	ErrCodeLexiconParseFailed ErrorCode = "LEX_003"
	ErrCodeLexiconEmpty       ErrorCode = "LEX_004"
	ErrCodeRootFamilyInvalid  ErrorCode = "LEX_005"
	ErrCodeLabelUnknown       ErrorCode = "LEX_006"
	ErrCodeSourceUnknown      ErrorCode = "LEX_007"
	ErrCodeBoostTableInvalid  ErrorCode = "LEX_008"
)

// Model / Tagger Error Codes
const (
	ErrCodeModelNotAvailable     ErrorCode = "MDL_001"
	ErrCodeModelLoadFailed       ErrorCode = "MDL_002"
	ErrCodeModelNotReady         ErrorCode = "MDL_003"
	ErrCodeInferenceFailed       ErrorCode = "MDL_004"
	ErrCodeTokenizerLoadFailed   ErrorCode = "MDL_005"
	ErrCodeTokenizerEncodeFailed ErrorCode = "MDL_006"
	ErrCodeEnsembleEmpty         ErrorCode = "MDL_007"
	ErrCodeStrategyUnknown       ErrorCode = "MDL_008"
)

// Serving Backend Error Codes
const (
	ErrCodeBackendUnavailable ErrorCode = "SRV_001"
	ErrCodeBackendTimeout     ErrorCode = "SRV_002"
	ErrCodeBackendRateLimited ErrorCode = "SRV_003"
	ErrCodeBackendAuthFailed  ErrorCode = "SRV_004"
	ErrCodeBackendParseError  ErrorCode = "SRV_005"
)

// Configuration Error Codes
const (
	ErrCodeConfigNotFound   ErrorCode = "CFG_001"
	ErrCodeConfigInvalid    ErrorCode = "CFG_002"
	ErrCodeThresholdInvalid ErrorCode = "CFG_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeTextTooLong:    http.StatusRequestEntityTooLarge,
	ErrCodeTextNotUTF8:    http.StatusBadRequest,
	ErrCodeSpanOutOfRange: http.StatusInternalServerError,
	ErrCodeBatchEmpty:     http.StatusBadRequest,
	ErrCodeBatchTooLarge:  http.StatusBadRequest,

	ErrCodePatternInvalid:     http.StatusInternalServerError,
	ErrCodeLexiconNotFound:    http.StatusInternalServerError,
	ErrCodeLexiconParseFailed: http.StatusInternalServerError,
	ErrCodeLexiconEmpty:       http.StatusInternalServerError,
	ErrCodeRootFamilyInvalid:  http.StatusInternalServerError,
	ErrCodeLabelUnknown:       http.StatusBadRequest,
	ErrCodeSourceUnknown:      http.StatusBadRequest,
	ErrCodeBoostTableInvalid:  http.StatusInternalServerError,

	ErrCodeModelNotAvailable:     http.StatusServiceUnavailable,
	ErrCodeModelLoadFailed:       http.StatusInternalServerError,
	ErrCodeModelNotReady:         http.StatusServiceUnavailable,
	ErrCodeInferenceFailed:       http.StatusInternalServerError,
	ErrCodeTokenizerLoadFailed:   http.StatusInternalServerError,
	ErrCodeTokenizerEncodeFailed: http.StatusInternalServerError,
	ErrCodeEnsembleEmpty:         http.StatusInternalServerError,
	ErrCodeStrategyUnknown:       http.StatusBadRequest,

	ErrCodeBackendUnavailable: http.StatusServiceUnavailable,
	ErrCodeBackendTimeout:     http.StatusGatewayTimeout,
	ErrCodeBackendRateLimited: http.StatusTooManyRequests,
	ErrCodeBackendAuthFailed:  http.StatusBadGateway,
	ErrCodeBackendParseError:  http.StatusBadGateway,

	ErrCodeConfigNotFound:   http.StatusInternalServerError,
	ErrCodeConfigInvalid:    http.StatusInternalServerError,
	ErrCodeThresholdInvalid: http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeTextTooLong:    "text exceeds maximum length",
	ErrCodeTextNotUTF8:    "text is not valid UTF-8",
	ErrCodeSpanOutOfRange: "entity span outside text bounds",
	ErrCodeBatchEmpty:     "batch contains no texts",
	ErrCodeBatchTooLarge:  "batch exceeds maximum size",

	ErrCodePatternInvalid:     "invalid extraction pattern",
	ErrCodeLexiconNotFound:    "lexicon file not found",
	ErrCodeLexiconParseFailed: "failed to parse lexicon file",
	ErrCodeLexiconEmpty:       "lexicon contains no terms",
	ErrCodeRootFamilyInvalid:  "invalid morphological root family",
	ErrCodeLabelUnknown:       "unknown entity label",
	ErrCodeSourceUnknown:      "unknown candidate source",
	ErrCodeBoostTableInvalid:  "invalid contextual boost table",

	ErrCodeModelNotAvailable:     "tagger model not available",
	ErrCodeModelLoadFailed:       "failed to load tagger model",
	ErrCodeModelNotReady:         "tagger model not ready",
	ErrCodeInferenceFailed:       "model inference failed",
	ErrCodeTokenizerLoadFailed:   "failed to load tokenizer",
	ErrCodeTokenizerEncodeFailed: "tokenizer encoding failed",
	ErrCodeEnsembleEmpty:         "no ensemble variants configured",
	ErrCodeStrategyUnknown:       "unknown aggregation strategy",

	ErrCodeBackendUnavailable: "serving backend unavailable",
	ErrCodeBackendTimeout:     "serving backend timed out",
	ErrCodeBackendRateLimited: "serving backend rate limited",
	ErrCodeBackendAuthFailed:  "serving backend authentication failed",
	ErrCodeBackendParseError:  "failed to parse backend response",

	ErrCodeConfigNotFound:   "configuration file not found",
	ErrCodeConfigInvalid:    "invalid configuration",
	ErrCodeThresholdInvalid: "confidence threshold out of range",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
