// Package errors provides standardized error handling for the follow-up
// orchestration pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request-level errors; these terminate the request early.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// Uniform for both an absent record and one owned by another user.
	ErrCodeQueryNotFound ErrorCode = "QUERY_NOT_FOUND"

	// Upstream failures; always recovered into a user-readable apology.
	ErrCodeIntentExtractionFailed ErrorCode = "INTENT_EXTRACTION_FAILED"
	ErrCodeFDASearchFailed        ErrorCode = "FDA_SEARCH_FAILED"
	ErrCodeFDANoResults           ErrorCode = "FDA_NO_RESULTS"
	ErrCodeWebSearchFailed        ErrorCode = "WEBSEARCH_FAILED"
	ErrCodeLLMCallFailed          ErrorCode = "LLM_CALL_FAILED"
	ErrCodeVerdictParseFailed     ErrorCode = "VERDICT_PARSE_FAILED"

	// Persistence failures; logged, never fatal to the response.
	ErrCodeMessagePersistFailed  ErrorCode = "MESSAGE_PERSIST_FAILED"
	ErrCodeMessageLoadFailed     ErrorCode = "MESSAGE_LOAD_FAILED"
	ErrCodeTranscriptIndexFailed ErrorCode = "TRANSCRIPT_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable request validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryNotFoundError reports an original query the caller cannot see.
// Absent and unauthorized records share this code on purpose.
func NewQueryNotFoundError(queryID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryNotFound,
		Message:   "Query not found or access denied",
		Details:   fmt.Sprintf("queryId: %s", queryID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewIntentExtractionError creates a retryable extraction failure.
func NewIntentExtractionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIntentExtractionFailed,
		Message:   "Medication and intent extraction failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFDASearchError creates a retryable reference-data provider failure.
func NewFDASearchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFDASearchFailed,
		Message:   "FDA label search failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFDANoResultsError reports an entity the provider has no labels for.
func NewFDANoResultsError(medication string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFDANoResults,
		Message:   "No FDA label data found",
		Details:   fmt.Sprintf("medication: %s", medication),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebSearchError creates a retryable web-augmented generation failure.
func NewWebSearchError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebSearchFailed,
		Message:   "Web-augmented generation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLLMCallError creates a retryable language-model failure.
func NewLLMCallError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMCallFailed,
		Message:   "Language model call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewVerdictParseError reports a malformed structured verdict. Callers
// treat it as the conservative negative, never as a hard failure.
func NewVerdictParseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerdictParseFailed,
		Message:   "Structured verdict could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessagePersistError creates a persistence failure. The orchestrator
// logs it and still returns the computed answer.
func NewMessagePersistError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMessagePersistFailed,
		Message:   "Failed to persist conversation messages",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTranscriptIndexError creates a transcript indexing failure. Indexing
// is best-effort, so callers only log it.
func NewTranscriptIndexError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTranscriptIndexFailed,
		Message:   "Failed to index answer transcript",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageLoadError creates a conversation read failure.
func NewMessageLoadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMessageLoadFailed,
		Message:   "Failed to load conversation messages",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// CodeOf extracts the ErrorCode from an error chain, or empty string.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsNotFound reports whether the error is the uniform not-found condition.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeQueryNotFound
}

// IsValidation reports whether the error is a request validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidationFailed
}

// HTTPStatus maps an error code to the status the API surface responds with.
// Only validation and not-found terminate a request; everything else is
// recovered before it reaches the caller, so the default is a 500 safety net.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeQueryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeValidationFailed:
		return "validation"
	case ErrCodeQueryNotFound:
		return "authorization"
	case ErrCodeMessagePersistFailed, ErrCodeMessageLoadFailed, ErrCodeTranscriptIndexFailed:
		return "persistence"
	case ErrCodeVerdictParseFailed:
		return "parse"
	default:
		return "upstream"
	}
}
