// internal/common/errors/errors_test.go
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_UnwrapsChain(t *testing.T) {
	err := fmt.Errorf("retrieval failed: %w", NewFDASearchError(errors.New("connection refused")))
	assert.Equal(t, ErrCodeFDASearchFailed, CodeOf(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewQueryNotFoundError("query-001")))
	assert.False(t, IsNotFound(NewValidationError("bad request")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeQueryNotFound, http.StatusNotFound},
		{ErrCodeWebSearchFailed, http.StatusInternalServerError},
		{ErrorCode(""), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), string(tt.code))
	}
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeValidationFailed, "validation"},
		{ErrCodeQueryNotFound, "authorization"},
		{ErrCodeMessagePersistFailed, "persistence"},
		{ErrCodeTranscriptIndexFailed, "persistence"},
		{ErrCodeVerdictParseFailed, "parse"},
		{ErrCodeFDASearchFailed, "upstream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetErrorCategory(tt.code), string(tt.code))
	}
}

func TestConstructors_CarryDetails(t *testing.T) {
	upstream := errors.New("dial tcp: timeout")

	tests := []struct {
		name      string
		err       *StandardError
		wantCode  ErrorCode
		retryable bool
	}{
		{"intent extraction", NewIntentExtractionError(upstream), ErrCodeIntentExtractionFailed, true},
		{"fda search", NewFDASearchError(upstream), ErrCodeFDASearchFailed, true},
		{"fda no results", NewFDANoResultsError("ibuprofen"), ErrCodeFDANoResults, false},
		{"web search", NewWebSearchError(upstream), ErrCodeWebSearchFailed, true},
		{"llm call", NewLLMCallError(upstream), ErrCodeLLMCallFailed, true},
		{"verdict parse", NewVerdictParseError("not json"), ErrCodeVerdictParseFailed, false},
		{"message persist", NewMessagePersistError(upstream), ErrCodeMessagePersistFailed, true},
		{"transcript index", NewTranscriptIndexError(upstream), ErrCodeTranscriptIndexFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.NotEmpty(t, tt.err.Details)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}
