// internal/server/handlers_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"followup-orchestrator/internal/common/config"
	stderrors "followup-orchestrator/internal/common/errors"
	"followup-orchestrator/internal/followup/orchestrator"
	"followup-orchestrator/internal/models"
	"followup-orchestrator/internal/store"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeProcessor struct {
	resp *orchestrator.Response
	err  error
	req  *orchestrator.Request
}

func (f *fakeProcessor) ProcessFollowUp(ctx context.Context, req *orchestrator.Request) (*orchestrator.Response, error) {
	f.req = req
	return f.resp, f.err
}

type fakeConversationStore struct {
	query    *models.OriginalQuery
	queryErr error
	messages []models.Message
	err      error
}

func (f *fakeConversationStore) GetOriginalQuery(ctx context.Context, queryID, userID string) (*models.OriginalQuery, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.query == nil || f.query.ID != queryID || f.query.UserID != userID {
		return nil, store.ErrNotFound
	}
	return f.query, nil
}

func (f *fakeConversationStore) ListMessages(ctx context.Context, queryID, userID string) ([]models.Message, error) {
	return f.messages, f.err
}

func ownedQuery() *models.OriginalQuery {
	return &models.OriginalQuery{ID: "query-001", UserID: "user-001"}
}

func newTestServer(t *testing.T, processor *fakeProcessor, convStore *fakeConversationStore) http.Handler {
	s := NewServer(processor, convStore, &config.ServerConfig{}, zaptest.NewLogger(t))
	return s.router()
}

func postFollowUp(handler http.Handler, userID string, body map[string]interface{}) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/follow-up", bytes.NewReader(payload))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// ==========================
// Follow-up Endpoint Tests
// ==========================

func TestHandleFollowUp_Success(t *testing.T) {
	processor := &fakeProcessor{resp: &orchestrator.Response{
		Response:      "**Bottom Line:** Yes.",
		Intent:        "fda_search",
		Citations:     []models.Citation{{Title: "FDA Warnings", Position: 1}},
		WebsearchUsed: false,
	}}
	handler := newTestServer(t, processor, &fakeConversationStore{query: ownedQuery()})

	rec := postFollowUp(handler, "user-001", map[string]interface{}{
		"query":   "is it safe?",
		"queryId": "query-001",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp orchestrator.Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "**Bottom Line:** Yes.", resp.Response)
	assert.Equal(t, "fda_search", resp.Intent)

	assert.Equal(t, "user-001", processor.req.UserID)
	assert.Equal(t, "query-001", processor.req.QueryID)
}

func TestHandleFollowUp_MissingUserHeader(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{query: ownedQuery()})

	rec := postFollowUp(handler, "", map[string]interface{}{
		"query":   "is it safe?",
		"queryId": "query-001",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleFollowUp_InvalidBody(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{query: ownedQuery()})

	req := httptest.NewRequest(http.MethodPost, "/api/follow-up", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleFollowUp_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", stderrors.NewValidationError("query required"), http.StatusBadRequest},
		{"not found", stderrors.NewQueryNotFoundError("query-001"), http.StatusNotFound},
		{"unexpected", stderrors.NewMessageLoadError(assert.AnError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(t, &fakeProcessor{err: tt.err}, &fakeConversationStore{query: ownedQuery()})
			rec := postFollowUp(handler, "user-001", map[string]interface{}{
				"query":   "is it safe?",
				"queryId": "query-001",
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleFollowUp_ForcedIntentPassedThrough(t *testing.T) {
	processor := &fakeProcessor{resp: &orchestrator.Response{Intent: "web_search"}}
	handler := newTestServer(t, processor, &fakeConversationStore{query: ownedQuery()})

	postFollowUp(handler, "user-001", map[string]interface{}{
		"query":       "is it safe?",
		"queryId":     "query-001",
		"forceIntent": "web_search",
	})

	assert.Equal(t, "web_search", processor.req.ForcedIntent)
}

// ==========================
// Messages Endpoint Tests
// ==========================

func TestHandleListMessages_Success(t *testing.T) {
	convStore := &fakeConversationStore{query: ownedQuery(), messages: []models.Message{
		{ID: "m1", Type: models.MessageTypeQuestion, Content: "is it safe?"},
		{ID: "m2", Type: models.MessageTypeAnswer, Content: "Yes."},
	}}
	handler := newTestServer(t, &fakeProcessor{}, convStore)

	req := httptest.NewRequest(http.MethodGet, "/api/messages?queryId=query-001", nil)
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 2)
}

func TestHandleListMessages_UnknownQueryNotFound(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{
		messages: []models.Message{{ID: "m1"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?queryId=query-404", nil)
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "messages")
}

func TestHandleListMessages_ForeignQueryNotFound(t *testing.T) {
	// Another user's conversation answers exactly like a missing one.
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{
		query:    ownedQuery(),
		messages: []models.Message{{ID: "m1"}},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?queryId=query-001", nil)
	req.Header.Set("X-User-ID", "user-intruder")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Query not found or unauthorized")
}

func TestHandleListMessages_ResolveFailureIs500(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{
		queryErr: assert.AnError,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?queryId=query-001", nil)
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleListMessages_RequiresQueryID(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{query: ownedQuery()})

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListMessages_EmptyIsArray(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{query: ownedQuery()})

	req := httptest.NewRequest(http.MethodGet, "/api/messages?queryId=query-001", nil)
	req.Header.Set("X-User-ID", "user-001")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)
}

func TestHandleHealth(t *testing.T) {
	handler := newTestServer(t, &fakeProcessor{}, &fakeConversationStore{query: ownedQuery()})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
