package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	stderrors "followup-orchestrator/internal/common/errors"
	"followup-orchestrator/internal/followup/orchestrator"
	"followup-orchestrator/internal/models"
	"followup-orchestrator/internal/store"
)

type followUpRequest struct {
	Query       string `json:"query"`
	QueryID     string `json:"queryId"`
	ForceIntent string `json:"forceIntent,omitempty"`
}

func (s *Server) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req followUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.orch.ProcessFollowUp(r.Context(), &orchestrator.Request{
		QueryID:      req.QueryID,
		UserID:       userID,
		Query:        req.Query,
		ForcedIntent: req.ForceIntent,
	})
	if err != nil {
		code := stderrors.CodeOf(err)
		status := stderrors.HTTPStatus(code)
		if status >= http.StatusInternalServerError {
			s.logger.Error("follow-up failed", zap.String("queryId", req.QueryID), zap.Error(err))
		}
		s.respondError(w, status, userMessage(code))
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	queryID := r.URL.Query().Get("queryId")
	if queryID == "" {
		s.respondError(w, http.StatusBadRequest, "queryId is required")
		return
	}

	// Ownership first: an absent query and another user's query answer
	// the same way, like the follow-up endpoint.
	if _, err := s.store.GetOriginalQuery(r.Context(), queryID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, userMessage(stderrors.ErrCodeQueryNotFound))
			return
		}
		s.logger.Error("resolve query failed", zap.String("queryId", queryID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	messages, err := s.store.ListMessages(r.Context(), queryID, userID)
	if err != nil {
		s.logger.Error("list messages failed", zap.String("queryId", queryID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userMessage(code stderrors.ErrorCode) string {
	switch code {
	case stderrors.ErrCodeValidationFailed:
		return "Query and queryId are required"
	case stderrors.ErrCodeQueryNotFound:
		return "Query not found or unauthorized"
	default:
		return "Internal server error"
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
