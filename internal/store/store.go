// Package store persists original medication queries and their follow-up
// conversation log in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/models"
)

// ErrNotFound is returned when a query does not exist or belongs to
// another user. Callers must not distinguish the two cases.
var ErrNotFound = errors.New("query not found")

type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db: db,
		logger: log.With(map[string]interface{}{
			"component": "store",
		}),
	}
}

// GetOriginalQuery loads the first-turn query scoped to its owner.
func (s *Store) GetOriginalQuery(ctx context.Context, queryID, userID string) (*models.OriginalQuery, error) {
	query := `SELECT id, user_id, user_query, ai_response, medication_name, fda_raw_data, fda_sections_used, created_at
	          FROM fda_queries WHERE id = $1 AND user_id = $2`

	var q models.OriginalQuery
	var medicationName sql.NullString
	var rawData []byte
	var sectionsUsed pq.StringArray

	err := s.db.QueryRowContext(ctx, query, queryID, userID).Scan(
		&q.ID, &q.UserID, &q.UserQuery, &q.AIResponse,
		&medicationName, &rawData, &sectionsUsed, &q.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get original query: %w", err)
	}

	q.MedicationName = medicationName.String
	q.FDASectionsUsed = sectionsUsed
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &q.FDARawData); err != nil {
			s.logger.Warn("malformed fda_raw_data, treating as absent", map[string]interface{}{
				"queryId": queryID,
				"error":   err.Error(),
			})
			q.FDARawData = nil
		}
	}

	return &q, nil
}

// ListMessages returns the conversation log for a query in chronological
// order, oldest first.
func (s *Store) ListMessages(ctx context.Context, queryID, userID string) ([]models.Message, error) {
	query := `SELECT id, query_id, user_id, message_type, content, mode, citations, websearch_enabled, created_at
	          FROM fda_messages WHERE query_id = $1 AND user_id = $2 ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, queryID, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var mode sql.NullString
		var citations []byte

		err := rows.Scan(&m.ID, &m.QueryID, &m.UserID, &m.Type, &m.Content,
			&mode, &citations, &m.WebsearchEnabled, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		m.Mode = models.FollowUpMode(mode.String)
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &m.Citations); err != nil {
				s.logger.Warn("malformed citations payload", map[string]interface{}{
					"messageId": m.ID,
					"error":     err.Error(),
				})
			}
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// InsertMessagePair writes the question and its answer in one transaction
// so the log never shows an unanswered question or an orphan answer.
func (s *Store) InsertMessagePair(ctx context.Context, question, answer *models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	question.CreatedAt = now
	// Answer sorts after its question even at equal wall-clock precision.
	answer.CreatedAt = now.Add(time.Millisecond)

	insert := `INSERT INTO fda_messages (id, query_id, user_id, message_type, content, mode, citations, websearch_enabled, created_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.ExecContext(ctx, insert,
		question.ID, question.QueryID, question.UserID, question.Type,
		question.Content, nullString(string(question.Mode)), nil, false, question.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	citations, err := marshalCitations(answer.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insert,
		answer.ID, answer.QueryID, answer.UserID, answer.Type,
		answer.Content, nullString(string(answer.Mode)), citations, answer.WebsearchEnabled, answer.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message pair: %w", err)
	}

	s.logger.Info("message pair persisted", map[string]interface{}{
		"queryId":    question.QueryID,
		"questionId": question.ID,
		"answerId":   answer.ID,
		"mode":       string(answer.Mode),
	})
	return nil
}

func marshalCitations(citations []models.Citation) (interface{}, error) {
	if len(citations) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(citations)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
