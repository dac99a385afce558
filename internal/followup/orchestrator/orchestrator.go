// Package orchestrator composes intent classification, the saved-data
// short-circuit, the retrieval fallback and web search into the
// end-to-end follow-up pipeline, and owns deduplication and persistence.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	stderrors "followup-orchestrator/internal/common/errors"
	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/common/metrics"
	"followup-orchestrator/internal/common/observability"
	"followup-orchestrator/internal/followup/intent"
	"followup-orchestrator/internal/followup/retrieval"
	"followup-orchestrator/internal/followup/saveddata"
	"followup-orchestrator/internal/followup/websearch"
	"followup-orchestrator/internal/models"
	"followup-orchestrator/internal/store"
)

const (
	webSearchApology = "I apologize, but I was unable to perform a web search at this time. Please try again later."
	fdaSearchApology = "I apologize, but I was unable to perform an FDA search at this time. Please try again later."
	duplicateNotice  = "This question was just processed. Please check the conversation above for the answer."
)

// Store is the conversation persistence the orchestrator depends on.
type Store interface {
	GetOriginalQuery(ctx context.Context, queryID, userID string) (*models.OriginalQuery, error)
	ListMessages(ctx context.Context, queryID, userID string) ([]models.Message, error)
	InsertMessagePair(ctx context.Context, question, answer *models.Message) error
}

// SavedDataAnswerer attempts the saved-data short-circuit.
type SavedDataAnswerer interface {
	TryAnswer(ctx context.Context, query string, originalQuery *models.OriginalQuery, previous []models.Message) *saveddata.Result
}

// Retriever runs the fresh-fetch fallback.
type Retriever interface {
	Retrieve(ctx context.Context, query, fallbackEntity, history string) (*retrieval.Result, error)
}

// WebResponder runs the web-augmented path.
type WebResponder interface {
	Answer(ctx context.Context, query, conversationContext string) (*websearch.Result, error)
}

// Guard is the cross-instance duplicate check. Acquire returns false when
// an identical submission already claimed the window.
type Guard interface {
	Acquire(ctx context.Context, queryID, userID, text string) (bool, error)
}

// Indexer receives persisted answers for search indexing, best effort.
type Indexer interface {
	IndexAnswer(ctx context.Context, answer *models.Message) error
}

type Config struct {
	// DedupWindow bounds how far back identical questions are suppressed.
	DedupWindow time.Duration
	// DedupScan is how many recent messages the in-memory check examines.
	DedupScan int
}

type Request struct {
	QueryID      string
	UserID       string
	Query        string
	ForcedIntent string
}

type Response struct {
	Response      string            `json:"response"`
	Intent        string            `json:"intent"`
	Citations     []models.Citation `json:"citations"`
	WebsearchUsed bool              `json:"websearchUsed"`
	Duplicate     bool              `json:"duplicate,omitempty"`
}

type Orchestrator struct {
	config    *Config
	store     Store
	savedData SavedDataAnswerer
	retriever Retriever
	web       WebResponder
	guard     Guard
	indexer   Indexer
	obs       *observability.Observability
	logger    logger.Logger
}

func New(config *Config, st Store, savedData SavedDataAnswerer, retriever Retriever, web WebResponder, guard Guard, indexer Indexer, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		config:    config,
		store:     st,
		savedData: savedData,
		retriever: retriever,
		web:       web,
		guard:     guard,
		indexer:   indexer,
		obs:       obs,
		logger: log.With(map[string]interface{}{
			"component": "orchestrator",
		}),
	}
}

// ProcessFollowUp answers one follow-up question. Only validation and
// authorization failures surface as errors; every upstream failure
// degrades into a readable apology so the caller always gets an answer.
func (o *Orchestrator) ProcessFollowUp(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" || req.QueryID == "" {
		metrics.FollowUpsFailed.WithLabelValues(string(stderrors.ErrCodeValidationFailed)).Inc()
		return nil, stderrors.NewValidationError("query and queryId are required")
	}
	if req.UserID == "" {
		metrics.FollowUpsFailed.WithLabelValues(string(stderrors.ErrCodeValidationFailed)).Inc()
		return nil, stderrors.NewValidationError("authenticated user is required")
	}

	originalQuery, err := o.store.GetOriginalQuery(ctx, req.QueryID, req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.FollowUpsFailed.WithLabelValues(string(stderrors.ErrCodeQueryNotFound)).Inc()
			return nil, stderrors.NewQueryNotFoundError(req.QueryID)
		}
		metrics.FollowUpsFailed.WithLabelValues(string(stderrors.ErrCodeMessageLoadFailed)).Inc()
		return nil, stderrors.NewMessageLoadError(err)
	}

	previous, err := o.store.ListMessages(ctx, req.QueryID, req.UserID)
	if err != nil {
		// History only enriches prompts; answer without it.
		o.logger.Warn("failed to load conversation history", map[string]interface{}{
			"queryId": req.QueryID,
			"error":   err.Error(),
		})
		previous = nil
	}

	classified := intent.Classify(query, intent.Intent(req.ForcedIntent))
	log := o.logger.With(map[string]interface{}{
		"queryId": req.QueryID,
		"intent":  string(classified),
	})

	var (
		content       string
		cites         []models.Citation
		websearchUsed bool
		mode          models.FollowUpMode
		newRetrieval  bool
	)

	if classified == intent.WebSearch {
		mode = models.ModeWebSearch
		result, err := o.web.Answer(ctx, query, buildContext(originalQuery, previous))
		if err != nil {
			serr := stderrors.NewWebSearchError(err)
			metrics.FollowUpsFailed.WithLabelValues(string(serr.Code)).Inc()
			log.Warn("web search path failed", map[string]interface{}{
				"category": stderrors.GetErrorCategory(serr.Code),
				"error":    serr.Error(),
			})
			content = webSearchApology
		} else {
			content = result.Content
			cites = result.Citations
			websearchUsed = result.WebsearchUsed
		}
	} else {
		saved := o.savedData.TryAnswer(ctx, query, originalQuery, previous)
		if saved.CanAnswer {
			mode = models.ModeSavedData
			content = saved.Content
			cites = saved.Citations
		} else {
			mode = models.ModeFDASearch
			newRetrieval = true
			result, err := o.retriever.Retrieve(ctx, query, originalQuery.MedicationName, buildContext(originalQuery, previous))
			if err != nil {
				code := stderrors.CodeOf(err)
				if code == "" {
					code = stderrors.ErrCodeFDASearchFailed
				}
				metrics.FollowUpsFailed.WithLabelValues(string(code)).Inc()
				log.Warn("retrieval path failed", map[string]interface{}{
					"category": stderrors.GetErrorCategory(code),
					"error":    err.Error(),
				})
				content = fdaSearchApology
				newRetrieval = false
			} else {
				content = result.Content
				cites = result.Citations
			}
		}
	}

	// A new retrieval means the repeat legitimately produced a different
	// answer, so suppression only applies to the other paths.
	if !newRetrieval && o.isDuplicate(ctx, req, query, previous) {
		metrics.DuplicatesSuppressed.Inc()
		log.Info("duplicate submission suppressed", nil)
		return &Response{
			Response:  duplicateNotice,
			Intent:    string(classified),
			Citations: []models.Citation{},
			Duplicate: true,
		}, nil
	}

	question := &models.Message{
		QueryID: req.QueryID,
		UserID:  req.UserID,
		Type:    models.MessageTypeQuestion,
		Content: query,
	}
	answer := &models.Message{
		QueryID:          req.QueryID,
		UserID:           req.UserID,
		Type:             models.MessageTypeAnswer,
		Content:          content,
		Mode:             mode,
		Citations:        cites,
		WebsearchEnabled: websearchUsed,
	}

	if err := o.store.InsertMessagePair(ctx, question, answer); err != nil {
		// The computed answer still goes back to the caller.
		serr := stderrors.NewMessagePersistError(err)
		metrics.MessagePersistFailures.Inc()
		log.Error("failed to persist message pair", map[string]interface{}{
			"category": stderrors.GetErrorCategory(serr.Code),
			"error":    serr.Error(),
		})
	} else if o.indexer != nil {
		if err := o.indexer.IndexAnswer(ctx, answer); err != nil {
			serr := stderrors.NewTranscriptIndexError(err)
			log.Warn("failed to index answer", map[string]interface{}{
				"category": stderrors.GetErrorCategory(serr.Code),
				"error":    serr.Error(),
			})
		}
	}

	metrics.FollowUpsProcessed.WithLabelValues(string(classified), string(mode)).Inc()
	metrics.FollowUpDuration.WithLabelValues(string(classified)).Observe(time.Since(start).Seconds())
	o.obs.RecordRequest(ctx, string(mode))
	o.obs.RecordDuration(ctx, time.Since(start), string(mode))

	if cites == nil {
		cites = []models.Citation{}
	}

	return &Response{
		Response:      content,
		Intent:        string(classified),
		Citations:     cites,
		WebsearchUsed: websearchUsed,
	}, nil
}

// isDuplicate combines the in-memory scan over recent questions with the
// shared guard. Either one flagging the submission suppresses it.
func (o *Orchestrator) isDuplicate(ctx context.Context, req *Request, query string, previous []models.Message) bool {
	cutoff := time.Now().Add(-o.config.DedupWindow)
	scanned := 0
	for i := len(previous) - 1; i >= 0 && scanned < o.config.DedupScan; i-- {
		m := previous[i]
		scanned++
		if m.Type != models.MessageTypeQuestion {
			continue
		}
		if m.CreatedAt.Before(cutoff) {
			break
		}
		if strings.TrimSpace(m.Content) == query {
			return true
		}
	}

	if o.guard == nil {
		return false
	}
	acquired, err := o.guard.Acquire(ctx, req.QueryID, req.UserID, query)
	if err != nil {
		o.logger.Warn("dedup guard unavailable", map[string]interface{}{"error": err.Error()})
		return false
	}
	return !acquired
}

// buildContext renders the whole conversation as a transcript for prompts.
func buildContext(originalQuery *models.OriginalQuery, previous []models.Message) string {
	var b strings.Builder
	b.WriteString("User: " + originalQuery.UserQuery + "\n")
	b.WriteString("Assistant: " + originalQuery.AIResponse + "\n")
	for _, m := range previous {
		role := "Assistant"
		if m.Type == models.MessageTypeQuestion {
			role = "User"
		}
		b.WriteString(role + ": " + m.Content + "\n")
	}
	return b.String()
}
