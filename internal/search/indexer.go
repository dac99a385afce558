// Package search indexes answered follow-up turns into Elasticsearch so
// admin tooling can search across conversation transcripts.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/models"
)

type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

type transcriptDoc struct {
	MessageID     string    `json:"messageId"`
	QueryID       string    `json:"queryId"`
	UserID        string    `json:"userId"`
	Content       string    `json:"content"`
	Mode          string    `json:"mode"`
	CitationCount int       `json:"citationCount"`
	WebsearchUsed bool      `json:"websearchUsed"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.With(map[string]interface{}{
			"component": "search",
			"index":     index,
		}),
	}
}

// IndexAnswer writes one answer turn into the transcript index, keyed by
// message id so retries overwrite rather than duplicate.
func (i *Indexer) IndexAnswer(ctx context.Context, answer *models.Message) error {
	doc := transcriptDoc{
		MessageID:     answer.ID,
		QueryID:       answer.QueryID,
		UserID:        answer.UserID,
		Content:       answer.Content,
		Mode:          string(answer.Mode),
		CitationCount: len(answer.Citations),
		WebsearchUsed: answer.WebsearchEnabled,
		CreatedAt:     answer.CreatedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal transcript doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: answer.ID,
		Body:       strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index answer: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index answer: elasticsearch returned %s", res.Status())
	}

	i.logger.Info("answer indexed", map[string]interface{}{
		"messageId": answer.ID,
		"queryId":   answer.QueryID,
	})
	return nil
}
