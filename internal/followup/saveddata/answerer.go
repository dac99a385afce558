// Package saveddata tries to answer a follow-up question from the FDA
// label data already attached to the original query, avoiding a new
// provider round trip.
package saveddata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "followup-orchestrator/internal/common/errors"
	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/followup/citations"
	"followup-orchestrator/internal/llm"
	"followup-orchestrator/internal/models"
)

// verdictSchema pins the shape the model must answer with. Anything that
// fails it is treated as "cannot answer", never as a hard failure.
var verdictSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"can_answer", "response"},
	"properties": map[string]interface{}{
		"can_answer": map[string]interface{}{"type": "boolean"},
		"response":   map[string]interface{}{"type": "string"},
	},
}

type verdict struct {
	CanAnswer bool   `json:"can_answer"`
	Response  string `json:"response"`
}

// Result is the saved-data attempt outcome.
type Result struct {
	CanAnswer bool
	Content   string
	Citations []models.Citation
}

type Answerer struct {
	completer llm.Completer
	logger    logger.Logger
}

func New(completer llm.Completer, log logger.Logger) *Answerer {
	return &Answerer{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"component": "saveddata",
		}),
	}
}

// TryAnswer asks the model to answer from saved label data alone. It
// returns a negative result, not an error, whenever the model refuses,
// fails, or answers in a shape the schema rejects.
func (a *Answerer) TryAnswer(ctx context.Context, query string, originalQuery *models.OriginalQuery, previous []models.Message) *Result {
	negative := &Result{CanAnswer: false}

	if !originalQuery.HasSavedData() {
		return negative
	}

	systemPrompt := a.buildSystemPrompt(originalQuery, previous)

	response, err := a.completer.Complete(ctx, systemPrompt, query, 0.7)
	if err != nil {
		serr := stderrors.NewLLMCallError(err)
		a.logger.Warn("saved-data completion failed", map[string]interface{}{
			"queryId": originalQuery.ID,
			"code":    string(serr.Code),
			"error":   serr.Error(),
		})
		return negative
	}

	v, err := parseVerdict(response)
	if err != nil {
		serr := stderrors.NewVerdictParseError(err.Error())
		a.logger.Warn("saved-data verdict rejected", map[string]interface{}{
			"queryId": originalQuery.ID,
			"code":    string(serr.Code),
			"error":   serr.Error(),
		})
		return negative
	}

	if !v.CanAnswer || strings.TrimSpace(v.Response) == "" {
		return negative
	}

	a.logger.Info("answered from saved data", map[string]interface{}{
		"queryId":  originalQuery.ID,
		"sections": len(originalQuery.FDASectionsUsed),
	})

	return &Result{
		CanAnswer: true,
		Content:   v.Response,
		Citations: citations.FromSections(originalQuery.FDASectionsUsed, originalQuery.MedicationName),
	}
}

func (a *Answerer) buildSystemPrompt(originalQuery *models.OriginalQuery, previous []models.Message) string {
	var b strings.Builder

	b.WriteString("You are a helpful medical information assistant. The user is asking a follow-up question about a previous medication query.\n\n")
	fmt.Fprintf(&b, "Original Query: %q\n", originalQuery.UserQuery)
	medication := originalQuery.MedicationName
	if medication == "" {
		medication = "Not specified"
	}
	fmt.Fprintf(&b, "Medication: %s\n", medication)
	fmt.Fprintf(&b, "Previous Response: %q\n", originalQuery.AIResponse)

	if history := formatHistory(previous); history != "" {
		b.WriteString("\nPrevious Conversation:\n" + history + "\n")
	}

	b.WriteString("\nAvailable FDA Data Sections:\n")
	for _, section := range originalQuery.FDASectionsUsed {
		values, ok := originalQuery.FDARawData[section]
		if !ok {
			continue
		}
		encoded, _ := json.Marshal(values)
		fmt.Fprintf(&b, "%s: %s\n", section, encoded)
	}

	b.WriteString(`
Answer the user's follow-up question using ONLY the FDA data provided above.

Respond with a single JSON object and nothing else:
{"can_answer": <true if the FDA data above answers the question, false otherwise>, "response": "<your answer, or empty string when can_answer is false>"}

When can_answer is true, format the response text with a "Bottom line:" summary at the end and include appropriate medical disclaimers.`)

	return b.String()
}

func formatHistory(previous []models.Message) string {
	if len(previous) == 0 {
		return ""
	}
	lines := make([]string, 0, len(previous))
	for _, m := range previous {
		role := "Assistant"
		if m.Type == models.MessageTypeQuestion {
			role = "User"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func parseVerdict(response string) (*verdict, error) {
	cleaned := stripCodeFence(response)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("verdict is not JSON: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(verdictSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("verdict validation failed: %v", errs)
	}

	var v verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
