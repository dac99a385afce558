// Package retrieval performs a fresh FDA label fetch when saved data
// cannot answer a follow-up question.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "followup-orchestrator/internal/common/errors"
	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/followup/citations"
	"followup-orchestrator/internal/llm"
	"followup-orchestrator/internal/models"
	"followup-orchestrator/internal/openfda"
)

var ErrRetrievalFailed = errors.New("retrieval failed")

const clarificationResponse = "**Bottom Line:** I need to know which medication you are asking about. Could you specify the medication name in your question?"

// LabelSearcher is the slice of the openFDA client the pipeline uses.
type LabelSearcher interface {
	SearchLabel(ctx context.Context, medication string) ([]openfda.Label, error)
}

var extractionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"medication", "sections"},
	"properties": map[string]interface{}{
		"medication": map[string]interface{}{"type": []interface{}{"string", "null"}},
		"sections": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

type extraction struct {
	Medication string   `json:"medication"`
	Sections   []string `json:"sections"`
}

// Result is a completed retrieval: the grounded answer plus its sources.
// Clarification-request results carry no citations.
type Result struct {
	Content   string
	Citations []models.Citation
}

type Pipeline struct {
	completer llm.Completer
	fda       LabelSearcher
	logger    logger.Logger
}

func New(completer llm.Completer, fda LabelSearcher, log logger.Logger) *Pipeline {
	return &Pipeline{
		completer: completer,
		fda:       fda,
		logger: log.With(map[string]interface{}{
			"component": "retrieval",
		}),
	}
}

// Retrieve extracts the medication and wanted sections from the question,
// fetches fresh label data and generates a grounded answer. fallbackEntity
// is the original query's medication, used when the question names none.
func (p *Pipeline) Retrieve(ctx context.Context, query, fallbackEntity string, history string) (*Result, error) {
	medication, sections := p.extractTarget(ctx, query)
	if medication == "" {
		medication = strings.TrimSpace(fallbackEntity)
	}
	if medication == "" {
		p.logger.Info("no medication resolved, asking for clarification", nil)
		return &Result{Content: clarificationResponse}, nil
	}
	if len(sections) == 0 {
		sections = openfda.CommonSections
	}

	labels, err := p.fda.SearchLabel(ctx, medication)
	if err != nil {
		if errors.Is(err, openfda.ErrNoResults) {
			return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, stderrors.NewFDANoResultsError(medication))
		}
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, stderrors.NewFDASearchError(err))
	}

	data := openfda.ExtractSections(labels, sections)
	fdaContext, available := openfda.FormatContext(data, medication, sections)
	if fdaContext == "" {
		return &Result{
			Content:   "**Bottom Line:** Unable to find this information in the available FDA sections.",
			Citations: citations.Generic(medication),
		}, nil
	}

	content, err := p.generate(ctx, query, fdaContext, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrievalFailed, stderrors.NewLLMCallError(err))
	}

	usedSections := make([]string, 0, len(available))
	for _, name := range available {
		usedSections = append(usedSections, strings.ReplaceAll(name, " ", "_"))
	}
	cites := citations.FromSections(usedSections, medication)

	p.logger.Info("retrieval answered", map[string]interface{}{
		"medication": medication,
		"sections":   len(usedSections),
	})

	return &Result{Content: content, Citations: cites}, nil
}

// extractTarget asks the model which medication and label sections the
// question is about. Any failure degrades to "nothing extracted" so the
// fallback entity can take over.
func (p *Pipeline) extractTarget(ctx context.Context, query string) (string, []string) {
	systemPrompt := fmt.Sprintf(`You classify medication questions. Given a question, identify the medication it asks about and which FDA label sections would answer it.

Valid sections: %s

Respond with a single JSON object and nothing else:
{"medication": "<medication name, or null if the question names none>", "sections": ["<relevant sections from the valid list>"]}`,
		strings.Join(openfda.CommonSections, ", "))

	response, err := p.completer.Complete(ctx, systemPrompt, query, 0.1)
	if err != nil {
		serr := stderrors.NewIntentExtractionError(err)
		p.logger.Warn("target extraction failed", map[string]interface{}{
			"code":  string(serr.Code),
			"error": serr.Error(),
		})
		return "", nil
	}

	cleaned := stripCodeFence(response)

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		p.logger.Warn("target extraction returned non-JSON", map[string]interface{}{"error": err.Error()})
		return "", nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(extractionSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil || !result.Valid() {
		p.logger.Warn("target extraction rejected by schema", nil)
		return "", nil
	}

	var e extraction
	if err := json.Unmarshal([]byte(cleaned), &e); err != nil {
		return "", nil
	}

	valid := make(map[string]bool, len(openfda.CommonSections))
	for _, s := range openfda.CommonSections {
		valid[s] = true
	}
	sections := make([]string, 0, len(e.Sections))
	for _, s := range e.Sections {
		if valid[s] {
			sections = append(sections, s)
		}
	}

	return strings.ToLower(strings.TrimSpace(e.Medication)), sections
}

func (p *Pipeline) generate(ctx context.Context, query, fdaContext, history string) (string, error) {
	systemPrompt := `You are a knowledgeable medication information assistant. You are answering a follow-up question based on FDA documentation that was just retrieved from the OpenFDA database.

Guidelines:
1. Use ONLY the FDA data provided to answer the question
2. If the FDA data doesn't contain information to answer the question, respond with "**Bottom Line:** Unable to find this information in the available FDA sections."
3. If you CAN answer with the available data, provide a comprehensive response starting with "**Bottom Line:**"
4. Be accurate and cite specific sections when possible
5. Use clear, accessible language
6. Do NOT include a "References:" section, source attribution is handled separately

IMPORTANT: Do not make up information that is not in the FDA data provided.`

	var b strings.Builder
	if history != "" {
		b.WriteString(history + "\n\n")
	}
	b.WriteString("Current Follow-up Question: " + query + "\n\n")
	b.WriteString(fdaContext)

	return p.completer.Complete(ctx, systemPrompt, b.String(), 0.7)
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
