// Package websearch answers follow-up questions through a web-augmented
// generation call, citing live sources as inline markdown links.
package websearch

import (
	"context"
	"fmt"
	"strings"

	"followup-orchestrator/internal/common/logger"
	"followup-orchestrator/internal/followup/citations"
	"followup-orchestrator/internal/llm"
	"followup-orchestrator/internal/models"
)

// Result is a web-search answer. WebsearchUsed reflects whether the model
// actually cited sources, not whether the tool was invoked.
type Result struct {
	Content       string
	Citations     []models.Citation
	WebsearchUsed bool
}

type Responder struct {
	completer llm.Completer
	logger    logger.Logger
}

func New(completer llm.Completer, log logger.Logger) *Responder {
	return &Responder{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"component": "websearch",
		}),
	}
}

// Answer runs the web-augmented generation and parses citations out of
// the returned text.
func (r *Responder) Answer(ctx context.Context, query, conversationContext string) (*Result, error) {
	prompt := buildPrompt(query, conversationContext)

	raw, err := r.completer.CompleteWithSearch(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("web search completion: %w", err)
	}

	content, cites := citations.ExtractFromResponse(raw)

	r.logger.Info("web search answered", map[string]interface{}{
		"citations": len(cites),
	})

	return &Result{
		Content:       content,
		Citations:     cites,
		WebsearchUsed: len(cites) > 0,
	}, nil
}

func buildPrompt(query, conversationContext string) string {
	var b strings.Builder

	b.WriteString(`You are a knowledgeable medication information assistant providing follow-up responses to medication-related questions.

Context: You are responding to a follow-up question in an ongoing conversation about medication. The user has already received initial information and is asking for clarification or additional details. You have access to web search to find the most current and comprehensive information.

`)
	if conversationContext != "" {
		b.WriteString("Previous conversation context:\n" + conversationContext + "\n\n")
	}
	b.WriteString("New Follow-up Question: " + query + "\n\n")
	b.WriteString(`Guidelines:
1. Use web search to find current, authoritative information to answer the follow-up question
2. Reference the previous conversation context when relevant
3. Provide clear, focused answers to the specific follow-up question
4. Maintain consistency with previous responses while incorporating new web search findings
5. If the follow-up question is unrelated to the original medication topic, gently redirect while still being helpful
6. Prioritize medical and scientific sources in your web searches
7. Always cite your sources as inline markdown links when providing information from web search

RESPONSE FORMAT:
Start your response with "**Bottom Line:** [One sentence summary that directly answers the follow-up question]"

Then provide the detailed explanation below, incorporating information from web search results and citing sources appropriately.`)

	return b.String()
}
