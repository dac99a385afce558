// internal/followup/websearch/responder_test.go
package websearch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"followup-orchestrator/internal/common/logger"
)

type fakeSearchCompleter struct {
	response string
	err      error
	prompt   string
}

func (f *fakeSearchCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeSearchCompleter) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func TestResponder_Answer_WithCitations(t *testing.T) {
	completer := &fakeSearchCompleter{
		response: "**Bottom Line:** Recent trials show modest benefit.\n\n" +
			"A 2025 trial [published in NEJM](https://www.nejm.org/doi/abc?utm_source=openai) reported improvement.",
	}
	r := New(completer, logger.NewTestLogger(t))

	result, err := r.Answer(context.Background(), "any recent studies?", "User: What is ibuprofen?\nAssistant: An NSAID.")

	assert.NoError(t, err)
	assert.True(t, result.WebsearchUsed)
	assert.Len(t, result.Citations, 1)
	assert.Equal(t, "https://www.nejm.org/doi/abc", result.Citations[0].URL)
	assert.Contains(t, completer.prompt, "New Follow-up Question: any recent studies?")
	assert.Contains(t, completer.prompt, "User: What is ibuprofen?")
}

func TestResponder_Answer_NoLinksMeansNotUsed(t *testing.T) {
	completer := &fakeSearchCompleter{
		response: "**Bottom Line:** I could not find relevant current research.",
	}
	r := New(completer, logger.NewTestLogger(t))

	result, err := r.Answer(context.Background(), "any recent studies?", "")

	assert.NoError(t, err)
	assert.False(t, result.WebsearchUsed)
	assert.Empty(t, result.Citations)
	assert.NotEmpty(t, result.Content)
}

func TestResponder_Answer_CompletionError(t *testing.T) {
	completer := &fakeSearchCompleter{err: errors.New("upstream timeout")}
	r := New(completer, logger.NewTestLogger(t))

	result, err := r.Answer(context.Background(), "any recent studies?", "")

	assert.Nil(t, result)
	assert.Error(t, err)
}
