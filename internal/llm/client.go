// Package llm wraps the OpenAI chat completion API for the follow-up
// pipeline's generation steps.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

var ErrEmptyCompletion = errors.New("empty completion")

type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	WebSearchModel string
	MaxTokens      int
	Temperature    float32
}

// Client is the concrete OpenAI-backed completer.
type Client struct {
	client *openai.Client
	config Config
}

// Completer is the narrow interface the pipeline stages depend on.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error)
	CompleteWithSearch(ctx context.Context, prompt string) (string, error)
}

func NewClient(config Config) *Client {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Complete runs a single system+user chat completion on the default model.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32) (string, error) {
	return c.complete(ctx, c.config.Model, systemPrompt, userPrompt, temperature)
}

// CompleteWithSearch runs the prompt on the search-capable model, which
// grounds its answer in live web results and cites them as markdown links.
func (c *Client) CompleteWithSearch(ctx context.Context, prompt string) (string, error) {
	model := c.config.WebSearchModel
	if model == "" {
		model = c.config.Model
	}
	return c.complete(ctx, model, "", prompt, c.config.Temperature)
}

func (c *Client) complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float32) (string, error) {
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
