package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMaxTokens bounds a response when the request does not say otherwise.
const DefaultMaxTokens = 16000

// ErrEmptyResponse is returned when Claude answers without a text block.
var ErrEmptyResponse = errors.New("empty response from Claude")

// ClaudeGenerator calls the Anthropic Messages API.
type ClaudeGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewClaudeGenerator creates a generator for the given model. Extra request
// options (base URL, HTTP client) are passed through to the SDK.
func NewClaudeGenerator(apiKey, model string, maxTokens int64, logger *slog.Logger, opts ...option.RequestOption) *ClaudeGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &ClaudeGenerator{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Generate sends one message and returns the first text block of the reply.
func (g *ClaudeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(req.Prompt),
			),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}

	var responseText string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			responseText = resp.Content[i].Text
			break
		}
	}
	if responseText == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug("claude response", "model", g.model, "chars", len(responseText), "stop_reason", resp.StopReason)
	return responseText, nil
}
