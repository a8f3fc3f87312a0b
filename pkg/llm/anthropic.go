package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/datamesa/assistant/pkg/contracts"
)

// AnthropicCompleter implements Completer using the Anthropic API.
// Transient API failures are retried with exponential backoff before the
// error is surfaced to the caller.
type AnthropicCompleter struct {
	client     anthropic.Client
	model      anthropic.Model
	maxTokens  int64
	maxRetries uint64
	log        *slog.Logger
}

// NewAnthropicCompleter creates a new Anthropic-backed completer. The API
// key is read from the environment by the SDK.
func NewAnthropicCompleter(model anthropic.Model, maxTokens int64, log *slog.Logger) *AnthropicCompleter {
	return &AnthropicCompleter{
		client:     anthropic.NewClient(),
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: 3,
		log:        log,
	}
}

// Complete sends a prompt to the model and returns the response text.
func (c *AnthropicCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error) {
	var options CompleteOptions
	for _, opt := range opts {
		opt(&options)
	}

	system := anthropic.TextBlockParam{Type: "text", Text: systemPrompt}
	if options.CacheSystemPrompt {
		system.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{system},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	start := time.Now()
	c.log.Debug("anthropic call starting", "model", c.model, "maxTokens", c.maxTokens, "userPromptLen", len(userPrompt))

	var msg *anthropic.Message
	operation := func() error {
		var err error
		msg, err = c.client.Messages.New(ctx, params)
		return err
	}
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx))

	duration := time.Since(start)
	if err != nil {
		c.log.Error("anthropic call failed", "duration", duration, "error", err)
		return "", fmt.Errorf("%w: anthropic API: %v", contracts.ErrTool, err)
	}
	c.log.Debug("anthropic call completed", "duration", duration, "stopReason", msg.StopReason)

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in response", contracts.ErrTool)
}
