package llm

import (
	"context"
	"fmt"
	"time"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"

	// anthropicMaxTokens bounds the extraction response; a memory list never
	// comes close to this.
	anthropicMaxTokens = 2048
)

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey  string
	Model   string        // default: claude-haiku-4-5-20251001
	Timeout time.Duration // default: 60s
}

// AnthropicClient implements TextGenerator via the Messages API.
type AnthropicClient struct {
	api   *apiClient
	model string
}

// NewAnthropicClient creates a new Anthropic client with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	return &AnthropicClient{
		api: newAPIClient("anthropic", cfg.Timeout, map[string]string{
			"x-api-key":         cfg.APIKey,
			"anthropic-version": anthropicVersion,
		}),
		model: cfg.Model,
	}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the prompt as a single user message and returns the first
// content block's text.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	request := messagesRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}

	var response messagesResponse
	if err := c.api.postJSON(ctx, anthropicMessagesURL, request, &response); err != nil {
		return "", err
	}
	if len(response.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content")
	}
	return response.Content[0].Text, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

var _ TextGenerator = (*AnthropicClient)(nil)
