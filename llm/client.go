// Client - simple wrapper around providers.
package llm

import (
	"context"
)

// Client wraps a Provider with the narrow interface the AI player
// needs: prompt in, raw text out. The caller is solely responsible for
// parsing whatever the model returns; the client does no validation.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Complete sends a system+user prompt pair and returns the raw response
// text, which is expected (but not guaranteed) to contain JSON.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	response, err := c.provider.ChatWithFormat(ctx, []ChatMessage{
		SystemMessage(systemPrompt),
		UserMessage(userPrompt),
	}, NewJSONObjectFormat())
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Chat sends a chat completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	response, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
