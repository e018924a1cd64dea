package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is the single completion capability the generator depends on.
// Primary and fallback providers are two configured instances of this
// interface, never code branches on provider identity.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// TransientError marks provider failures worth retrying: timeouts, 5xx
// responses and rate limits.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return e.Cause.Error() }

func (e *TransientError) Unwrap() error { return e.Cause }

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewClient(name, baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %v", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network errors and timeouts are transient by classification.
		return "", &TransientError{Cause: fmt.Errorf("completion request to %s failed: %v", c.name, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return "", &TransientError{Cause: fmt.Errorf("%s returned status: %d", c.name, resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned status: %d", c.name, resp.StatusCode)
	}

	var completion chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %v", c.name, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", c.name)
	}

	return completion.Choices[0].Message.Content, nil
}
