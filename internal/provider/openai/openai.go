// Package openai implements the provider client for OpenAI-compatible
// chat completion APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatrelay/internal/provider"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	contentTypeJSON = "application/json"
	userAgent       = "chatrelay/0.1"
)

// Client calls an OpenAI-compatible /chat/completions endpoint with a
// fixed model. The relay's already-flattened prompt travels as a single
// user message.
type Client struct {
	apiKey  string
	model   string
	chatURL string
	client  *http.Client
}

// New creates an OpenAI client. An empty baseURL selects the public API.
func New(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("openai: model must not be empty")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey:  apiKey,
		model:   model,
		chatURL: strings.TrimRight(baseURL, "/") + "/chat/completions",
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *Client) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiErrorObject `json:"error,omitempty"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends the prompt and returns the model's full generated text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := chatPayload{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	httpReq, err := c.newRequest(ctx, payload)
	if err != nil {
		return "", err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return "", parseAPIError(httpResp)
	}

	var resp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("openai: decode response: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("openai: api error (%s): %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", provider.ErrEmptyCompletion)
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) newRequest(ctx context.Context, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: construct request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return req, nil
}

func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("openai: upstream status %d and failed to read body: %w", resp.StatusCode, err)
	}

	var apiErr struct {
		Error apiErrorObject `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("openai: api error (%s): %s", apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("openai: upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
