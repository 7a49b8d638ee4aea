package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var ErrNoAPIKeys = errors.New("no AI API keys configured")

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type modelChatRequest struct {
	Model    string         `json:"model"`
	Messages []ModelMessage `json:"messages"`
}

type modelChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ModelClient calls an OpenAI-compatible chat-completions endpoint. The key
// list is fixed at construction; only the rotation index mutates, so a single
// client can be shared by every caller.
type ModelClient struct {
	baseURL string
	model   string
	keys    []string
	idx     atomic.Uint64
	client  *http.Client
}

func NewModelClient(baseURL, model string, keys []string, timeout time.Duration) *ModelClient {
	return &ModelClient{
		baseURL: baseURL,
		model:   model,
		keys:    keys,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *ModelClient) nextKey() string {
	n := c.idx.Add(1)
	return c.keys[(n-1)%uint64(len(c.keys))]
}

// Complete sends one chat completion request. A 401 or 429 advances the key
// rotation and retries once with the next key.
func (c *ModelClient) Complete(ctx context.Context, messages []ModelMessage) (string, error) {
	if len(c.keys) == 0 {
		return "", ErrNoAPIKeys
	}

	reply, err := c.completeWithKey(ctx, c.nextKey(), messages)
	if err == nil {
		return reply, nil
	}
	var rotate *rotatableError
	if len(c.keys) > 1 && errors.As(err, &rotate) {
		return c.completeWithKey(ctx, c.nextKey(), messages)
	}
	return "", err
}

type rotatableError struct {
	status int
}

func (e *rotatableError) Error() string {
	return fmt.Sprintf("model endpoint returned status %d", e.status)
}

func (c *ModelClient) completeWithKey(ctx context.Context, key string, messages []ModelMessage) (string, error) {
	body, err := json.Marshal(modelChatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusTooManyRequests:
		return "", &rotatableError{status: resp.StatusCode}
	default:
		return "", fmt.Errorf("model endpoint returned status %d", resp.StatusCode)
	}

	var chatResp modelChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("model response contained no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}
