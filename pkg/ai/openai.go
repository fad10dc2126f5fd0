package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	httputil "github.com/lepinkainen/recipe-forge/pkg/http"
)

// Completion timeout bounds
const (
	MinTimeout     = 60 * time.Second
	MaxTimeout     = 90 * time.Second
	DefaultTimeout = MaxTimeout
)

const maxResponseBytes = 2 << 20

// Completer turns a prompt into raw model output
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// OpenAIClient calls the chat completions API. Requests are never retried.
type OpenAIClient struct {
	config OpenAIConfig
	client *httputil.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ClampTimeout keeps a completion timeout inside [MinTimeout, MaxTimeout]; zero means the default
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < MinTimeout:
		return MinTimeout
	case d > MaxTimeout:
		return MaxTimeout
	}
	return d
}

// NewOpenAIClient creates a completion client
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Timeout = ClampTimeout(cfg.Timeout)

	clientCfg := httputil.DefaultConfig()
	clientCfg.Timeout = cfg.Timeout
	clientCfg.MaxRetries = 0
	clientCfg.Headers["Authorization"] = "Bearer " + cfg.APIKey
	clientCfg.Headers["Accept"] = "application/json"

	return &OpenAIClient{config: cfg, client: httputil.NewClient(clientCfg)}
}

// Complete sends prompt as a single user message and returns the first choice's content
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You extract cooking recipes from web pages and answer with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.config.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	resp, err := c.client.Post(ctx, c.config.BaseURL+"/chat/completions", "application/json", payload)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w after %s: %v", ErrModelTimeout, c.config.Timeout, err)
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	body, _, err := httputil.ReadBody(resp, maxResponseBytes)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w while reading response: %v", ErrModelTimeout, err)
		}
		return "", fmt.Errorf("failed to read completion response: %w", err)
	}

	var decoded chatResponse
	if resp.StatusCode != 200 {
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != nil {
			return "", fmt.Errorf("completion API error %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return "", fmt.Errorf("completion API error %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion response contained no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
