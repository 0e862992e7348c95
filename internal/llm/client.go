// Package llm is a thin client for an OpenAI-compatible chat
// completions endpoint. The planner and the caption refiner both sit
// on top of it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/danschewy/twelvesocial/internal/apperr"
)

const (
	requestTimeout    = 90 * time.Second
	maxErrorBodyBytes = 4096
)

// Message is one chat turn in the completions request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

// Complete sends the conversation and returns the assistant's reply
// text. temperature may be nil for the provider default.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature *float64) (string, error) {
	if c.apiKey == "" {
		return "", apperr.Configuration("language model API key is not configured")
	}
	if len(messages) == 0 {
		return "", apperr.InvalidInput("at least one message is required")
	}

	payload := map[string]any{
		"model":    c.model,
		"stream":   false,
		"messages": messages,
	}
	if temperature != nil {
		payload["temperature"] = *temperature
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", apperr.Transport(fmt.Sprintf("language model timeout after %s", requestTimeout), err)
		}
		return "", apperr.Transport("language model unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		msg := redactSecrets(strings.TrimSpace(string(raw)), c.apiKey)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", apperr.Vendor(truncate(msg, 400), resp.StatusCode, "")
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", apperr.Vendor("malformed completion response", resp.StatusCode, "")
	}
	if len(raw.Choices) == 0 || strings.TrimSpace(raw.Choices[0].Message.Content) == "" {
		return "", apperr.Vendor("completion response carried no content", resp.StatusCode, "")
	}

	return raw.Choices[0].Message.Content, nil
}

// RefineCaption rewrites caption text for a target platform and tone.
// The reply is used verbatim, so the prompt forbids commentary.
func (c *Client) RefineCaption(ctx context.Context, caption, platform, tone string) (string, error) {
	if strings.TrimSpace(caption) == "" {
		return "", apperr.InvalidInput("caption text is required")
	}
	if platform == "" {
		platform = "social media"
	}
	if tone == "" {
		tone = "engaging"
	}

	system := fmt.Sprintf(
		"You polish short-form video captions for %s. Keep the meaning, make it %s, "+
			"fit the platform's conventions, and include relevant hashtags only when natural. "+
			"Reply with the refined caption text and nothing else.",
		platform, tone,
	)

	temp := 0.7
	out, err := c.Complete(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: caption},
	}, &temp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

// redactSecrets scrubs key material out of error bodies before they
// reach logs or clients.
func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
