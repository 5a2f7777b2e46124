package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnold/goalmentor-api/internal/config"
	"github.com/gofiber/fiber/v2"
)

//go:generate mockgen -destination=mock_completer_test.go -package=services github.com/arnold/goalmentor-api/internal/services Completer

// ChatTurn is one message of a chat-completions request.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends an assembled conversation to a language model and returns
// the assistant reply.
type Completer interface {
	Complete(ctx context.Context, messages []ChatTurn) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []ChatTurn) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []ChatTurn) (string, error) {
	return f(ctx, messages)
}

const maxReplyTokens = 300

// GroqClient talks to an OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
}

func NewGroqClient(cfg config.AIConfig) *GroqClient {
	return &GroqClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

type completionRequest struct {
	Model     string     `json:"model"`
	MaxTokens int        `json:"max_tokens"`
	Messages  []ChatTurn `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *GroqClient) Complete(ctx context.Context, messages []ChatTurn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", UpstreamError("AI request failed", err)
	}

	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return "", UpstreamError("AI request failed", context.DeadlineExceeded)
		}
		if timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(g.baseURL+"/chat/completions").
		Set(fiber.HeaderAuthorization, "Bearer "+g.apiKey).
		JSON(completionRequest{
			Model:     g.model,
			MaxTokens: maxReplyTokens,
			Messages:  messages,
		})
	if timeout > 0 {
		agent = agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return "", UpstreamError("AI request failed", err)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", UpstreamError("AI request failed", errors.Join(errs...))
	}

	switch {
	case status == fiber.StatusUnauthorized || status == fiber.StatusForbidden:
		return "", UpstreamError("AI service is not available", fmt.Errorf("completion status %d: %s", status, body))
	case status == fiber.StatusTooManyRequests:
		return "", RateLimitedError("AI service is busy. Please try again shortly.", fmt.Errorf("completion status %d: %s", status, body))
	case status < 200 || status > 299:
		return "", UpstreamError("AI request failed", fmt.Errorf("completion status %d: %s", status, body))
	}

	var result completionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", UpstreamError("AI request failed", fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}
