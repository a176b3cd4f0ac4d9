// Package llm wraps an OpenRouter-compatible chat-completion API and tracks
// an approximate daily spend against a configured ceiling.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/fieldry/salestrainer/internal/config"
)

// ErrCostLimit is returned when the configured daily cost ceiling is reached.
var ErrCostLimit = errors.New("daily cost limit exceeded")

// Rough blended price per token. The ceiling is a safety valve, not billing.
const costPerToken = 0.00001

// Turn is one transcript entry sent to the model.
type Turn struct {
	Role    string
	Content string
}

// Generator produces a model reply for a transcript. The extra context
// string, when non-empty, is appended to the system prompt.
type Generator interface {
	Generate(ctx context.Context, transcript []Turn, systemPrompt, extraContext string) (string, error)
}

// Client implements Generator against an OpenAI-compatible endpoint.
type Client struct {
	api         *openai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration

	mu        sync.Mutex
	costLimit float64
	costSpent float64
	costDay   time.Time
}

// NewClient creates a Client from the LLM configuration.
func NewClient(cfg config.LLMConfig, log *slog.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = cfg.BaseURL

	return &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		log:         log.With("component", "llm_client"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		costLimit:   cfg.DailyCostLimit,
	}
}

// Generate sends the system prompt, optional retrieved context, and the
// transcript to the model and returns the reply text. It fails with
// ErrCostLimit once the day's approximate spend passes the ceiling.
func (c *Client) Generate(ctx context.Context, transcript []Turn, systemPrompt, extraContext string) (string, error) {
	if err := c.checkBudget(); err != nil {
		return "", err
	}

	systemContent := systemPrompt
	if extraContext != "" {
		systemContent += "\n\nContext:\n" + extraContext
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(transcript)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemContent,
	})
	for _, turn := range transcript {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Chat completion failed", "model", c.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(systemContent, transcript, content)
	}
	c.trackCost(tokens)

	c.log.InfoContext(ctx, "Chat completion finished",
		"model", c.model, "tokens", tokens, "duration", time.Since(start))
	return content, nil
}

func (c *Client) checkBudget() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfNewDayLocked()
	if c.costLimit > 0 && c.costSpent >= c.costLimit {
		return fmt.Errorf("%w: spent $%.4f of $%.2f", ErrCostLimit, c.costSpent, c.costLimit)
	}
	return nil
}

func (c *Client) trackCost(tokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfNewDayLocked()
	c.costSpent += float64(tokens) * costPerToken
	if c.costLimit > 0 && c.costSpent >= c.costLimit {
		c.log.Warn("Daily cost limit reached", "spent", c.costSpent, "limit", c.costLimit)
	}
}

func (c *Client) resetIfNewDayLocked() {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if !day.Equal(c.costDay) {
		c.costDay = day
		c.costSpent = 0
	}
}

// estimateTokens is the fallback when the API reports no usage: roughly one
// token per four characters.
func estimateTokens(systemContent string, transcript []Turn, reply string) int {
	total := len(systemContent) + len(reply)
	for _, turn := range transcript {
		total += len(turn.Content)
	}
	return total / 4
}
