package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"DataPaperIndex/internal/config"
	"DataPaperIndex/internal/domain"
	"DataPaperIndex/internal/logging"
	"DataPaperIndex/internal/ports"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 60 * time.Second
)

// Client implements ports.ModelCaller backed by an OpenAI-compatible API.
type Client struct {
	client    openai.Client
	model     string
	apiKey    string
	attempts  uint
	delay     time.Duration
	maxJitter time.Duration
	logger    *slog.Logger
}

var _ ports.ModelCaller = (*Client)(nil)

// NewClient builds a client from configuration. Transport retries are
// disabled; CallModel owns the retry budget.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		attempts:  attempts,
		delay:     cfg.RetryDelay,
		maxJitter: cfg.MaxJitter,
		logger:    logging.Component(logger, "llm"),
	}
}

// CallModel runs one task with exponential backoff plus jitter between
// attempts. After the budget is spent it returns "" and never an error.
// Classification output is coerced into the closed taxonomy.
func (c *Client) CallModel(ctx context.Context, text string, task domain.Task) string {
	if c == nil || c.apiKey == "" || c.model == "" {
		return ""
	}
	if strings.TrimSpace(text) == "" {
		return ""
	}

	system, prompt, err := buildPrompt(task, text)
	if err != nil {
		c.logger.Error("model call rejected", "task", task, "error", err)
		return ""
	}

	out, err := retry.DoWithData(
		func() (string, error) {
			return c.complete(ctx, system, prompt)
		},
		c.retryOptions(ctx, task)...,
	)
	if err != nil {
		c.logger.Warn("model call gave up", "task", task, "attempts", c.attempts, "error", err)
		return ""
	}

	out = strings.TrimSpace(out)
	if task != domain.TaskClassify {
		return out
	}

	subject, exact := domain.CoerceSubject(out)
	if !exact {
		c.logger.Warn("classification outside taxonomy", "raw", out, "assigned", subject)
	}
	return subject
}

func (c *Client) retryOptions(ctx context.Context, task domain.Task) []retry.Option {
	delayType := retry.BackOffDelay
	if c.maxJitter > 0 {
		delayType = retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxJitter(c.maxJitter),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("model call failed, retrying", "task", task, "attempt", n+1, "error", err)
		}),
	}
}

func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
