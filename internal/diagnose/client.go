package diagnose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"chaossim/internal/config"
	"chaossim/internal/telemetry"
)

// chatCompleter is the part of the go-openai client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client diagnoses snapshots through an OpenAI-compatible chat completion API
// such as Groq.
type Client struct {
	api     chatCompleter
	cfg     config.Diagnose
	maxLogs int
	limiter *rate.Limiter
	logger  *slog.Logger

	mu   sync.Mutex
	rand *rand.Rand

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the configured endpoint. maxLogs bounds how
// many log lines go into the prompt.
func NewClient(cfg config.Diagnose, apiKey string, maxLogs int, logger *slog.Logger) *Client {
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = cfg.Endpoint()
	return newClient(openai.NewClientWithConfig(oc), cfg, maxLogs, logger)
}

func newClient(api chatCompleter, cfg config.Diagnose, maxLogs int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	if maxLogs < 1 {
		maxLogs = 10
	}
	c := &Client{
		api:     api,
		cfg:     cfg,
		maxLogs: maxLogs,
		logger:  logger,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return c
}

// Diagnose asks the service for an analysis, retrying within the attempt
// budget. HTTP 429 replies back off exponentially and end in ErrRateLimited;
// other failures back off linearly and end in a wrapped error.
func (c *Client) Diagnose(ctx context.Context, snap telemetry.Snapshot) (Analysis, error) {
	attempts := c.cfg.MaxAttempts
	var lastErr error
	for i := 0; i < attempts; i++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Analysis{}, fmt.Errorf("wait for request slot: %w", err)
			}
		}
		a, err := c.attempt(ctx, snap)
		if err == nil {
			return a, nil
		}
		if ctx.Err() != nil {
			return Analysis{}, ctx.Err()
		}
		last := i == attempts-1
		var wait time.Duration
		if isRateLimit(err) {
			if last {
				c.logger.Error("reasoning service rate limit exhausted", "attempts", attempts)
				return Analysis{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			wait = c.cfg.RateLimitBackoff * time.Duration(1<<i)
			c.logger.Warn("reasoning service rate limited", "attempt", i+1, "retry_in", wait)
		} else {
			lastErr = err
			if last {
				break
			}
			wait = c.cfg.RetryBackoff * time.Duration(i+1)
			c.logger.Warn("analysis attempt failed", "attempt", i+1, "retry_in", wait, "err", err)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return Analysis{}, err
		}
	}
	return Analysis{}, fmt.Errorf("analysis failed after %d attempts: %w", attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, snap telemetry.Snapshot) (Analysis, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(snap, c.maxLogs)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return Analysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Analysis{}, errors.New("empty reply from reasoning service")
	}
	return ParseAnalysis(resp.Choices[0].Message.Content, c.newID(), c.now())
}

func (c *Client) newID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewIncidentID(c.rand)
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
