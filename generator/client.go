package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clinical_note_noiser/audit"
)

// DefaultBackoff 是首次调用之后每次重试前的等待时间。
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}

// ErrRetriesExhausted 表示退避表用尽仍没有可用输出。上层不应再重试，应终止整批任务。
var ErrRetriesExhausted = errors.New("llm retries exhausted")

// Client 负责调用 LLM、按退避表重试、校验输出并写审计记录。
type Client struct {
	llm      LLMClient
	sink     audit.Sink
	model    string
	runID    string
	backoff  []time.Duration
	minChars int
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

type ClientOption func(*Client)

// WithBackoff replaces the retry schedule. An empty schedule means a single attempt.
func WithBackoff(delays []time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = append([]time.Duration(nil), delays...)
	}
}

func WithMinOutputChars(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.minChars = n
		}
	}
}

// WithSleeper swaps the wait used between attempts; tests use it to skip real time.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithModel sets the model name recorded in audit entries.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithRunID(runID string) ClientOption {
	return func(c *Client) { c.runID = runID }
}

func NewClient(llm LLMClient, sink audit.Sink, opts ...ClientOption) (*Client, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if sink == nil {
		sink = audit.Discard
	}
	c := &Client{
		llm:      llm,
		sink:     sink,
		backoff:  DefaultBackoff,
		minChars: DefaultMinOutputChars,
		sleep:    SleepContext,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = audit.NewRunID()
	}
	return c, nil
}

// Generate 返回第一个通过校验的输出。失败的中间尝试不写审计。
func (c *Client) Generate(ctx context.Context, prompt Prompt) (string, error) {
	delays := append([]time.Duration{0}, c.backoff...)

	var lastErr error
	for i, delay := range delays {
		attempt := i + 1
		if delay > 0 {
			c.logger.Debug("backing off before retry",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		out, err := c.attempt(ctx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			c.logger.Warn("llm attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", len(delays)),
				zap.Error(err))
			lastErr = err
			continue
		}

		entry := audit.NewEntry(c.runID, c.model, attempt, prompt.String(), out)
		if err := c.sink.Append(ctx, entry); err != nil {
			return "", fmt.Errorf("audit append: %w", err)
		}
		return out, nil
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, len(delays), lastErr)
}

func (c *Client) attempt(ctx context.Context, prompt Prompt) (string, error) {
	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return PostProcess(raw, c.minChars)
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
