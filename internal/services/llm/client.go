package llm

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"golang.org/x/time/rate"
)

// Client is the typed extraction facade over a Provider. It owns rate
// limiting, transport retries, JSON repair, token-limit detection, and
// per-task response normalization.
type Client struct {
	provider Provider
	config   *common.LLMConfig
	logger   arbor.ILogger
	limiter  *rate.Limiter
}

var _ interfaces.ExtractionClient = (*Client)(nil)

// NewClient creates an extraction client for the configured provider
func NewClient(cfg *common.LLMConfig, logger arbor.ILogger) (*Client, error) {
	provider, err := NewProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewClientWithProvider(cfg, provider, logger), nil
}

// NewClientWithProvider wraps an existing provider, used by tests
func NewClientWithProvider(cfg *common.LLMConfig, provider Provider, logger arbor.ILogger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerMin > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMin)/60.0), cfg.RequestsPerMin)
	}

	return &Client{
		provider: provider,
		config:   cfg,
		logger:   logger,
		limiter:  limiter,
	}
}

// Extract performs one structured extraction call
func (c *Client) Extract(ctx context.Context, req *interfaces.ExtractionRequest) (*interfaces.ExtractionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	task := string(req.Task)
	maxTokens, temperature := c.generationParams()

	providerReq := &ProviderRequest{
		Prompt:      req.Prompt,
		Schema:      req.Schema,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Task:        task,
	}
	if req.ContentType == models.ContentTypeImage {
		providerReq.ImageDataURL = req.ImageDataURL
	} else {
		providerReq.Text = req.Text
	}

	start := time.Now()
	resp, err := withTransportRetries(ctx, c.logger, task, func() (*ProviderResponse, error) {
		return c.provider.GenerateStructured(ctx, providerReq)
	})
	if err != nil {
		return nil, err
	}
	durationMs := time.Since(start).Milliseconds()

	if err := checkTokenLimit(task, resp); err != nil {
		return nil, err
	}
	if resp.Text == "" {
		return nil, &EmptyResponseError{Task: task}
	}

	repaired, applied, ok := RepairJSON(resp.Text)
	if !ok {
		return nil, &JSONParseError{Task: task, Excerpt: excerpt(resp.Text)}
	}
	if len(applied) > 0 {
		c.logger.Debug().
			Str("task", task).
			Str("doc", req.DocTag).
			Strs("repairs", applied).
			Msg("LLM response required JSON repair")
	}

	parsed, err := models.ParseValue([]byte(repaired))
	if err != nil {
		return nil, &JSONParseError{Task: task, Excerpt: excerpt(repaired), Err: err}
	}

	c.logger.Debug().
		Str("task", task).
		Str("doc", req.DocTag).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Int64("duration_ms", durationMs).
		Msg("LLM extraction call completed")

	return &interfaces.ExtractionResponse{
		HierarchicalData: normalizeResponse(req.Task, parsed),
		RawText:          repaired,
		Usage:            resp.Usage,
		FinishReason:     resp.FinishReason,
		Model:            resp.Model,
		DurationMs:       durationMs,
	}, nil
}

// Complete performs a plain-text completion without a response schema
func (c *Client) Complete(ctx context.Context, prompt string) (string, models.TokenUsage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", models.TokenUsage{}, err
		}
	}

	maxTokens, temperature := c.generationParams()
	providerReq := &ProviderRequest{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Task:        "completion",
	}

	resp, err := withTransportRetries(ctx, c.logger, "completion", func() (*ProviderResponse, error) {
		return c.provider.GenerateStructured(ctx, providerReq)
	})
	if err != nil {
		return "", models.TokenUsage{}, err
	}
	if resp.Text == "" {
		return "", resp.Usage, &EmptyResponseError{Task: "completion"}
	}

	return resp.Text, resp.Usage, nil
}

// ModelVersion returns the provider/model identifier used for calls
func (c *Client) ModelVersion() string {
	return c.provider.ModelVersion()
}

// Close releases transport resources
func (c *Client) Close() error {
	return c.provider.Close()
}

// generationParams picks the token budget and temperature from the active
// provider's config section.
func (c *Client) generationParams() (int, float32) {
	switch c.provider.GetProviderType() {
	case ProviderGemini:
		return c.config.Gemini.MaxTokens, c.config.Gemini.Temperature
	case ProviderClaude:
		return c.config.Claude.MaxTokens, c.config.Claude.Temperature
	default:
		return c.config.OpenAI.MaxTokens, c.config.OpenAI.Temperature
	}
}

// checkTokenLimit detects the reasoning-budget-exhausted case: the model hit
// its output cap with all completion tokens spent on reasoning and none on
// text.
func checkTokenLimit(task string, resp *ProviderResponse) error {
	if resp.FinishReason != "length" {
		return nil
	}
	textTokens := resp.Usage.CompletionTokens - resp.Usage.ReasoningTokens
	if resp.Usage.ReasoningTokens > 0 && textTokens <= 0 {
		return &TokenLimitError{Task: task, ReasoningOnly: true, ReasoningTokens: resp.Usage.ReasoningTokens}
	}
	if resp.Text == "" {
		return &TokenLimitError{Task: task}
	}
	return nil
}
