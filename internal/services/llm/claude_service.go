package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// ClaudeService implements Provider against the Anthropic Messages API.
// Claude has no response_format knob, so the schema travels in the prompt
// and the repair pipeline handles any prose wrapping.
type ClaudeService struct {
	config  *common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
}

var _ Provider = (*ClaudeService)(nil)

// NewClaudeService creates a new Claude provider
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or llm.claude.api_key)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 90 * time.Second
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Claude LLM service initialized")

	return &ClaudeService{
		config:  config,
		logger:  logger,
		client:  anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		timeout: timeout,
	}, nil
}

// GenerateStructured performs one structured message call
func (s *ClaudeService) GenerateStructured(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := req.Prompt
	if req.Schema != nil {
		if schemaJSON := marshalSchema(req.Schema); schemaJSON != "" {
			prompt += "\n\nRespond with a single JSON object matching this schema, no prose:\n" + schemaJSON
		}
	}
	if req.Text != "" {
		prompt += "\n\n--- DOCUMENT CONTENT ---\n" + req.Text
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	if req.ImageDataURL != "" {
		mediaType, b64, err := splitDataURL(req.ImageDataURL)
		if err != nil {
			return nil, fmt.Errorf("invalid image payload: %w", err)
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, b64))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.config.MaxTokens
	}

	msg, err := s.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.config.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Task: req.Task, StatusCode: apiErr.StatusCode, Excerpt: excerpt(apiErr.Error())}
		}
		return nil, &TransportError{Task: req.Task, Err: err}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &EmptyResponseError{Task: req.Task}
	}

	usage := models.TokenUsage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}

	return &ProviderResponse{
		Text:         text.String(),
		Usage:        usage,
		FinishReason: normalizeClaudeStopReason(msg.StopReason),
		Model:        string(msg.Model),
	}, nil
}

func normalizeClaudeStopReason(reason anthropic.StopReason) string {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return "stop"
	case anthropic.StopReasonMaxTokens:
		return "length"
	default:
		return string(reason)
	}
}

// GetProviderType returns the provider type
func (s *ClaudeService) GetProviderType() ProviderType {
	return ProviderClaude
}

// ModelVersion returns the configured model identifier
func (s *ClaudeService) ModelVersion() string {
	return "claude/" + s.config.Model
}

// Close releases transport resources
func (s *ClaudeService) Close() error {
	return nil
}
