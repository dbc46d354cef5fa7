package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// OpenAIService implements Provider against any OpenAI-compatible
// chat-completions endpoint (OpenAI, OpenRouter, vLLM). Structured output is
// requested via response_format json_object; the schema is appended to the
// prompt since compatible endpoints vary in json_schema support.
type OpenAIService struct {
	config  *common.OpenAIConfig
	logger  arbor.ILogger
	client  *openai.Client
	timeout time.Duration
}

var _ Provider = (*OpenAIService)(nil)

// NewOpenAIService creates a new OpenAI-compatible provider
func NewOpenAIService(config *common.OpenAIConfig, logger arbor.ILogger) (*OpenAIService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or llm.openai.api_key)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 90 * time.Second
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	service := &OpenAIService{
		config:  config,
		logger:  logger,
		client:  openai.NewClientWithConfig(clientConfig),
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Str("base_url", config.BaseURL).
		Dur("timeout", timeout).
		Msg("OpenAI-compatible LLM service initialized")

	return service, nil
}

// GenerateStructured performs one structured chat completion
func (s *OpenAIService) GenerateStructured(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := req.Prompt
	if req.Schema != nil {
		if schemaJSON, err := json.Marshal(req.Schema); err == nil {
			prompt += "\n\nRespond with a single JSON object matching this schema:\n" + string(schemaJSON)
		}
	}
	if req.Text != "" {
		prompt += "\n\n--- DOCUMENT CONTENT ---\n" + req.Text
	}

	message := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.ImageDataURL != "" {
		message.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.ImageDataURL,
					Detail: openai.ImageURLDetailHigh,
				},
			},
		}
	} else {
		message.Content = prompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    []openai.ChatCompletionMessage{message},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := s.client.CreateChatCompletion(timeoutCtx, chatReq)
	if err != nil {
		if apiErr, ok := err.(*openai.APIError); ok {
			return nil, &ProviderError{Task: req.Task, StatusCode: apiErr.HTTPStatusCode, Excerpt: excerpt(apiErr.Message)}
		}
		return nil, &TransportError{Task: req.Task, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &EmptyResponseError{Task: req.Task}
	}

	choice := resp.Choices[0]
	usage := models.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	if resp.Usage.CompletionTokensDetails != nil {
		usage.ReasoningTokens = resp.Usage.CompletionTokensDetails.ReasoningTokens
	}

	return &ProviderResponse{
		Text:         choice.Message.Content,
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}, nil
}

// GetProviderType returns the provider type
func (s *OpenAIService) GetProviderType() ProviderType {
	return ProviderOpenAI
}

// ModelVersion returns the configured model identifier
func (s *OpenAIService) ModelVersion() string {
	return "openai/" + s.config.Model
}

// Close releases transport resources
func (s *OpenAIService) Close() error {
	return nil
}
