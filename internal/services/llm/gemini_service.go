package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
	"google.golang.org/genai"
)

// GeminiService implements Provider against the Gemini API using native
// structured output (response schema enforced server-side).
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

var _ Provider = (*GeminiService)(nil)

// NewGeminiService creates a new Gemini provider
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or llm.gemini.api_key)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 90 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// GenerateStructured performs one structured generation call
func (s *GeminiService) GenerateStructured(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		MaxOutputTokens:  int32(req.MaxTokens),
		ResponseMIMEType: "application/json",
	}
	if req.Schema != nil {
		genConfig.ResponseJsonSchema = req.Schema
	}

	prompt := req.Prompt
	if req.Text != "" {
		prompt += "\n\n--- DOCUMENT CONTENT ---\n" + req.Text
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if req.ImageDataURL != "" {
		mediaType, data, err := decodeDataURL(req.ImageDataURL)
		if err != nil {
			return nil, fmt.Errorf("invalid image payload: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(data, mediaType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &ProviderError{Task: req.Task, StatusCode: apiErr.Code, Excerpt: excerpt(apiErr.Message)}
		}
		return nil, &TransportError{Task: req.Task, Err: err}
	}

	if len(resp.Candidates) == 0 {
		return nil, &EmptyResponseError{Task: req.Task}
	}

	usage := models.TokenUsage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		usage.ReasoningTokens = int(resp.UsageMetadata.ThoughtsTokenCount)
	}

	return &ProviderResponse{
		Text:         resp.Text(),
		Usage:        usage,
		FinishReason: normalizeGeminiFinishReason(resp.Candidates[0].FinishReason),
		Model:        s.config.Model,
	}, nil
}

// normalizeGeminiFinishReason maps Gemini finish reasons onto the
// OpenAI-style vocabulary the rest of the client keys on.
func normalizeGeminiFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return string(reason)
	}
}

// GetProviderType returns the provider type
func (s *GeminiService) GetProviderType() ProviderType {
	return ProviderGemini
}

// ModelVersion returns the configured model identifier
func (s *GeminiService) ModelVersion() string {
	return "gemini/" + s.config.Model
}

// Close releases transport resources
func (s *GeminiService) Close() error {
	return nil
}
