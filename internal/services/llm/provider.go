package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/models"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderOpenAI uses an OpenAI-compatible chat-completions endpoint
	ProviderOpenAI ProviderType = "openai"
	// ProviderGemini uses Google Gemini API with native structured output
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ProviderRequest is a provider-agnostic structured generation request.
// Exactly one of Text or ImageDataURL carries the page payload.
type ProviderRequest struct {
	Prompt       string
	Text         string
	ImageDataURL string
	// Schema is a JSON schema the response must satisfy. Providers with
	// native structured output enforce it; others receive a JSON-object
	// response_format and the schema travels in the prompt.
	Schema      map[string]interface{}
	MaxTokens   int
	Temperature float32
	Task        string
}

// ProviderResponse is the raw provider output before repair/normalization
type ProviderResponse struct {
	Text         string
	Usage        models.TokenUsage
	FinishReason string
	Model        string
}

// Provider is one chat-completions backend
type Provider interface {
	GenerateStructured(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)
	GetProviderType() ProviderType
	ModelVersion() string
	Close() error
}

// NewProvider creates the configured provider implementation
func NewProvider(cfg *common.LLMConfig, logger arbor.ILogger) (Provider, error) {
	switch DetectProvider(cfg, "") {
	case ProviderOpenAI:
		return NewOpenAIService(&cfg.OpenAI, logger)
	case ProviderGemini:
		return NewGeminiService(&cfg.Gemini, logger)
	case ProviderClaude:
		return NewClaudeService(&cfg.Claude, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.DefaultProvider)
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "gemini/gemini-2.5-flash" -> Gemini (with prefix)
// - "gpt-4o-mini" -> OpenAI-compatible
// - Empty string -> default provider from config
func DetectProvider(cfg *common.LLMConfig, model string) ProviderType {
	if model == "" {
		return ProviderType(cfg.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") || strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") || strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}
	if strings.HasPrefix(model, "openai/") || strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") {
		return ProviderOpenAI
	}

	return ProviderType(cfg.DefaultProvider)
}

// marshalSchema renders a response schema for prompt embedding
func marshalSchema(schema map[string]interface{}) string {
	data, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	return string(data)
}
