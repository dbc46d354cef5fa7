package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// fakeProvider returns scripted responses/errors in call order
type fakeProvider struct {
	responses []*ProviderResponse
	errs      []error
	calls     int
	lastReq   *ProviderRequest
}

func (f *fakeProvider) GenerateStructured(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error) {
	idx := f.calls
	f.calls++
	f.lastReq = req

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func (f *fakeProvider) GetProviderType() ProviderType { return ProviderOpenAI }
func (f *fakeProvider) ModelVersion() string          { return "openai/test-model" }
func (f *fakeProvider) Close() error                  { return nil }

func testClient(provider Provider) *Client {
	cfg := &common.LLMConfig{
		DefaultProvider: "openai",
		OpenAI:          common.OpenAIConfig{MaxTokens: 1000, Temperature: 0.2},
	}
	return NewClientWithProvider(cfg, provider, common.GetLogger())
}

func TestClient_Extract(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{
			Text:         `{"invoice": {"no": "INV-001", "total": 123.45}}`,
			Usage:        models.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
			FinishReason: "stop",
			Model:        "test-model",
		}},
	}
	client := testClient(provider)

	resp, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
		Prompt:      "extract fields",
		Text:        "Invoice #: INV-001",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, "extract fields", provider.lastReq.Prompt)
	assert.Equal(t, "Invoice #: INV-001", provider.lastReq.Text)
	assert.Empty(t, provider.lastReq.ImageDataURL)
	assert.Equal(t, 1000, provider.lastReq.MaxTokens)

	invoice, ok := resp.HierarchicalData.Object().Get("invoice")
	require.True(t, ok)
	no, _ := invoice.Object().Get("no")
	assert.Equal(t, "INV-001", no.Str())
	assert.Equal(t, 150, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestClient_Extract_ImagePayload(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{Text: `{"a": 1}`, FinishReason: "stop"}},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:         interfaces.TaskWithoutTemplateExtraction,
		ContentType:  models.ContentTypeImage,
		ImageDataURL: "data:image/jpeg;base64,AAAA",
		Text:         "should be ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, "data:image/jpeg;base64,AAAA", provider.lastReq.ImageDataURL)
	assert.Empty(t, provider.lastReq.Text, "image path must not carry a text payload")
}

func TestClient_Extract_RetriesTransportErrors(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{&TransportError{Task: "x", Err: errors.New("connection reset")}},
		responses: []*ProviderResponse{
			nil,
			{Text: `{"a": 1}`, FinishReason: "stop"},
		},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestClient_Extract_ProviderErrorNotRetried(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{&ProviderError{Task: "x", StatusCode: 400, Excerpt: "bad request"}},
		responses: []*ProviderResponse{
			nil,
			{Text: `{"a": 1}`, FinishReason: "stop"},
		},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Equal(t, 1, provider.calls)
}

func TestClient_Extract_ReasoningTokenLimit(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{
			Text:         "",
			FinishReason: "length",
			Usage:        models.TokenUsage{CompletionTokens: 4000, ReasoningTokens: 4000},
		}},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})

	var tle *TokenLimitError
	require.ErrorAs(t, err, &tle)
	assert.True(t, tle.ReasoningOnly)
	assert.Equal(t, 4000, tle.ReasoningTokens)
}

func TestClient_Extract_RepairsBeforeParsing(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{
			Text:         "```json\n{\"fields\": [{\"name\": \"total\"},]}\n```",
			FinishReason: "stop",
		}},
	}
	client := testClient(provider)

	resp, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})
	require.NoError(t, err)

	fields, ok := resp.HierarchicalData.Object().Get("fields")
	require.True(t, ok)
	assert.Len(t, fields.Items(), 1)
}

func TestClient_Extract_UnparseableResponse(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{Text: "I could not read the document, sorry.", FinishReason: "stop"}},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})

	var jpe *JSONParseError
	require.ErrorAs(t, err, &jpe)
}

func TestClient_Extract_EmptyResponse(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{Text: "", FinishReason: "stop"}},
	}
	client := testClient(provider)

	_, err := client.Extract(context.Background(), &interfaces.ExtractionRequest{
		Task:        interfaces.TaskWithoutTemplateExtraction,
		ContentType: models.ContentTypeText,
	})

	var ere *EmptyResponseError
	require.ErrorAs(t, err, &ere)
}

func TestClient_Complete(t *testing.T) {
	provider := &fakeProvider{
		responses: []*ProviderResponse{{
			Text:  `{"mappings": []}`,
			Usage: models.TokenUsage{TotalTokens: 42},
		}},
	}
	client := testClient(provider)

	text, usage, err := client.Complete(context.Background(), "suggest mappings")
	require.NoError(t, err)
	assert.Equal(t, `{"mappings": []}`, text)
	assert.Equal(t, 42, usage.TotalTokens)
	assert.Nil(t, provider.lastReq.Schema)
}

func TestCheckTokenLimit(t *testing.T) {
	assert.NoError(t, checkTokenLimit("t", &ProviderResponse{FinishReason: "stop"}))

	// Truncated but with usable text: caller decides, not an error here
	assert.NoError(t, checkTokenLimit("t", &ProviderResponse{
		FinishReason: "length",
		Text:         `{"a": 1}`,
		Usage:        models.TokenUsage{CompletionTokens: 100},
	}))

	err := checkTokenLimit("t", &ProviderResponse{
		FinishReason: "length",
		Usage:        models.TokenUsage{CompletionTokens: 50, ReasoningTokens: 50},
	})
	var tle *TokenLimitError
	require.ErrorAs(t, err, &tle)
	assert.True(t, tle.ReasoningOnly)

	err = checkTokenLimit("t", &ProviderResponse{FinishReason: "length", Text: ""})
	require.ErrorAs(t, err, &tle)
	assert.False(t, tle.ReasoningOnly)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&TransportError{Err: errors.New("x")}))
	assert.True(t, IsRetryable(errors.New("connection refused")))
	assert.False(t, IsRetryable(&ProviderError{StatusCode: 500}))
	assert.False(t, IsRetryable(nil))
}

func TestDetectProvider(t *testing.T) {
	cfg := &common.LLMConfig{DefaultProvider: "openai"}

	assert.Equal(t, ProviderClaude, DetectProvider(cfg, "claude-sonnet-4-20250514"))
	assert.Equal(t, ProviderGemini, DetectProvider(cfg, "gemini/gemini-2.5-flash"))
	assert.Equal(t, ProviderOpenAI, DetectProvider(cfg, "gpt-4o-mini"))
	assert.Equal(t, ProviderOpenAI, DetectProvider(cfg, ""))
	assert.Equal(t, ProviderOpenAI, DetectProvider(cfg, "some-unknown-model"))
}
