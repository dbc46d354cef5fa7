package llm

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// excerptLen bounds the raw-body excerpt carried in error diagnostics
const excerptLen = 200

// TransportError is a network/HTTP-level failure talking to the provider.
// Transport errors are retried with exponential backoff.
type TransportError struct {
	Task string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error (task=%s): %v", e.Task, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx provider response. Not retried.
type ProviderError struct {
	Task       string
	StatusCode int
	Excerpt    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider error (task=%s, status=%d): %s", e.Task, e.StatusCode, e.Excerpt)
}

// TokenLimitError means the model exhausted its output budget. The reasoning
// variant (reasoning tokens consumed, zero text tokens) is surfaced
// distinctly so callers can adjust budgets rather than retry.
type TokenLimitError struct {
	Task            string
	ReasoningOnly   bool
	ReasoningTokens int
}

func (e *TokenLimitError) Error() string {
	if e.ReasoningOnly {
		return fmt.Sprintf("llm token limit (task=%s): model consumed %d reasoning tokens without output", e.Task, e.ReasoningTokens)
	}
	return fmt.Sprintf("llm token limit (task=%s): output truncated", e.Task)
}

// JSONParseError is raised only after the repair pipeline has exhausted all
// strategies.
type JSONParseError struct {
	Task    string
	Excerpt string
	Err     error
}

func (e *JSONParseError) Error() string {
	return fmt.Sprintf("llm response is not valid JSON (task=%s): %v; excerpt: %s", e.Task, e.Err, e.Excerpt)
}

func (e *JSONParseError) Unwrap() error { return e.Err }

// EmptyResponseError means the provider returned no usable content
type EmptyResponseError struct {
	Task string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("llm returned an empty response (task=%s)", e.Task)
}

// IsRetryable reports whether an error is a transport-level failure worth
// retrying. Provider, parse, and token-limit errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF")
}

// excerpt redacts a raw body down to a short diagnostic snippet
func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > excerptLen {
		return body[:excerptLen] + "..."
	}
	return body
}
