package pipeline

import (
	"sync/atomic"
)

// PageState tracks a page through the staged pipeline
type PageState int

const (
	StateNew PageState = iota
	StatePageReady
	StateTextReady
	StateImageRendered
	StateImageEnhanced
	StateImageEncoded
	StateLLMDone
	StateParsed
	StateMerged
	StateDone
	StateFailed
	StateCancelled
)

func (s PageState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePageReady:
		return "page_ready"
	case StateTextReady:
		return "text_ready"
	case StateImageRendered:
		return "image_rendered"
	case StateImageEnhanced:
		return "image_enhanced"
	case StateImageEncoded:
		return "image_encoded"
	case StateLLMDone:
		return "llm_done"
	case StateParsed:
		return "parsed"
	case StateMerged:
		return "merged"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CancelToken is a single-set shared cancellation flag. Reads are lock-free;
// stages check it at every boundary.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken creates an unset token
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the token. Idempotent.
func (t *CancelToken) Cancel() {
	t.cancelled.Store(true)
}

// IsCancelled reports whether cancellation was requested
func (t *CancelToken) IsCancelled() bool {
	return t != nil && t.cancelled.Load()
}
