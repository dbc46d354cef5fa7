package interfaces

import (
	"context"
)

// DocumentInfo describes one discoverable document at a source
type DocumentInfo struct {
	SourcePath string `json:"source_path"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size,omitempty"`
}

// SourceAdapter discovers and fetches documents from a storage location.
// Adapters are pluggable; the folder adapter is always available.
type SourceAdapter interface {
	// Name returns the adapter identifier ("folder", "gdrive", ...)
	Name() string

	// Validate checks the adapter configuration without fetching
	Validate(ctx context.Context) error

	// Count returns the number of discoverable documents, bounded by max
	// when max > 0.
	Count(ctx context.Context, max int) (int, error)

	// Discover lists up to batchSize documents
	Discover(ctx context.Context, batchSize int) ([]DocumentInfo, error)

	// Fetch returns the raw bytes for a discovered document
	Fetch(ctx context.Context, sourcePath string) ([]byte, error)
}
