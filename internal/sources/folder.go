package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
)

// FolderAdapter discovers documents on the local filesystem under a root
// directory, filtered by extension.
type FolderAdapter struct {
	config *common.FolderSourceConfig
	logger arbor.ILogger
}

var _ interfaces.SourceAdapter = (*FolderAdapter)(nil)

// NewFolderAdapter creates a folder source adapter
func NewFolderAdapter(config *common.FolderSourceConfig, logger arbor.ILogger) *FolderAdapter {
	return &FolderAdapter{config: config, logger: logger}
}

// Name returns the adapter identifier
func (a *FolderAdapter) Name() string {
	return "folder"
}

// Validate checks that the configured root exists and is a directory
func (a *FolderAdapter) Validate(ctx context.Context) error {
	if a.config.Path == "" {
		return fmt.Errorf("folder source requires a path")
	}
	info, err := os.Stat(a.config.Path)
	if err != nil {
		return fmt.Errorf("folder source path is not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("folder source path is not a directory: %s", a.config.Path)
	}
	return nil
}

// Count returns the number of discoverable documents
func (a *FolderAdapter) Count(ctx context.Context, max int) (int, error) {
	count := 0
	err := a.walk(ctx, func(info interfaces.DocumentInfo) bool {
		count++
		return max <= 0 || count < max
	})
	return count, err
}

// Discover lists up to batchSize documents under the root
func (a *FolderAdapter) Discover(ctx context.Context, batchSize int) ([]interfaces.DocumentInfo, error) {
	var docs []interfaces.DocumentInfo
	err := a.walk(ctx, func(info interfaces.DocumentInfo) bool {
		docs = append(docs, info)
		return batchSize <= 0 || len(docs) < batchSize
	})
	return docs, err
}

// Fetch reads a discovered file. Paths outside the configured root are
// rejected.
func (a *FolderAdapter) Fetch(ctx context.Context, sourcePath string) ([]byte, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("invalid source path: %w", err)
	}
	root, err := filepath.Abs(a.config.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid folder root: %w", err)
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) && abs != root {
		return nil, fmt.Errorf("source path %s is outside the configured folder", sourcePath)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

var errWalkStopped = fmt.Errorf("walk stopped")

// walk visits matching files in lexical order, stopping when visit returns
// false.
func (a *FolderAdapter) walk(ctx context.Context, visit func(interfaces.DocumentInfo) bool) error {
	err := filepath.WalkDir(a.config.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !a.matchesExtension(path) {
			return nil
		}

		info, statErr := d.Info()
		var size int64
		if statErr == nil {
			size = info.Size()
		}

		doc := interfaces.DocumentInfo{
			SourcePath: path,
			Filename:   filepath.Base(path),
			MimeType:   mimeTypeForExtension(filepath.Ext(path)),
			Size:       size,
		}
		if !visit(doc) {
			return errWalkStopped
		}
		return nil
	})
	if err == errWalkStopped {
		return nil
	}
	return err
}

func (a *FolderAdapter) matchesExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	extensions := a.config.Extensions
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".png", ".jpg", ".jpeg"}
	}
	for _, allowed := range extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func mimeTypeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
