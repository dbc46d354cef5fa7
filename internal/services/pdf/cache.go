package pdf

import (
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/ternarybob/arbor"
)

// docHandle wraps an open MuPDF document. MuPDF contexts are not safe for
// concurrent use, so every operation holds the handle's mutex.
type docHandle struct {
	mu    sync.Mutex
	doc   *fitz.Document
	cache *documentCache
	docID string
}

func (h *docHandle) pageCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.NumPage()
}

func (h *docHandle) text(pageIndex int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Text(pageIndex)
}

func (h *docHandle) render(pageIndex int, dpi float64) (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.ImageDPI(pageIndex, dpi)
}

// release returns the handle to the cache. The underlying document stays
// open until the pipeline calls Resolver.Release for the document.
func (h *docHandle) release() {
	h.cache.releaseRef(h.docID)
}

// documentCache keeps one open fitz document per document ID. The pipeline
// for a document owns the cache entry; page workers share it read-style via
// acquire/release reference counting.
type documentCache struct {
	mu      sync.Mutex
	handles map[string]*cacheEntry
	logger  arbor.ILogger
}

type cacheEntry struct {
	handle *docHandle
	refs   int
}

func newDocumentCache(logger arbor.ILogger) *documentCache {
	return &documentCache{
		handles: make(map[string]*cacheEntry),
		logger:  logger,
	}
}

// acquire returns the open document for docID, opening it on first use
func (c *documentCache) acquire(docID string, pdfBytes []byte) (*docHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.handles[docID]; ok {
		entry.refs++
		return entry.handle, nil
	}

	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, err
	}

	handle := &docHandle{doc: doc, cache: c, docID: docID}
	c.handles[docID] = &cacheEntry{handle: handle, refs: 1}
	c.logger.Debug().Str("doc_id", docID).Msg("Opened PDF document handle")
	return handle, nil
}

func (c *documentCache) releaseRef(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.handles[docID]; ok && entry.refs > 0 {
		entry.refs--
	}
}

// drop closes and forgets the document handle. Safe to call while refs are
// outstanding only after the pipeline has drained its page workers.
func (c *documentCache) drop(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.handles[docID]
	if !ok {
		return
	}
	delete(c.handles, docID)

	entry.handle.mu.Lock()
	defer entry.handle.mu.Unlock()
	if err := entry.handle.doc.Close(); err != nil {
		c.logger.Warn().Err(err).Str("doc_id", docID).Msg("Failed to close PDF document")
	}
}
