package interfaces

import (
	"image"

	"github.com/ternarybob/scriba/internal/models"
)

// RenderedPage is the output of rendering one PDF page to an image.
// Original is retained for deferred detector crops; Processed carries the
// enhancement applied before encoding.
type RenderedPage struct {
	Processed image.Image
	Original  image.Image
	Width     int
	Height    int
}

// PageResolver decodes PDF bytes into per-page text and images. Implementations
// keep a document-keyed cache so page workers do not reopen the PDF per page;
// callers must Release the document when the pipeline finishes.
type PageResolver interface {
	// PageCount returns the number of pages in the document
	PageCount(docID string, pdfBytes []byte) (int, error)

	// ExtractText extracts the selectable text and block structure of a page
	// (0-based index) and its derived quality score.
	ExtractText(docID string, pdfBytes []byte, pageIndex int) (*models.TextData, *models.TextQuality, error)

	// RenderPage rasterizes a page at the configured scale (>= 300 DPI)
	RenderPage(docID string, pdfBytes []byte, pageIndex int) (*RenderedPage, error)

	// EncodeJPEG encodes an image as a JPEG data URL at the configured quality
	EncodeJPEG(img image.Image) (string, error)

	// CropRegion crops a bbox out of an image and encodes it as a padded PNG
	// data URL.
	CropRegion(img image.Image, bbox [4]float64) (string, error)

	// ConvertCoordinates maps an LLM-space bbox onto actual pixel space
	ConvertCoordinates(bbox [4]float64, llmW, llmH, actualW, actualH float64) [4]float64

	// Release drops the cached document handle
	Release(docID string)
}
