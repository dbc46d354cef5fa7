package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	scribamodels "github.com/ternarybob/scriba/internal/models"
)

// RenderError is a page-local PDF decode/render/encode failure. The pipeline
// treats it as a page failure, not a document-level fatal.
type RenderError struct {
	DocID     string
	PageIndex int
	Op        string
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("pdf %s failed for %s page %d: %v", e.Op, e.DocID, e.PageIndex, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Resolver implements interfaces.PageResolver on top of MuPDF (go-fitz) with
// pdfcpu for embedded-image inspection. A document-keyed cache keeps one open
// handle per document so page workers do not reopen the PDF for every page.
type Resolver struct {
	config *common.PDFConfig
	cache  *documentCache
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PageResolver = (*Resolver)(nil)

// NewResolver creates a new page resolver
func NewResolver(config *common.PDFConfig, logger arbor.ILogger) *Resolver {
	return &Resolver{
		config: config,
		cache:  newDocumentCache(logger),
		logger: logger,
	}
}

// PageCount returns the number of pages, cross-checking pdfcpu when the
// MuPDF open fails (some malformed files open in one library only).
func (r *Resolver) PageCount(docID string, pdfBytes []byte) (int, error) {
	handle, err := r.cache.acquire(docID, pdfBytes)
	if err == nil {
		defer handle.release()
		return handle.pageCount(), nil
	}

	count, cperr := api.PageCount(bytes.NewReader(pdfBytes), model.NewDefaultConfiguration())
	if cperr != nil {
		return 0, &RenderError{DocID: docID, PageIndex: -1, Op: "open", Err: err}
	}

	r.logger.Warn().Err(err).Str("doc_id", docID).Msg("MuPDF open failed, page count from pdfcpu")
	return count, nil
}

// ExtractText extracts the selectable text of one page together with its
// block structure and a derived quality score.
func (r *Resolver) ExtractText(docID string, pdfBytes []byte, pageIndex int) (*scribamodels.TextData, *scribamodels.TextQuality, error) {
	handle, err := r.cache.acquire(docID, pdfBytes)
	if err != nil {
		return nil, nil, &RenderError{DocID: docID, PageIndex: pageIndex, Op: "open", Err: err}
	}
	defer handle.release()

	text, err := handle.text(pageIndex)
	if err != nil {
		return nil, nil, &RenderError{DocID: docID, PageIndex: pageIndex, Op: "text", Err: err}
	}

	data := &scribamodels.TextData{
		Text:   text,
		Blocks: segmentBlocks(text),
	}
	data.TextBlocks = len(data.Blocks)
	data.ImageBlocks = r.extractImageBlocks(docID, pdfBytes, pageIndex)

	quality := ScoreTextQuality(data)
	return data, quality, nil
}

// extractImageBlocks pulls the page's embedded images via pdfcpu. Failures
// degrade to "no image blocks": text quality still scores and the detectors
// simply have nothing to scan.
func (r *Resolver) extractImageBlocks(docID string, pdfBytes []byte, pageIndex int) []scribamodels.ImageBlock {
	pageSel := []string{strconv.Itoa(pageIndex + 1)}
	images, err := api.ExtractImagesRaw(bytes.NewReader(pdfBytes), pageSel, model.NewDefaultConfiguration())
	if err != nil {
		r.logger.Debug().Err(err).Str("doc_id", docID).Int("page", pageIndex).Msg("Embedded image extraction failed")
		return nil
	}

	var blocks []scribamodels.ImageBlock
	for _, pageImages := range images {
		for _, img := range pageImages {
			raw, err := io.ReadAll(img)
			if err != nil || len(raw) == 0 {
				continue
			}
			blocks = append(blocks, scribamodels.ImageBlock{
				ImageBase64: base64.StdEncoding.EncodeToString(raw),
			})
		}
	}
	return blocks
}

// RenderPage rasterizes a page at RenderScale times the native 72 DPI
// (default 5x = 360 DPI) and applies enhancement for the vision model.
func (r *Resolver) RenderPage(docID string, pdfBytes []byte, pageIndex int) (*interfaces.RenderedPage, error) {
	handle, err := r.cache.acquire(docID, pdfBytes)
	if err != nil {
		return nil, &RenderError{DocID: docID, PageIndex: pageIndex, Op: "open", Err: err}
	}
	defer handle.release()

	scale := r.config.RenderScale
	if scale <= 0 {
		scale = 5.0
	}

	img, err := handle.render(pageIndex, 72*scale)
	if err != nil {
		return nil, &RenderError{DocID: docID, PageIndex: pageIndex, Op: "render", Err: err}
	}

	bounds := img.Bounds()
	return &interfaces.RenderedPage{
		Original:  img,
		Processed: Enhance(img),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// Release drops the cached document handle once the pipeline is done with it
func (r *Resolver) Release(docID string) {
	r.cache.drop(docID)
}

// EncodeJPEG encodes an image as a JPEG data URL at the configured quality,
// downscaling pages whose longest side exceeds max_image_side so vision
// payloads stay within provider limits.
func (r *Resolver) EncodeJPEG(img image.Image) (string, error) {
	quality := r.config.JPEGQuality
	if quality <= 0 {
		quality = 90
	}
	if r.config.MaxImageSide > 0 {
		img = Downscale(img, r.config.MaxImageSide)
	}
	return encodeJPEGDataURL(img, quality)
}

// CropRegion crops a bbox out of an image and returns a PNG data URL with
// white padding around the region.
func (r *Resolver) CropRegion(img image.Image, bbox [4]float64) (string, error) {
	padding := r.config.CropPadding
	if padding <= 0 {
		padding = 25
	}
	return cropRegionDataURL(img, bbox, padding)
}

// ConvertCoordinates maps an LLM-space bbox onto actual pixel space
func (r *Resolver) ConvertCoordinates(bbox [4]float64, llmW, llmH, actualW, actualH float64) [4]float64 {
	return convertCoordinates(bbox, llmW, llmH, actualW, actualH, &r.config.Coordinates)
}

// segmentBlocks splits raw page text into paragraph-level blocks. MuPDF text
// output separates blocks with blank lines.
func segmentBlocks(text string) []scribamodels.TextBlock {
	var blocks []scribamodels.TextBlock
	for _, para := range strings.Split(text, "\n\n") {
		trimmed := strings.TrimSpace(para)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, scribamodels.TextBlock{Text: trimmed})
	}
	return blocks
}
