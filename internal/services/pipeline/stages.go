package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"strings"

	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/detect"
	"github.com/ternarybob/scriba/internal/services/prompts"

	_ "image/jpeg"
	_ "image/png"
)

// processPage drives one page through every stage. Returns the page result
// and, for bank statement first pages, any detected table headers.
func (p *Pipeline) processPage(ctx context.Context, run *documentRun, pageIndex int, headers []string) (*models.PageResult, []string) {
	art := &pageArtifacts{pageIndex: pageIndex, state: StateNew}
	req := run.req

	fail := func(stage string, err error) *models.PageResult {
		art.state = StateFailed
		art.releaseImages()
		p.logger.Warn().
			Str("document_id", req.DocumentID).
			Int("page", pageIndex+1).
			Str("stage", stage).
			Err(err).
			Msg("Page failed")
		return &models.PageResult{
			DocumentID:  req.DocumentID,
			PageNumber:  pageIndex + 1,
			ContentType: art.contentType,
			Error:       err.Error(),
			FailedStage: stage,
			Retries:     art.retries,
			TokenUsage:  art.usage,
		}
	}
	cancelled := func() *models.PageResult {
		art.state = StateCancelled
		art.releaseImages()
		return p.cancelledResult(req, pageIndex)
	}

	// S1.3-S1.5: page handle, text extraction, path decision
	if run.token.IsCancelled() {
		return cancelled(), nil
	}
	if err := p.pdfPool.Run(ctx, func() error {
		return p.stageResolve(req, art)
	}); err != nil {
		return fail("resolve", err), nil
	}
	art.state = StatePageReady

	// Image path: S1.10-S6 render happened in stageResolve; encode here
	if art.contentType == models.ContentTypeImage {
		if run.token.IsCancelled() {
			return cancelled(), nil
		}
		if err := p.encodePool.Run(ctx, func() error {
			return p.stageEncode(art)
		}); err != nil {
			return fail("encode", err), nil
		}
		art.state = StateImageEncoded
	} else {
		art.state = StateTextReady
	}

	// S1.6: text path detection runs now, on the page's image blocks.
	// Image path detection is deferred until the LLM hints at presence.
	if art.contentType == models.ContentTypeText {
		p.detectOnBlocks(ctx, run, art)
	}

	// S7: LLM call
	if run.token.IsCancelled() {
		return cancelled(), nil
	}
	if err := p.runWithRetries(func() error {
		return p.llmPool.Run(ctx, func() error {
			return p.stageLLM(ctx, req, art, headers)
		})
	}, art); err != nil {
		return fail("llm", err), nil
	}
	art.state = StateLLMDone

	if run.token.IsCancelled() {
		// In-flight call completed; result is discarded
		return cancelled(), nil
	}

	// S8: parse/normalize happened inside the client; validate here
	if err := p.runWithRetries(func() error {
		return p.parsePool.Run(ctx, func() error {
			return p.stageParse(art)
		})
	}, art); err != nil {
		return fail("parse", err), nil
	}
	art.state = StateParsed

	// Deferred image-path detection on LLM hints
	if art.contentType == models.ContentTypeImage {
		p.detectOnOriginal(ctx, run, art)
	}

	// S9: merge
	result := &models.PageResult{
		DocumentID:       req.DocumentID,
		PageNumber:       pageIndex + 1,
		ContentType:      art.contentType,
		HierarchicalData: art.response,
		Signatures:       art.signatures,
		Faces:            art.faces,
		DebugOverlay:     art.overlay,
		TokenUsage:       art.usage,
		FinishReason:     art.finish,
		DurationMs:       art.duration,
		Retries:          art.retries,
	}
	art.state = StateMerged

	detected := tableHeaders(art.response)
	art.releaseImages()
	art.state = StateDone
	return result, detected
}

// runWithRetries re-runs a stage with the same inputs up to the configured
// retry count.
func (p *Pipeline) runWithRetries(fn func() error, art *pageArtifacts) error {
	retries := p.config.MaxRetriesPerStage
	if retries < 0 {
		retries = 0
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			art.retries++
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

// stageResolve extracts text, scores it, and picks the text or image path.
// The image path renders and enhances here so the whole stage stays on the
// PDF pool.
func (p *Pipeline) stageResolve(req *Request, art *pageArtifacts) error {
	if p.config.PreferText {
		text, quality, err := p.resolver.ExtractText(req.DocumentID, req.PDFBytes, art.pageIndex)
		if err == nil {
			art.text = text
			art.quality = quality
			threshold := p.config.TextConfidenceThreshold
			if threshold <= 0 {
				threshold = 0.6
			}
			if quality.Confidence >= threshold {
				art.contentType = models.ContentTypeText
				return nil
			}
		} else {
			p.logger.Debug().
				Str("document_id", req.DocumentID).
				Int("page", art.pageIndex+1).
				Err(err).
				Msg("Text extraction failed, falling back to image path")
		}
	}

	art.contentType = models.ContentTypeImage
	rendered, err := p.resolver.RenderPage(req.DocumentID, req.PDFBytes, art.pageIndex)
	if err != nil {
		return err
	}
	art.original = rendered.Original
	art.width = rendered.Width
	art.height = rendered.Height
	art.state = StateImageRendered

	// Enhancement is applied by the resolver during rendering
	art.processed = rendered.Processed
	art.state = StateImageEnhanced
	return nil
}

// stageEncode encodes the enhanced page image as a JPEG data URL and drops
// the processed pixels.
func (p *Pipeline) stageEncode(art *pageArtifacts) error {
	dataURL, err := p.resolver.EncodeJPEG(art.processed)
	if err != nil {
		return err
	}
	art.imageDataURL = dataURL
	art.processed = nil
	return nil
}

// stageLLM resolves the prompt and performs the extraction call
func (p *Pipeline) stageLLM(ctx context.Context, req *Request, art *pageArtifacts, headers []string) error {
	pageCtx := &prompts.PageContext{
		IsFirstPage:  art.pageIndex == 0,
		PageNumber:   art.pageIndex + 1,
		TableHeaders: headers,
	}

	prompt, err := p.prompts.Lookup(req.Task, art.contentType, req.DocumentType, pageCtx)
	if err != nil {
		return err
	}

	promptText := prompt.Text
	if req.TemplateHints != "" {
		promptText += "\n\nTEMPLATE CONTEXT:\n" + req.TemplateHints
	}

	extractReq := &interfaces.ExtractionRequest{
		Task:        req.Task,
		ContentType: art.contentType,
		Prompt:      promptText,
		Schema:      prompt.Schema,
		DocTag:      req.DocumentID,
	}
	if art.contentType == models.ContentTypeText {
		extractReq.Text = art.text.Text
	} else {
		extractReq.ImageDataURL = art.imageDataURL
	}

	resp, err := p.llm.Extract(ctx, extractReq)
	if err != nil {
		return err
	}

	art.response = resp.HierarchicalData
	art.usage = resp.Usage
	art.finish = resp.FinishReason
	art.model = resp.Model
	art.duration = resp.DurationMs
	return nil
}

// stageParse validates the normalized tree
func (p *Pipeline) stageParse(art *pageArtifacts) error {
	if art.response == nil || art.response.IsEmpty() {
		return &emptyPageError{page: art.pageIndex + 1}
	}
	return nil
}

type emptyPageError struct {
	page int
}

func (e *emptyPageError) Error() string {
	return "extraction returned no data for page"
}

// detectOnBlocks runs signature/face detection over the page's discrete
// image blocks (text path). A block with any signature hit is returned
// directly as the cropped signature.
func (p *Pipeline) detectOnBlocks(ctx context.Context, run *documentRun, art *pageArtifacts) {
	if art.text == nil || len(art.text.ImageBlocks) == 0 {
		return
	}
	sigEnabled := p.signature != nil && p.signature.IsEnabled()
	faceEnabled := p.face != nil && p.face.IsEnabled()
	if !sigEnabled && !faceEnabled {
		return
	}

	var imgs []image.Image
	var blocks []models.ImageBlock
	for _, block := range art.text.ImageBlocks {
		img, err := decodeBlockImage(block)
		if err != nil {
			continue
		}
		imgs = append(imgs, img)
		blocks = append(blocks, block)
	}
	if len(imgs) == 0 {
		return
	}

	_ = p.detectPool.Run(ctx, func() error {
		if sigEnabled {
			hits, err := p.signature.DetectInImagesBatch(ctx, imgs)
			if err == nil {
				for i, dets := range hits {
					for _, d := range dets {
						art.signatures = append(art.signatures, detect.DetectionFromImageBlock(blocks[i], d.Confidence))
					}
				}
			}
		}
		if faceEnabled {
			hits, err := p.face.DetectInImagesBatch(ctx, imgs)
			if err == nil {
				for _, dets := range hits {
					art.faces = append(art.faces, dets...)
				}
			}
		}
		return nil
	})
}

// llmCoordSpace is the coordinate range vision models report bboxes in
const llmCoordSpace = 1000.0

// detectOnOriginal runs deferred image-path detection when the LLM response
// hints at a signature or photo ID. Without a signature detector, the model's
// own signature_location bbox is cropped instead. Pages with signature hits
// also get a debug overlay image for review.
func (p *Pipeline) detectOnOriginal(ctx context.Context, run *documentRun, art *pageArtifacts) {
	if art.original == nil || art.response == nil {
		return
	}

	sigEnabled := p.signature != nil && p.signature.IsEnabled()
	faceEnabled := p.face != nil && p.face.IsEnabled()

	hasSignature := hintBool(art.response, "has_signature")
	wantSignature := hasSignature && sigEnabled
	wantFace := hintBool(art.response, "has_photo_id") && faceEnabled

	if wantSignature || wantFace {
		_ = p.detectPool.Run(ctx, func() error {
			if wantSignature {
				if dets, err := p.signature.DetectInImage(ctx, art.original); err == nil {
					art.signatures = append(art.signatures, dets...)
				}
			}
			if wantFace {
				if dets, err := p.face.DetectInImage(ctx, art.original); err == nil {
					art.faces = append(art.faces, dets...)
				}
			}
			return nil
		})
	}

	if hasSignature && !sigEnabled {
		p.cropFromModelBox(art)
	}

	if len(art.signatures) > 0 {
		if overlay, err := detect.OverlayBase64(art.original, art.signatures); err == nil {
			art.overlay = overlay
		}
	}
}

// cropFromModelBox turns the LLM's signature_location bbox into a signature
// detection with a cropped region image.
func (p *Pipeline) cropFromModelBox(art *pageArtifacts) {
	bbox, ok := hintBBox(art.response, "signature_location")
	if !ok {
		return
	}

	pixel := p.resolver.ConvertCoordinates(bbox, llmCoordSpace, llmCoordSpace, float64(art.width), float64(art.height))
	det := models.Detection{BBox: pixel, IsHit: true}
	if crop, err := p.resolver.CropRegion(art.original, pixel); err == nil {
		det.ImageBase64 = crop
	}
	art.signatures = append(art.signatures, det)
}

func decodeBlockImage(block models.ImageBlock) (image.Image, error) {
	payload := block.ImageBase64
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
