package detect

import (
	"context"
	"image"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// SignatureDetector finds handwritten signatures in page images via an HTTP
// inference endpoint. Disabled (and inert) when no endpoint is configured.
type SignatureDetector struct {
	client *inferenceClient
	logger arbor.ILogger
}

var _ interfaces.Detector = (*SignatureDetector)(nil)

// NewSignatureDetector creates a signature detector
func NewSignatureDetector(cfg *common.DetectorsConfig, logger arbor.ILogger) *SignatureDetector {
	d := &SignatureDetector{logger: logger}
	if cfg.SignatureEndpoint != "" {
		d.client = newInferenceClient(cfg.SignatureEndpoint, cfg, logger)
	}
	return d
}

// IsEnabled reports whether an inference endpoint is configured
func (d *SignatureDetector) IsEnabled() bool {
	return d.client.enabled()
}

// DetectInImage runs inference on a single image
func (d *SignatureDetector) DetectInImage(ctx context.Context, img image.Image) ([]models.Detection, error) {
	results, err := d.DetectInImagesBatch(ctx, []image.Image{img})
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// DetectInImagesBatch runs batch inference. Any batch error yields an empty
// batch; detection is best-effort and never fails a page.
func (d *SignatureDetector) DetectInImagesBatch(ctx context.Context, imgs []image.Image) ([][]models.Detection, error) {
	if !d.IsEnabled() || len(imgs) == 0 {
		return make([][]models.Detection, len(imgs)), nil
	}

	results, err := d.client.inferBatch(ctx, imgs)
	if err != nil {
		d.logger.Warn().Err(err).Int("images", len(imgs)).Msg("Signature batch inference failed, returning empty")
		return make([][]models.Detection, len(imgs)), nil
	}

	for i := range results {
		for j := range results[i] {
			attachCrop(imgs[i], &results[i][j], results[i][j].BBox)
		}
	}
	return results, nil
}

// DetectionFromImageBlock wraps a discrete PDF image block as a signature
// detection. The block already is the cropped signature; no re-cropping.
func DetectionFromImageBlock(block models.ImageBlock, confidence float64) models.Detection {
	return models.Detection{
		BBox:        block.BBox,
		Confidence:  confidence,
		IsHit:       true,
		ImageBase64: block.ImageBase64,
	}
}
