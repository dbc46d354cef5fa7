package detect

import (
	"context"
	"image"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
)

// FaceDetector finds faces (photo-ID crops) in page images via an HTTP
// inference endpoint. The returned crop is the expanded photo-ID region, not
// the bare face box.
type FaceDetector struct {
	client *inferenceClient
	logger arbor.ILogger
}

var _ interfaces.Detector = (*FaceDetector)(nil)

// NewFaceDetector creates a face detector
func NewFaceDetector(cfg *common.DetectorsConfig, logger arbor.ILogger) *FaceDetector {
	d := &FaceDetector{logger: logger}
	if cfg.FaceEndpoint != "" {
		d.client = newInferenceClient(cfg.FaceEndpoint, cfg, logger)
	}
	return d
}

// IsEnabled reports whether an inference endpoint is configured
func (d *FaceDetector) IsEnabled() bool {
	return d.client.enabled()
}

// DetectInImage runs inference on a single image
func (d *FaceDetector) DetectInImage(ctx context.Context, img image.Image) ([]models.Detection, error) {
	results, err := d.DetectInImagesBatch(ctx, []image.Image{img})
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}

// DetectInImagesBatch runs batch inference. Any batch error yields an empty
// batch.
func (d *FaceDetector) DetectInImagesBatch(ctx context.Context, imgs []image.Image) ([][]models.Detection, error) {
	if !d.IsEnabled() || len(imgs) == 0 {
		return make([][]models.Detection, len(imgs)), nil
	}

	results, err := d.client.inferBatch(ctx, imgs)
	if err != nil {
		d.logger.Warn().Err(err).Int("images", len(imgs)).Msg("Face batch inference failed, returning empty")
		return make([][]models.Detection, len(imgs)), nil
	}

	for i := range results {
		bounds := imgs[i].Bounds()
		for j := range results[i] {
			expanded := expandFaceBox(results[i][j].BBox, float64(bounds.Dx()), float64(bounds.Dy()))
			attachCrop(imgs[i], &results[i][j], expanded)
		}
	}
	return results, nil
}
