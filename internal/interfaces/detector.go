package interfaces

import (
	"context"
	"image"

	"github.com/ternarybob/scriba/internal/models"
)

// Detector locates regions of interest (signatures, faces) in page images.
// Detector failures are never fatal: implementations swallow errors and
// return empty results.
type Detector interface {
	// IsEnabled reports whether the detector is configured and usable
	IsEnabled() bool

	// DetectInImage runs inference on a single image
	DetectInImage(ctx context.Context, img image.Image) ([]models.Detection, error)

	// DetectInImagesBatch runs batch inference. On any batch error the whole
	// batch returns empty; per-image fallback is not attempted.
	DetectInImagesBatch(ctx context.Context, imgs []image.Image) ([][]models.Detection, error)
}
