package pdf

import (
	"math"

	"github.com/ternarybob/scriba/internal/common"
)

// convertCoordinates maps a bbox from the LLM's reported image space onto the
// actual rendered pixel space with a linear scale plus configured tuning.
// When the X and Y scales agree within 1% they are unified to their mean,
// which avoids skew from rounding in the model's reported dimensions.
func convertCoordinates(bbox [4]float64, llmW, llmH, actualW, actualH float64, cfg *common.CoordinatesConfig) [4]float64 {
	if llmW <= 0 || llmH <= 0 || actualW <= 0 || actualH <= 0 {
		return bbox
	}

	scaleX := actualW / llmW
	scaleY := actualH / llmH

	maxScale := math.Max(scaleX, scaleY)
	if maxScale > 0 && math.Abs(scaleX-scaleY)/maxScale < 0.01 {
		unified := (scaleX + scaleY) / 2
		scaleX = unified
		scaleY = unified
	}

	scaleX += cfg.ScaleXExtra
	scaleY += cfg.ScaleYExtra

	return [4]float64{
		bbox[0]*scaleX + cfg.OffsetX,
		bbox[1]*scaleY + cfg.OffsetY,
		bbox[2]*scaleX + cfg.OffsetX,
		bbox[3]*scaleY + cfg.OffsetY,
	}
}
