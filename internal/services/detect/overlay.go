package detect

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/pdf"
)

const overlayBorderPx = 4

var overlayColor = color.RGBA{R: 220, G: 40, B: 40, A: 255}

// RenderOverlay returns a copy of the page image with a border drawn around
// each detection's bbox, for reviewing where signatures were found.
func RenderOverlay(img image.Image, detections []models.Detection) image.Image {
	out := pdf.SubImage(img, img.Bounds()).(*image.RGBA)
	bounds := out.Bounds()

	for _, det := range detections {
		x0 := clamp(int(det.BBox[0]), bounds.Min.X, bounds.Max.X)
		y0 := clamp(int(det.BBox[1]), bounds.Min.Y, bounds.Max.Y)
		x1 := clamp(int(det.BBox[2]), bounds.Min.X, bounds.Max.X)
		y1 := clamp(int(det.BBox[3]), bounds.Min.Y, bounds.Max.Y)
		if x1 <= x0 || y1 <= y0 {
			continue
		}

		paint := func(rect image.Rectangle) {
			draw.Draw(out, rect.Intersect(bounds), image.NewUniform(overlayColor), image.Point{}, draw.Src)
		}
		paint(image.Rect(x0, y0, x1, y0+overlayBorderPx))
		paint(image.Rect(x0, y1-overlayBorderPx, x1, y1))
		paint(image.Rect(x0, y0, x0+overlayBorderPx, y1))
		paint(image.Rect(x1-overlayBorderPx, y0, x1, y1))
	}
	return out
}

// OverlayBase64 renders the detection overlay and encodes it as base64 JPEG
func OverlayBase64(img image.Image, detections []models.Detection) (string, error) {
	return encodeImageBase64(RenderOverlay(img, detections))
}
