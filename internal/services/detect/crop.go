package detect

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/ternarybob/scriba/internal/models"
	"github.com/ternarybob/scriba/internal/services/pdf"
)

const cropJPEGQuality = 90

func encodeImageBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: cropJPEGQuality}); err != nil {
		return "", fmt.Errorf("jpeg encode failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// cropBox cuts the given region out of img, clamped to the image bounds
func cropBox(img image.Image, bbox [4]float64) image.Image {
	bounds := img.Bounds()
	x0 := clamp(int(bbox[0]), bounds.Min.X, bounds.Max.X)
	y0 := clamp(int(bbox[1]), bounds.Min.Y, bounds.Max.Y)
	x1 := clamp(int(bbox[2]), bounds.Min.X, bounds.Max.X)
	y1 := clamp(int(bbox[3]), bounds.Min.Y, bounds.Max.Y)
	if x1 <= x0 || y1 <= y0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	return pdf.SubImage(img, image.Rect(x0, y0, x1, y1))
}

// expandFaceBox grows a detected face box to capture the surrounding photo-ID
// context: half the box width on each side, 30% above, and just over the box
// height below (name and detail lines sit under the photo on most IDs).
func expandFaceBox(bbox [4]float64, imgW, imgH float64) [4]float64 {
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]

	expanded := [4]float64{
		bbox[0] - w*0.5,
		bbox[1] - h*0.3,
		bbox[2] + w*0.5,
		bbox[3] + h*1.1,
	}

	if expanded[0] < 0 {
		expanded[0] = 0
	}
	if expanded[1] < 0 {
		expanded[1] = 0
	}
	if expanded[2] > imgW {
		expanded[2] = imgW
	}
	if expanded[3] > imgH {
		expanded[3] = imgH
	}
	return expanded
}

// attachCrop encodes the detection's region of img into the detection record
// as lossless PNG, so signature strokes survive for later review.
func attachCrop(img image.Image, det *models.Detection, bbox [4]float64) {
	crop := cropBox(img, bbox)
	encoded, err := pdf.EncodeBase64Image(crop)
	if err != nil {
		return
	}
	det.ImageBase64 = encoded
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
