package detect

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandFaceBox(t *testing.T) {
	// 100x100 face at (200,200) in a 1000x1000 image
	box := expandFaceBox([4]float64{200, 200, 300, 300}, 1000, 1000)
	assert.Equal(t, [4]float64{150, 170, 350, 410}, box)
}

func TestExpandFaceBox_ClampsToImage(t *testing.T) {
	box := expandFaceBox([4]float64{10, 10, 110, 110}, 120, 120)
	assert.Equal(t, 0.0, box[0], "left edge clamped")
	assert.Equal(t, 0.0, box[1], "top edge clamped")
	assert.Equal(t, 120.0, box[2], "right edge clamped")
	assert.Equal(t, 120.0, box[3], "bottom edge clamped")
}

func TestCropBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 80))

	crop := cropBox(img, [4]float64{10, 20, 60, 70})
	assert.Equal(t, 50, crop.Bounds().Dx())
	assert.Equal(t, 50, crop.Bounds().Dy())

	// Out-of-range boxes clamp to the image
	crop = cropBox(img, [4]float64{-10, -10, 200, 200})
	assert.Equal(t, 100, crop.Bounds().Dx())
	assert.Equal(t, 80, crop.Bounds().Dy())
}

func TestCropBox_DegenerateRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	crop := cropBox(img, [4]float64{5, 5, 5, 5})
	assert.Equal(t, 1, crop.Bounds().Dx())
	assert.Equal(t, 1, crop.Bounds().Dy())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, clamp(5, 0, 10))
	assert.Equal(t, 0, clamp(-3, 0, 10))
	assert.Equal(t, 10, clamp(42, 0, 10))
}
