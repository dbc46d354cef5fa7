package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Enhance prepares a rendered page for the vision model: grayscale with a
// linear contrast stretch. Scanned pages with weak toner gain the most.
func Enhance(src image.Image) image.Image {
	bounds := src.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, src, bounds.Min, draw.Src)

	// Find the used luminance range
	min, max := uint8(255), uint8(0)
	for i := range gray.Pix {
		p := gray.Pix[i]
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	if max <= min || (min == 0 && max == 255) {
		return gray
	}

	scale := 255.0 / float64(max-min)
	for i := range gray.Pix {
		v := float64(gray.Pix[i]-min) * scale
		if v > 255 {
			v = 255
		}
		gray.Pix[i] = uint8(v)
	}
	return gray
}

// Downscale resizes an image so its longest side is at most maxSide pixels,
// using Catmull-Rom resampling. Returns the input unchanged when it already
// fits.
func Downscale(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return src
	}

	var nw, nh int
	if w >= h {
		nw = maxSide
		nh = h * maxSide / w
	} else {
		nh = maxSide
		nw = w * maxSide / h
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// encodeJPEGDataURL encodes an image as a base64 JPEG data URL
func encodeJPEGDataURL(img image.Image, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// cropRegionDataURL crops bbox out of img, pads it with white, and encodes
// the result as a base64 PNG data URL.
func cropRegionDataURL(img image.Image, bbox [4]float64, padding int) (string, error) {
	bounds := img.Bounds()

	x0 := clampInt(int(bbox[0]), bounds.Min.X, bounds.Max.X)
	y0 := clampInt(int(bbox[1]), bounds.Min.Y, bounds.Max.Y)
	x1 := clampInt(int(bbox[2]), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(bbox[3]), bounds.Min.Y, bounds.Max.Y)
	if x1 <= x0 || y1 <= y0 {
		return "", fmt.Errorf("empty crop region %v", bbox)
	}

	w := x1 - x0
	h := y1 - y0
	dst := image.NewRGBA(image.Rect(0, 0, w+2*padding, h+2*padding))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(padding, padding, padding+w, padding+h), img, image.Pt(x0, y0), draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeBase64Image encodes an image region as plain base64 PNG (no data URL
// prefix), used for detection records.
func EncodeBase64Image(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SubImage crops a rectangle out of an image into a fresh buffer
func SubImage(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
