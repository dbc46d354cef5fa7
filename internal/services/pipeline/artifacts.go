package pipeline

import (
	"image"

	"github.com/ternarybob/scriba/internal/models"
)

// pageArtifacts is the per-page scratch space flowing through the stages.
// Each page is driven by exactly one goroutine, so no locking: a stage writes
// only its own outputs and later stages read them.
type pageArtifacts struct {
	pageIndex int // 0-based
	state     PageState

	contentType models.ContentType
	text        *models.TextData
	quality     *models.TextQuality

	// Image path artifacts. processed is dropped after encoding; original is
	// retained until merge for deferred detector crops, then dropped.
	imageDataURL string
	processed    image.Image
	original     image.Image
	width        int
	height       int

	response *models.Value
	usage    models.TokenUsage
	finish   string
	model    string
	duration int64
	retries  int

	signatures []models.Detection
	faces      []models.Detection
	overlay    string
}

// releaseImages drops retained image references once the page is merged
func (a *pageArtifacts) releaseImages() {
	a.processed = nil
	a.original = nil
	a.imageDataURL = ""
}

// hintBool reads a boolean presence hint (has_signature, has_photo_id) from
// the response root.
func hintBool(v *models.Value, key string) bool {
	obj := v.Object()
	if obj == nil {
		return false
	}
	hint, ok := obj.Get(key)
	if !ok {
		return false
	}
	switch hint.Kind() {
	case models.KindBool:
		return hint.Bool()
	case models.KindString:
		return hint.Str() == "true" || hint.Str() == "yes"
	default:
		return false
	}
}

// hintBBox reads a four-number bbox hint (xmin, ymin, xmax, ymax) from the
// response root.
func hintBBox(v *models.Value, key string) ([4]float64, bool) {
	obj := v.Object()
	if obj == nil {
		return [4]float64{}, false
	}
	raw, ok := obj.Get(key)
	if !ok || raw.Kind() != models.KindArray {
		return [4]float64{}, false
	}
	items := raw.Items()
	if len(items) != 4 {
		return [4]float64{}, false
	}

	var bbox [4]float64
	for i, item := range items {
		switch item.Kind() {
		case models.KindNumber:
			bbox[i] = item.Float()
		case models.KindInt:
			bbox[i] = float64(item.Int())
		default:
			return [4]float64{}, false
		}
	}
	return bbox, true
}

// tableHeaders reads the _table_headers array from a bank statement first
// page response.
func tableHeaders(v *models.Value) []string {
	obj := v.Object()
	if obj == nil {
		return nil
	}
	raw, ok := obj.Get("_table_headers")
	if !ok || raw.Kind() != models.KindArray {
		return nil
	}

	var headers []string
	for _, item := range raw.Items() {
		if item.Kind() == models.KindString && item.Str() != "" {
			headers = append(headers, item.Str())
		}
	}
	return headers
}
