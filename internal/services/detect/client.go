package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/httpclient"
	"github.com/ternarybob/scriba/internal/models"
)

// inferenceClient posts images to an HTTP inference endpoint and decodes the
// detection response. Both detectors share it; they differ only in endpoint
// and crop behavior.
type inferenceClient struct {
	endpoint  string
	threshold float64
	client    *http.Client
	logger    arbor.ILogger
}

type inferenceRequest struct {
	Images []string `json:"images"` // base64 JPEG payloads
}

type inferenceResponse struct {
	Results [][]inferenceDetection `json:"results"`
}

type inferenceDetection struct {
	BBox       [4]float64 `json:"bbox"`
	Confidence float64    `json:"confidence"`
}

func newInferenceClient(endpoint string, cfg *common.DetectorsConfig, logger arbor.ILogger) *inferenceClient {
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &inferenceClient{
		endpoint:  endpoint,
		threshold: cfg.ConfidenceThreshold,
		client:    httpclient.NewDefaultHTTPClient(timeout),
		logger:    logger,
	}
}

func (c *inferenceClient) enabled() bool {
	return c != nil && c.endpoint != ""
}

// inferBatch runs one batch inference call. Any failure returns an error; the
// detectors translate that into an empty batch.
func (c *inferenceClient) inferBatch(ctx context.Context, imgs []image.Image) ([][]models.Detection, error) {
	payload := inferenceRequest{Images: make([]string, 0, len(imgs))}
	for _, img := range imgs {
		encoded, err := encodeImageBase64(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode image for inference: %w", err)
		}
		payload.Images = append(payload.Images, encoded)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference endpoint returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	if len(decoded.Results) != len(imgs) {
		return nil, fmt.Errorf("inference returned %d results for %d images", len(decoded.Results), len(imgs))
	}

	results := make([][]models.Detection, len(imgs))
	for i, raw := range decoded.Results {
		for _, d := range raw {
			if d.Confidence < c.threshold {
				continue
			}
			results[i] = append(results[i], models.Detection{
				BBox:       d.BBox,
				Confidence: d.Confidence,
				IsHit:      true,
			})
		}
	}
	return results, nil
}
