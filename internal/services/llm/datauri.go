package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// splitDataURL splits an inline image data URL into its media type and raw
// base64 payload for providers that take the two separately.
func splitDataURL(dataURL string) (mediaType string, b64 string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("not a data URL")
	}
	rest := strings.TrimPrefix(dataURL, "data:")
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", fmt.Errorf("data URL is not base64-encoded")
	}
	return rest[:idx], rest[idx+len(";base64,"):], nil
}

// decodeDataURL returns the decoded bytes and media type of a data URL
func decodeDataURL(dataURL string) (mediaType string, data []byte, err error) {
	mediaType, b64, err := splitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err = base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return mediaType, data, nil
}
