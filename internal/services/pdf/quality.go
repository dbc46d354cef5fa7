package pdf

import (
	"strings"
	"unicode"

	"github.com/ternarybob/scriba/internal/models"
)

// SelectableThreshold is the confidence at or above which a page's text is
// considered selectable and the pipeline takes the text path.
const SelectableThreshold = 0.5

// Words/chars ratio bands for natural-language text. Dense OCR garbage and
// vector-art label soup fall outside both bands.
const (
	idealRatioLow       = 0.10
	idealRatioHigh      = 0.25
	acceptableRatioLow  = 0.05
	acceptableRatioHigh = 0.35
)

// ScoreTextQuality derives a quality score for a page's selectable text.
// The score is a weighted sum over character volume, block structure, the
// words/chars ratio, and the text-vs-image block balance, with density
// bonuses, capped at 1.0.
func ScoreTextQuality(data *models.TextData) *models.TextQuality {
	text := data.Text
	charCount := len(strings.TrimSpace(text))
	wordCount := countWords(text)

	quality := &models.TextQuality{
		CharCount:        charCount,
		WordCount:        wordCount,
		TextBlocksCount:  data.TextBlocks,
		ImageBlocksCount: len(data.ImageBlocks),
	}

	if charCount == 0 {
		return quality
	}

	score := 0.0

	// Character volume (weight 0.3)
	switch {
	case charCount >= 1000:
		score += 0.30
	case charCount >= 500:
		score += 0.25
	case charCount >= 200:
		score += 0.20
	case charCount >= 50:
		score += 0.10
	}

	// Block structure (weight 0.2)
	switch {
	case data.TextBlocks >= 10:
		score += 0.20
	case data.TextBlocks >= 5:
		score += 0.15
	case data.TextBlocks >= 1:
		score += 0.10
	}

	// Words/chars ratio (weight 0.3)
	ratio := float64(wordCount) / float64(charCount)
	switch {
	case ratio >= idealRatioLow && ratio <= idealRatioHigh:
		score += 0.30
	case ratio >= acceptableRatioLow && ratio <= acceptableRatioHigh:
		score += 0.15
	}

	// Text-vs-image block balance (weight 0.2)
	totalBlocks := data.TextBlocks + len(data.ImageBlocks)
	if totalBlocks > 0 {
		textShare := float64(data.TextBlocks) / float64(totalBlocks)
		switch {
		case textShare >= 0.8:
			score += 0.20
		case textShare >= 0.5:
			score += 0.10
		}
	}

	// Density bonuses
	if charCount >= 2000 {
		score += 0.10
	}
	if wordCount >= 300 {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}

	quality.Confidence = score
	quality.IsSelectable = score >= SelectableThreshold
	return quality
}

func countWords(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	}))
}
