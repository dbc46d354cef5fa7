package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/scriba/internal/models"
)

func TestScoreTextQuality_EmptyPage(t *testing.T) {
	quality := ScoreTextQuality(&models.TextData{Text: "   "})
	assert.Equal(t, 0.0, quality.Confidence)
	assert.False(t, quality.IsSelectable)
	assert.Equal(t, 0, quality.CharCount)
}

func TestScoreTextQuality_RichTextPage(t *testing.T) {
	data := &models.TextData{
		Text:       strings.Repeat("word ", 500),
		TextBlocks: 12,
	}
	quality := ScoreTextQuality(data)

	assert.Equal(t, 500, quality.WordCount)
	assert.Equal(t, 1.0, quality.Confidence, "dense prose caps at 1.0")
	assert.True(t, quality.IsSelectable)
}

func TestScoreTextQuality_ScannedPageWithStrayLabel(t *testing.T) {
	// One stray label over a full-page scan: too little text to trust
	data := &models.TextData{
		Text:        "Total: 123.45",
		TextBlocks:  0,
		ImageBlocks: []models.ImageBlock{{}},
	}
	quality := ScoreTextQuality(data)

	assert.InDelta(t, 0.30, quality.Confidence, 1e-9)
	assert.False(t, quality.IsSelectable)
}

func TestScoreTextQuality_VectorLabelSoup(t *testing.T) {
	// A long unbroken token has an implausible words/chars ratio
	data := &models.TextData{
		Text:        strings.Repeat("x", 600),
		TextBlocks:  1,
		ImageBlocks: []models.ImageBlock{{}, {}, {}},
	}
	quality := ScoreTextQuality(data)

	assert.InDelta(t, 0.35, quality.Confidence, 1e-9)
	assert.False(t, quality.IsSelectable)
}

func TestScoreTextQuality_SelectableMatchesThreshold(t *testing.T) {
	for _, data := range []*models.TextData{
		{Text: strings.Repeat("lorem ipsum dolor ", 60), TextBlocks: 6},
		{Text: "short", TextBlocks: 1},
		{Text: strings.Repeat("alpha beta gamma ", 200), TextBlocks: 15},
	} {
		quality := ScoreTextQuality(data)
		assert.Equal(t, quality.Confidence >= SelectableThreshold, quality.IsSelectable)
	}
}

func TestSegmentBlocks(t *testing.T) {
	blocks := segmentBlocks("First paragraph.\n\nSecond paragraph\nwith a wrapped line.\n\n\n\nThird.")
	assert.Len(t, blocks, 3)
	assert.Equal(t, "First paragraph.", blocks[0].Text)
	assert.Equal(t, "Third.", blocks[2].Text)

	assert.Empty(t, segmentBlocks("  \n\n  "))
}
