package pdf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriba/internal/common"
)

// fixturePDF builds a small text PDF in memory, one page per text argument
func fixturePDF(t *testing.T, pages ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		doc.MultiCell(180, 6, text, "", "L", false)
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func testResolver() *Resolver {
	return NewResolver(&common.PDFConfig{RenderScale: 2, JPEGQuality: 85}, common.GetLogger())
}

func TestResolverPageCount(t *testing.T) {
	r := testResolver()
	pdfBytes := fixturePDF(t, "page one", "page two", "page three")
	defer r.Release("doc_1")

	count, err := r.PageCount("doc_1", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestResolverPageCount_Garbage(t *testing.T) {
	r := testResolver()
	_, err := r.PageCount("doc_bad", []byte("not a pdf"))
	require.Error(t, err)

	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
	assert.Equal(t, "open", renderErr.Op)
}

func TestResolverExtractText(t *testing.T) {
	r := testResolver()
	body := "Invoice Number INV-2024-001\nTotal Due 1234.50\n" + strings.Repeat("terms and conditions apply to this invoice ", 30)
	pdfBytes := fixturePDF(t, body)
	defer r.Release("doc_1")

	data, quality, err := r.ExtractText("doc_1", pdfBytes, 0)
	require.NoError(t, err)

	assert.Contains(t, data.Text, "INV-2024-001")
	assert.Greater(t, quality.CharCount, 100)
	assert.Greater(t, quality.WordCount, 50)
	assert.Equal(t, quality.Confidence >= SelectableThreshold, quality.IsSelectable)
}

func TestResolverExtractText_PageOutOfRange(t *testing.T) {
	r := testResolver()
	pdfBytes := fixturePDF(t, "only page")
	defer r.Release("doc_1")

	_, _, err := r.ExtractText("doc_1", pdfBytes, 5)
	assert.Error(t, err)
}

func TestResolverRenderPage(t *testing.T) {
	r := testResolver()
	pdfBytes := fixturePDF(t, "render me")
	defer r.Release("doc_1")

	rendered, err := r.RenderPage("doc_1", pdfBytes, 0)
	require.NoError(t, err)
	assert.Greater(t, rendered.Width, 0)
	assert.Greater(t, rendered.Height, 0)
	assert.NotNil(t, rendered.Original)
	assert.NotNil(t, rendered.Processed)

	dataURL, err := r.EncodeJPEG(rendered.Processed)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dataURL, "data:image/jpeg;base64,"))
}

func TestResolverReleaseAllowsReopen(t *testing.T) {
	r := testResolver()
	pdfBytes := fixturePDF(t, "a page")

	_, err := r.PageCount("doc_1", pdfBytes)
	require.NoError(t, err)
	r.Release("doc_1")

	count, err := r.PageCount("doc_1", pdfBytes)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	r.Release("doc_1")
}
