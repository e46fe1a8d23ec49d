package document

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	pdfreader "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asset-forge/internal/domain"
)

var testMeta = Meta{
	Title:    "Prompt Optimization Report",
	Subtitle: "Refined prompt & rationale",
	Prefix:   "prompt_optimizer",
	Brand:    "Aetheron",
	Now:      time.Unix(1700000000, 0),
}

const sample = "# Summary\nThe prompt is <vague> & short.\nAdd context.\n\n## Score\nClarity (0/10)"

func TestExport_Formats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		format      domain.Format
		filename    string
		contentType string
	}{
		{domain.FormatTXT, "prompt_optimizer_1700000000.txt", "text/plain; charset=utf-8"},
		{domain.FormatMD, "prompt_optimizer_1700000000.md", "text/markdown; charset=utf-8"},
		{domain.FormatHTML, "prompt_optimizer_1700000000.html", "text/html; charset=utf-8"},
		{domain.FormatPDF, "prompt_optimizer_1700000000.pdf", "application/pdf"},
		{domain.FormatDOCX, "prompt_optimizer_1700000000.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
	for _, tc := range tests {
		t.Run(string(tc.format), func(t *testing.T) {
			t.Parallel()
			art, err := Export(sample, tc.format, testMeta)
			require.NoError(t, err)
			assert.Equal(t, tc.format, art.Format)
			assert.Equal(t, tc.filename, art.Filename)
			assert.Equal(t, tc.contentType, art.ContentType)
			assert.NotEmpty(t, art.Data)
		})
	}
}

func TestExport_UnknownFormatFallsBackToTXT(t *testing.T) {
	t.Parallel()
	for _, f := range []domain.Format{"rtf", "", "PDF "} {
		art, err := Export("hello", f, testMeta)
		require.NoError(t, err)
		assert.Equal(t, domain.FormatTXT, art.Format)
		assert.True(t, strings.HasSuffix(art.Filename, ".txt"), art.Filename)
	}
}

func TestExport_TXTHasBOM(t *testing.T) {
	t.Parallel()
	art, err := Export("héllo", domain.FormatTXT, testMeta)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(art.Data, []byte{0xEF, 0xBB, 0xBF}))
	assert.Equal(t, "héllo\n", string(art.Data[3:]))
}

func TestExport_MDHasTitle(t *testing.T) {
	t.Parallel()
	art, err := Export("body", domain.FormatMD, Meta{Prefix: "x"})
	require.NoError(t, err)
	assert.Equal(t, "# Aetheron Document\n\nbody\n", string(art.Data))
}

func TestExport_HTMLEscapesAndKeepsLineBreaks(t *testing.T) {
	t.Parallel()
	art, err := Export(sample, domain.FormatHTML, testMeta)
	require.NoError(t, err)
	page := string(art.Data)

	assert.True(t, strings.HasPrefix(page, "<!doctype html>"))
	assert.Contains(t, page, "The prompt is &lt;vague&gt; &amp; short.<br>Add context.")
	assert.Contains(t, page, "<h2>Summary</h2>")
	assert.Contains(t, page, "Refined prompt &amp; rationale")
	assert.NotContains(t, page, "<vague>")
}

func TestExport_PDFHasCoverAndBody(t *testing.T) {
	t.Parallel()
	art, err := Export(sample, domain.FormatPDF, testMeta)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(art.Data, []byte("%PDF-")))

	r, err := pdfreader.NewReader(bytes.NewReader(art.Data), int64(len(art.Data)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.NumPage(), 2)
}

func TestExport_PDFLongBodyPaginates(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("A fairly long paragraph line that wraps across the page width more than once.\n\n", 120)
	art, err := Export(body, domain.FormatPDF, testMeta)
	require.NoError(t, err)

	r, err := pdfreader.NewReader(bytes.NewReader(art.Data), int64(len(art.Data)))
	require.NoError(t, err)
	assert.Greater(t, r.NumPage(), 3)
}

func TestExport_PDFNonLatinText(t *testing.T) {
	t.Parallel()
	_, err := Export("Émission — 漢字 ✓", domain.FormatPDF, testMeta)
	require.NoError(t, err)
}

func TestExport_DOCXPackage(t *testing.T) {
	t.Parallel()
	art, err := Export(sample, domain.FormatDOCX, testMeta)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(art.Data), int64(len(art.Data)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = string(body)
	}

	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/header1.xml", "word/footer1.xml", "word/styles.xml"} {
		assert.Contains(t, files, name)
	}
	doc := files["word/document.xml"]
	assert.Contains(t, doc, "The prompt is &lt;vague&gt; &amp; short.")
	assert.Contains(t, doc, `<w:br w:type="page"/>`)
	assert.Contains(t, doc, `w:val="Heading1"`)
	assert.Contains(t, files["word/footer1.xml"], " PAGE ")
	assert.Contains(t, files["word/footer1.xml"], "Aetheron Document")
	assert.Contains(t, files["word/header1.xml"], "Prompt Optimization Report")
}

func TestFilename(t *testing.T) {
	t.Parallel()
	now := time.Unix(1700000123, 0)
	assert.Equal(t, "contract_intel_1700000123.pdf", Filename("contract_intel", domain.FormatPDF, now))
	assert.Equal(t, "document_1700000123.txt", Filename(" ", domain.FormatTXT, now))
}

func TestResolve(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.FormatDOCX, Resolve(domain.FormatDOCX))
	assert.Equal(t, domain.FormatTXT, Resolve("odt"))
	assert.False(t, Supported("odt"))
}
