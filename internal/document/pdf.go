package document

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Layout in points on a US letter page.
const (
	pdfMarginLeft   = 72.0
	pdfMarginRight  = 60.0
	pdfMarginTop    = 90.0
	pdfMarginBottom = 60.0
)

type rgb struct{ r, g, b int }

var (
	colorText   = rgb{15, 23, 42}
	colorMuted  = rgb{71, 85, 105}
	colorBorder = rgb{226, 232, 240}
	colorAccent = rgb{99, 102, 241}
)

// renderPDF lays out a cover page followed by the body blocks. Every page
// carries a header with the title and a footer with the brand line and the
// page number.
func renderPDF(text string, meta Meta) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	now := meta.now()

	pdf.SetTitle(meta.title(), true)
	pdf.SetAuthor(meta.brand(), true)
	pdf.SetCreator(meta.brand(), true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetMargins(pdfMarginLeft, pdfMarginTop, pdfMarginRight)
	pdf.SetAutoPageBreak(true, pdfMarginBottom)

	pageW, pageH := pdf.GetPageSize()
	title := tr(meta.title())
	footer := tr(meta.footerLine())

	pdf.SetHeaderFunc(func() {
		setDraw(pdf, colorBorder)
		pdf.SetLineWidth(0.6)
		pdf.Line(40, 60, pageW-40, 60)
		pdf.SetFont("Helvetica", "B", 10)
		setText(pdf, colorText)
		pdf.Text(48, 45, title)
	})
	pdf.SetFooterFunc(func() {
		setDraw(pdf, colorBorder)
		pdf.SetLineWidth(0.5)
		pdf.Line(52, pageH-40, pageW-48, pageH-40)
		pdf.SetFont("Helvetica", "", 7)
		setText(pdf, colorMuted)
		pdf.Text(52, pageH-28, footer)
		page := fmt.Sprintf("Page %d", pdf.PageNo())
		pdf.Text(pageW-48-pdf.GetStringWidth(page), pageH-28, page)
	})

	// Cover.
	pdf.AddPage()
	pdf.Ln(58)
	pdf.SetFont("Helvetica", "B", 18)
	setText(pdf, colorText)
	pdf.MultiCell(0, 22, title, "", "L", false)
	if meta.Subtitle != "" {
		pdf.Ln(14)
		pdf.SetFont("Helvetica", "", 12)
		setText(pdf, colorMuted)
		pdf.MultiCell(0, 16, tr(meta.Subtitle), "", "L", false)
	}
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 9)
	setText(pdf, colorMuted)
	pdf.MultiCell(0, 12, now.Format("January 2, 2006 15:04 MST"), "", "L", false)

	// Body.
	pdf.AddPage()
	for _, b := range Blocks(text) {
		if b.Heading() {
			size := 13.0
			if b.Level > 2 {
				size = 11
			}
			pdf.SetFont("Helvetica", "B", size)
			setText(pdf, colorAccent)
			pdf.MultiCell(0, size+5, tr(b.Lines[0]), "", "L", false)
			pdf.Ln(4)
			continue
		}
		pdf.SetFont("Helvetica", "", 10)
		setText(pdf, colorText)
		pdf.MultiCell(0, 15, tr(b.Text()), "", "L", false)
		pdf.Ln(10)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }

func setDraw(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
