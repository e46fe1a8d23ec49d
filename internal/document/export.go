package document

import (
	"fmt"
	"strings"
	"time"

	"asset-forge/internal/domain"
)

// Meta carries the presentation details shared by all exporters.
type Meta struct {
	Title    string
	Subtitle string
	Prefix   string // filename prefix, e.g. "prompt_optimizer"
	Brand    string
	Now      time.Time
}

func (m Meta) title() string {
	if m.Title != "" {
		return m.Title
	}
	return m.brand() + " Document"
}

func (m Meta) brand() string {
	if m.Brand != "" {
		return m.Brand
	}
	return "Aetheron"
}

func (m Meta) now() time.Time {
	if m.Now.IsZero() {
		return time.Now().UTC()
	}
	return m.Now.UTC()
}

// footerLine is printed at the bottom of paged formats.
func (m Meta) footerLine() string {
	return m.brand() + " Document"
}

// Artifact is a rendered document ready for upload.
type Artifact struct {
	Data        []byte
	Filename    string
	ContentType string
	Format      domain.Format
}

// renderFunc renders normalized text into a file body.
type renderFunc func(text string, meta Meta) ([]byte, error)

type exporter struct {
	contentType string
	render      renderFunc
}

var exporters = map[domain.Format]exporter{
	domain.FormatTXT:  {contentType: "text/plain; charset=utf-8", render: renderTXT},
	domain.FormatMD:   {contentType: "text/markdown; charset=utf-8", render: renderMD},
	domain.FormatHTML: {contentType: "text/html; charset=utf-8", render: renderHTML},
	domain.FormatPDF:  {contentType: "application/pdf", render: renderPDF},
	domain.FormatDOCX: {contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", render: renderDOCX},
}

// Supported reports whether f has a dedicated exporter.
func Supported(f domain.Format) bool {
	_, ok := exporters[f]
	return ok
}

// Resolve returns the format that Export will actually produce for f.
// Unknown formats resolve to txt.
func Resolve(f domain.Format) domain.Format {
	if Supported(f) {
		return f
	}
	return domain.FormatTXT
}

// Filename builds "<prefix>_<unix>.<ext>".
func Filename(prefix string, f domain.Format, now time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "document"
	}
	return fmt.Sprintf("%s_%d.%s", prefix, now.Unix(), f)
}

// Export renders text in format f. An unknown format is exported as txt,
// so Export only fails when a renderer itself fails.
func Export(text string, f domain.Format, meta Meta) (*Artifact, error) {
	f = Resolve(f)
	ex := exporters[f]
	data, err := ex.render(text, meta)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", f, err)
	}
	return &Artifact{
		Data:        data,
		Filename:    Filename(meta.Prefix, f, meta.now()),
		ContentType: ex.contentType,
		Format:      f,
	}, nil
}
