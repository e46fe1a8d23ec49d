package document

import (
	"bytes"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"
)

const htmlStyle = `body{font-family:Helvetica,Arial,sans-serif;color:#0F172A;max-width:760px;margin:40px auto;padding:0 24px;line-height:1.55}` +
	`header{border-bottom:1px solid #E2E8F0;margin-bottom:24px}` +
	`.subtitle,footer{color:#475569}` +
	`footer{border-top:1px solid #E2E8F0;margin-top:32px;padding-top:8px;font-size:12px}`

// renderHTML builds a standalone page. Text nodes are escaped by gomponents
// and line breaks inside a paragraph become <br> elements.
func renderHTML(text string, meta Meta) ([]byte, error) {
	page := html.Doctype(html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(meta.title())),
			html.StyleEl(gomponents.Raw(htmlStyle)),
		),
		html.Body(
			html.Header(
				html.H1(gomponents.Text(meta.title())),
				gomponents.If(meta.Subtitle != "", html.P(html.Class("subtitle"), gomponents.Text(meta.Subtitle))),
			),
			html.Main(gomponents.Map(Blocks(text), htmlBlock)),
			html.Footer(gomponents.Text(meta.footerLine())),
		),
	))

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func htmlBlock(b Block) gomponents.Node {
	if b.Heading() {
		switch b.Level {
		case 1, 2:
			return html.H2(gomponents.Text(b.Lines[0]))
		case 3:
			return html.H3(gomponents.Text(b.Lines[0]))
		default:
			return html.H4(gomponents.Text(b.Lines[0]))
		}
	}
	children := make([]gomponents.Node, 0, 2*len(b.Lines))
	for i, line := range b.Lines {
		if i > 0 {
			children = append(children, html.Br())
		}
		children = append(children, gomponents.Text(line))
	}
	return html.P(children...)
}
