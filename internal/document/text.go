package document

import "strings"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// renderTXT prefixes a UTF-8 byte order mark so Windows editors pick the
// right encoding.
func renderTXT(text string, _ Meta) ([]byte, error) {
	out := make([]byte, 0, len(utf8BOM)+len(text)+1)
	out = append(out, utf8BOM...)
	out = append(out, text...)
	out = append(out, '\n')
	return out, nil
}

func renderMD(text string, meta Meta) ([]byte, error) {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(meta.title())
	b.WriteString("\n\n")
	if meta.Subtitle != "" {
		b.WriteString(meta.Subtitle)
		b.WriteString("\n\n")
	}
	b.WriteString(text)
	b.WriteString("\n")
	return []byte(b.String()), nil
}
