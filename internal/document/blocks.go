package document

import "strings"

// Block is one unit of a document body: a heading or a paragraph whose
// line breaks are kept.
type Block struct {
	Level int // 1-6 for headings, 0 for paragraphs
	Lines []string
}

// Heading reports whether b is a heading.
func (b Block) Heading() bool { return b.Level > 0 }

// Text joins the block's lines with newlines.
func (b Block) Text() string { return strings.Join(b.Lines, "\n") }

// Blocks splits normalized text into headings and paragraphs. Paragraphs are
// separated by blank lines; a "#" line always stands alone.
func Blocks(text string) []Block {
	var (
		blocks  []Block
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, Block{Lines: current})
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if level, title, ok := parseHeading(trimmed); ok {
			flush()
			blocks = append(blocks, Block{Level: level, Lines: []string{title}})
			continue
		}
		current = append(current, line)
	}
	flush()
	return blocks
}

func parseHeading(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) || line[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(line[level:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}
