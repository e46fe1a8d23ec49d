// Package document turns generated text into a canonical form and exports it
// as txt, md, html, pdf or docx artifacts.
package document

import (
	"regexp"
	"strings"
)

var (
	horizontalRule = regexp.MustCompile(`^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	strongMarker   = regexp.MustCompile(`\*\*|__`)
	inlineEmphasis = regexp.MustCompile(`\*([^\s*][^*\n]*?)\*`)
	codeSpan       = regexp.MustCompile("`[^`]*`")
	codeFence      = regexp.MustCompile("^\\s{0,3}(?:```|~~~)")
	blankRun       = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips horizontal rules and emphasis markers, repairs empty
// score placeholders ("(/10)" becomes "(0/10)"), collapses blank-line runs
// and trims the result. Fenced blocks, indented code lines and backtick
// spans keep their markers. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for {
		next := normalizePass(text)
		if next == text {
			return text
		}
		text = next
	}
}

// normalizePass applies one round of rewrites. Every rewrite except the
// score repair shortens the text, and the score repair cannot re-trigger,
// so repeating passes reaches a fixed point.
func normalizePass(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	inFence := false
	for _, line := range lines {
		switch {
		case codeFence.MatchString(line):
			inFence = !inFence
		case inFence || isIndentedCode(line):
		case horizontalRule.MatchString(line):
			continue
		default:
			line = stripEmphasis(line)
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}
	text = strings.Join(kept, "\n")
	text = strings.ReplaceAll(text, "(/10)", "(0/10)")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func isIndentedCode(line string) bool {
	return strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ")
}

// stripEmphasis removes emphasis markers outside backtick spans.
func stripEmphasis(line string) string {
	spans := codeSpan.FindAllStringIndex(line, -1)
	if spans == nil {
		return stripMarkers(line)
	}
	var b strings.Builder
	last := 0
	for _, sp := range spans {
		b.WriteString(stripMarkers(line[last:sp[0]]))
		b.WriteString(line[sp[0]:sp[1]])
		last = sp[1]
	}
	b.WriteString(stripMarkers(line[last:]))
	return b.String()
}

func stripMarkers(s string) string {
	s = strongMarker.ReplaceAllString(s, "")
	return inlineEmphasis.ReplaceAllString(s, "$1")
}
