package generation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedCode = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCode = regexp.MustCompile("`[^`\\n]+`")
)

// CodeSpan maps a placeholder back to the code it replaced.
type CodeSpan struct {
	Placeholder string
	Original    string
}

// ProtectCode replaces fenced code blocks, then inline code spans in the
// remaining text, with [[CODE_BLOCK_i]] placeholders numbered in encounter order.
func ProtectCode(text string) (string, []CodeSpan) {
	var spans []CodeSpan
	replace := func(m string) string {
		p := fmt.Sprintf("[[CODE_BLOCK_%d]]", len(spans))
		spans = append(spans, CodeSpan{Placeholder: p, Original: m})
		return p
	}
	text = fencedCode.ReplaceAllStringFunc(text, replace)
	text = inlineCode.ReplaceAllStringFunc(text, replace)
	return text, spans
}

// RestoreCode substitutes every placeholder with its original code.
// An inline span can enclose an earlier fenced placeholder, so spans are
// restored last-first.
func RestoreCode(text string, spans []CodeSpan) string {
	for i := len(spans) - 1; i >= 0; i-- {
		text = strings.ReplaceAll(text, spans[i].Placeholder, spans[i].Original)
	}
	return text
}
