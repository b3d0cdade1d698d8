// Package chunker splits chapter markdown into overlapping, retrievable text chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the window length in characters.
	DefaultChunkSize = 800
	// DefaultOverlap is the number of characters repeated between consecutive chunks.
	DefaultOverlap = 200
	// PreviewLength is the number of characters kept in a chunk preview.
	PreviewLength = 200
)

// window is a half-open character range [start, end) of the source text.
type window struct {
	start int
	end   int
}

// Chunk splits text into overlapping chunks of at most chunkSize characters.
// A chunk is cut after the last '.' or '\n' in its window when that breakpoint
// lies at or past half of chunkSize; otherwise the hard cutoff is used.
// Chunks are trimmed and empty chunks are dropped.
func Chunk(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	var chunks []string
	for _, w := range windows(runes, chunkSize, overlap) {
		c := strings.TrimSpace(string(runes[w.start:w.end]))
		if c == "" {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func windows(text []rune, chunkSize, overlap int) []window {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var out []window
	start := 0
	n := len(text)
	for start < n {
		end := start + chunkSize
		if end >= n {
			out = append(out, window{start: start, end: n})
			break
		}

		if bp := lastBreak(text[start:end]); bp >= 0 && 2*bp >= chunkSize {
			end = start + bp + 1
		}
		out = append(out, window{start: start, end: end})

		next := end - overlap
		if next <= start {
			// overlap covers the whole window; resume at the cut without overlap.
			next = end
		}
		start = next
	}
	return out
}

func lastBreak(w []rune) int {
	for i := len(w) - 1; i >= 0; i-- {
		if w[i] == '.' || w[i] == '\n' {
			return i
		}
	}
	return -1
}

// EstimateTokens approximates the token count at four characters per token.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// CharCount returns the length of text in characters.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// Preview returns the first PreviewLength characters of text, suffixed with
// "..." when truncated.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= PreviewLength {
		return text
	}
	return string(r[:PreviewLength]) + "..."
}
