// Package chunker splits documents into bounded, overlapping passages for
// embedding. Chunks are exact spans of the source text: concatenating every
// chunk after dropping each successor's overlapping prefix reproduces the
// document byte for byte.
package chunker

import (
	"fmt"
	"iter"
	"unicode"
)

const (
	// DefaultSize is the maximum chunk length in characters.
	DefaultSize = 1000
	// DefaultOverlap is the number of characters shared by consecutive chunks.
	DefaultOverlap = 200
)

// Document is one source text to be chunked.
type Document struct {
	// Source identifies where the text came from (usually a relative file path).
	Source string
	// Text is the full document content.
	Text string
}

// Chunk is a contiguous span of a Document.
type Chunk struct {
	// Source is the originating document identity.
	Source string
	// Index is the zero-based position of the chunk within its document.
	Index int
	// Offset is the character (rune) offset of the chunk start in the document.
	Offset int
	// Text is the chunk content.
	Text string
}

// Splitter cuts documents at the largest semantic boundary that fits:
// paragraph, then sentence, then word, then a hard character cut.
type Splitter struct {
	size    int
	overlap int
}

// New constructs a Splitter. overlap must be positive and smaller than size.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", size)
	}
	if overlap <= 0 || overlap >= size {
		return nil, fmt.Errorf("chunker: overlap must be in [1, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// Size returns the maximum chunk length in characters.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the number of characters shared by consecutive chunks.
func (s *Splitter) Overlap() int { return s.overlap }

// Chunks returns a lazy sequence over the chunks of doc. Each range over the
// sequence recomputes it from the start. An empty document yields nothing.
func (s *Splitter) Chunks(doc Document) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		text := []rune(doc.Text)
		n := len(text)
		start := 0
		for index := 0; start < n; index++ {
			end := n
			if start+s.size < n {
				end = s.cut(text, start)
			}
			c := Chunk{
				Source: doc.Source,
				Index:  index,
				Offset: start,
				Text:   string(text[start:end]),
			}
			if !yield(c) || end == n {
				return
			}
			start = end - s.overlap
		}
	}
}

// Split collects Chunks into a slice.
func (s *Splitter) Split(doc Document) []Chunk {
	var out []Chunk
	for c := range s.Chunks(doc) {
		out = append(out, c)
	}
	return out
}

// cut picks the end (exclusive) of the chunk starting at start. The result
// lies in (start+overlap, start+size] so every step advances.
func (s *Splitter) cut(text []rune, start int) int {
	limit := start + s.size
	lo := start + s.overlap + 1
	if q := start + s.size/4; q > lo {
		lo = q
	}
	for _, boundary := range []func([]rune, int) bool{paragraphEnd, sentenceEnd, wordEnd} {
		for e := limit; e >= lo; e-- {
			if boundary(text, e) {
				return e
			}
		}
	}
	return limit
}

// paragraphEnd reports whether position e directly follows a blank line.
func paragraphEnd(text []rune, e int) bool {
	return e >= 2 && text[e-1] == '\n' && text[e-2] == '\n'
}

// sentenceEnd reports whether position e follows terminal punctuation and
// whitespace, or a line break.
func sentenceEnd(text []rune, e int) bool {
	if e < 1 {
		return false
	}
	if text[e-1] == '\n' {
		return true
	}
	if e < 2 || !unicode.IsSpace(text[e-1]) {
		return false
	}
	switch text[e-2] {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// wordEnd reports whether position e directly follows whitespace.
func wordEnd(text []rune, e int) bool {
	return e >= 1 && unicode.IsSpace(text[e-1])
}
