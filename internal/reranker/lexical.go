package reranker

import (
	"context"
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"
)

// Lexical scores passages by how many distinct query terms they contain,
// weighted by inverse frequency across the candidate set. It needs no model
// and is deterministic, for offline development and tests.
type Lexical struct{}

// NewLexical returns a Lexical reranker.
func NewLexical() *Lexical { return &Lexical{} }

// Score returns one score per passage, parallel to passages.
func (Lexical) Score(_ context.Context, query string, passages []string) ([]float32, error) {
	qTerms := terms(query)
	// Summed in sorted order so float rounding is identical across runs.
	qOrder := slices.Sorted(maps.Keys(qTerms))
	docs := make([]map[string]bool, len(passages))
	df := make(map[string]int)
	for i, p := range passages {
		docs[i] = terms(p)
		for t := range docs[i] {
			if qTerms[t] {
				df[t]++
			}
		}
	}

	n := float64(len(passages))
	scores := make([]float32, len(passages))
	for i, d := range docs {
		var s float64
		for _, t := range qOrder {
			if d[t] {
				s += math.Log(1 + n/float64(df[t]))
			}
		}
		// Prefer focused passages among equal matches.
		scores[i] = float32(s / math.Sqrt(float64(1+len(d))))
	}
	return scores, nil
}

// terms lowercases s and returns its set of letter/digit runs.
func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[f] = true
	}
	return out
}
