package reranker

import (
	"context"
	"fmt"
	"time"

	"github.com/54b3r/docchat/internal/modelhttp"
)

// TEIReranker scores passages with a cross-encoder served by
// text-embeddings-inference (POST /rerank).
type TEIReranker struct {
	url string
	api *modelhttp.Client
}

// NewTEIReranker constructs a TEIReranker for the server at endpoint.
func NewTEIReranker(endpoint, apiKey string) *TEIReranker {
	return &TEIReranker{
		url: modelhttp.JoinURL(endpoint, "/rerank"),
		api: modelhttp.New("tei reranker", time.Minute, modelhttp.Bearer(apiKey)),
	}
}

type teiRerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate"`
}

type teiRerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Score returns one score per passage, parallel to passages.
func (r *TEIReranker) Score(ctx context.Context, query string, passages []string) ([]float32, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	var results []teiRerankResult
	if err := r.api.PostJSON(ctx, r.url, teiRerankRequest{Query: query, Texts: passages, Truncate: true}, &results); err != nil {
		return nil, err
	}
	return scatter(results, len(passages), func(r teiRerankResult) (int, float32) { return r.Index, r.Score })
}

// scatter places indexed scores into a slice parallel to the passages,
// failing when any passage is missing or an index is out of range.
func scatter[T any](results []T, n int, field func(T) (int, float32)) ([]float32, error) {
	if len(results) != n {
		return nil, fmt.Errorf("reranker: expected %d scores, got %d", n, len(results))
	}
	scores := make([]float32, n)
	seen := make([]bool, n)
	for _, res := range results {
		i, s := field(res)
		if i < 0 || i >= n || seen[i] {
			return nil, fmt.Errorf("reranker: invalid or duplicate result index %d", i)
		}
		scores[i] = s
		seen[i] = true
	}
	return scores, nil
}
