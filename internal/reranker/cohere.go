package reranker

import (
	"context"
	"time"

	"github.com/54b3r/docchat/internal/modelhttp"
)

// CohereReranker calls a Cohere-compatible /rerank API. Jina and Voyage
// expose the same request and response shape.
type CohereReranker struct {
	url   string
	model string
	api   *modelhttp.Client
}

// NewCohereReranker constructs a CohereReranker.
func NewCohereReranker(endpoint, apiKey, model string) *CohereReranker {
	return &CohereReranker{
		url:   modelhttp.JoinURL(endpoint, "/rerank"),
		model: model,
		api:   modelhttp.New("cohere reranker", 30*time.Second, modelhttp.Bearer(apiKey)),
	}
}

type cohereRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereRerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float32 `json:"relevance_score"`
}

type cohereRerankResponse struct {
	Results []cohereRerankResult `json:"results"`
}

// Score returns one score per passage, parallel to passages.
func (r *CohereReranker) Score(ctx context.Context, query string, passages []string) ([]float32, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	var resp cohereRerankResponse
	req := cohereRerankRequest{Model: r.model, Query: query, Documents: passages, TopN: len(passages)}
	if err := r.api.PostJSON(ctx, r.url, req, &resp); err != nil {
		return nil, err
	}
	return scatter(resp.Results, len(passages), func(c cohereRerankResult) (int, float32) {
		return c.Index, c.RelevanceScore
	})
}
