package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/54b3r/docchat/internal/modelhttp"
)

// TEIEmbedder implements rag.Embedder against a Hugging Face
// text-embeddings-inference server (POST /embed).
type TEIEmbedder struct {
	url   string
	model string
	api   *modelhttp.Client
}

// TEIConfig holds the settings for constructing a TEIEmbedder.
type TEIConfig struct {
	// Endpoint is the server base URL (e.g. "http://localhost:8080").
	Endpoint string
	// Model is recorded for index provenance; the server serves one model.
	Model string
	// APIKey is sent as a Bearer token when set.
	APIKey string
}

// NewTEIEmbedder constructs a TEIEmbedder.
func NewTEIEmbedder(cfg *TEIConfig) *TEIEmbedder {
	return &TEIEmbedder{
		url:   modelhttp.JoinURL(cfg.Endpoint, "/embed"),
		model: cfg.Model,
		api:   modelhttp.New("tei embedder", time.Minute, modelhttp.Bearer(cfg.APIKey)),
	}
}

type teiEmbedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
	Truncate  bool     `json:"truncate"`
}

// Model returns the configured model name.
func (e *TEIEmbedder) Model() string { return e.model }

// Embed converts texts into normalised embeddings, parallel to texts.
func (e *TEIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	if err := e.api.PostJSON(ctx, e.url, teiEmbedRequest{Inputs: texts, Normalize: true, Truncate: true}, &out); err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("tei embedder: expected %d embeddings, got %d", len(texts), len(out))
	}
	return out, nil
}
