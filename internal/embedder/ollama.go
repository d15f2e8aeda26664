package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/54b3r/docchat/internal/modelhttp"
)

// OllamaEmbedder embeds through a local Ollama server (POST /api/embed),
// typically serving bge-m3. Inputs longer than the model context are
// truncated by the server rather than rejected.
type OllamaEmbedder struct {
	url       string
	model     string
	keepAlive string
	api       *modelhttp.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "bge-m3").
	Model string
	// KeepAlive is how long Ollama keeps the model loaded after a call
	// (e.g. "10m"). Empty uses the server default.
	KeepAlive string
}

// NewOllamaEmbedder constructs an OllamaEmbedder. Ingestion batches can be
// slow on CPU-only hosts, so the transport ceiling is generous.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	return &OllamaEmbedder{
		url:       modelhttp.JoinURL(cfg.Host, "/api/embed"),
		model:     cfg.Model,
		keepAlive: cfg.KeepAlive,
		api:       modelhttp.New("ollama embedder", 2*time.Minute, nil),
	}
}

type ollamaEmbedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Model returns the embedding model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Embed returns one vector per text, parallel to texts.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp ollamaEmbedResponse
	req := ollamaEmbedRequest{Model: e.model, Input: texts, Truncate: true, KeepAlive: e.keepAlive}
	if err := e.api.PostJSON(ctx, e.url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: %s returned %d embeddings for %d inputs", e.model, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}
