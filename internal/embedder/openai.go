package embedder

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/54b3r/docchat/internal/modelhttp"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint, or an
// Azure OpenAI deployment when Azure is set.
type OpenAIEmbedder struct {
	url        string
	model      string
	dimensions int
	api        *modelhttp.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base. OpenAI: "https://api.openai.com/v1".
	// Azure: "https://<resource>.openai.azure.com/openai".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name, or the Azure deployment name.
	Model string
	// Dimensions requests shortened vectors (0 = model default).
	Dimensions int
	// Azure switches to the api-key header and the deployment URL layout.
	Azure bool
	// APIVersion is the Azure api-version query parameter.
	APIVersion string
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	endpoint := modelhttp.JoinURL(cfg.BaseURL, "/embeddings")
	header := modelhttp.Bearer(cfg.APIKey)
	name := "openai embedder"
	if cfg.Azure {
		endpoint = modelhttp.JoinURL(cfg.BaseURL, "/deployments/"+url.PathEscape(cfg.Model)+"/embeddings") +
			"?api-version=" + url.QueryEscape(cfg.APIVersion)
		header = http.Header{}
		header.Set("api-key", cfg.APIKey)
		name = "azure embedder"
	}
	return &OpenAIEmbedder{
		url:        endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		api:        modelhttp.New(name, 30*time.Second, header),
	}
}

type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Model returns the embedding model (or Azure deployment) name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Embed returns one vector per text, parallel to texts. The response is
// reordered by its index field.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openaiEmbedResponse
	req := openaiEmbedRequest{Input: texts, Model: e.model, Dimensions: e.dimensions}
	if err := e.api.PostJSON(ctx, e.url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: %s returned %d embeddings for %d inputs", e.model, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai embedder: invalid or duplicate index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("openai embedder: empty embedding for input %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
