// Package reranker provides rag.Reranker implementations: a
// text-embeddings-inference cross-encoder, a Cohere/Jina-compatible hosted
// API, and an offline lexical scorer.
package reranker

import (
	"fmt"
	"os"
	"strings"

	"github.com/54b3r/docchat/internal/rag"
)

const (
	defaultTEIModel    = "BAAI/bge-reranker-v2-m3"
	defaultCohereModel = "rerank-v3.5"
)

// Config selects and parameterises a reranking backend.
type Config struct {
	// Backend is one of: tei, cohere, lexical.
	Backend string
	// Model is the reranking model name.
	Model string
	// Endpoint is the backend base URL.
	Endpoint string
	// APIKey authenticates against hosted backends.
	APIKey string
}

// ConfigFromEnv reads RERANK_PROVIDER (default tei), RERANK_MODEL,
// RERANK_ENDPOINT and RERANK_API_KEY (falling back to COHERE_API_KEY).
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:  strings.ToLower(os.Getenv("RERANK_PROVIDER")),
		Model:    os.Getenv("RERANK_MODEL"),
		Endpoint: os.Getenv("RERANK_ENDPOINT"),
		APIKey:   os.Getenv("RERANK_API_KEY"),
	}
	if cfg.Backend == "" {
		cfg.Backend = "tei"
	}
	switch cfg.Backend {
	case "tei":
		if cfg.Model == "" {
			cfg.Model = defaultTEIModel
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = "http://localhost:8081"
		}
	case "cohere":
		if cfg.Model == "" {
			cfg.Model = defaultCohereModel
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = "https://api.cohere.com/v2"
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("COHERE_API_KEY")
		}
	case "lexical":
		cfg.Model = "lexical"
	}
	return cfg
}

// Validate checks that the configuration carries what its backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case "tei":
		if c.Endpoint == "" {
			return fmt.Errorf("reranker: tei requires RERANK_ENDPOINT")
		}
	case "cohere":
		if c.APIKey == "" {
			return fmt.Errorf("reranker: cohere requires RERANK_API_KEY or COHERE_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("reranker: cohere requires RERANK_ENDPOINT")
		}
	case "lexical":
	default:
		return fmt.Errorf("reranker: unknown backend %q (valid: tei, cohere, lexical)", c.Backend)
	}
	return nil
}

// New constructs the configured reranker.
func New(cfg *Config) (rag.Reranker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("reranker: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "tei":
		return NewTEIReranker(cfg.Endpoint, cfg.APIKey), nil
	case "cohere":
		return NewCohereReranker(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	default:
		return NewLexical(), nil
	}
}
