// Package embedder provides rag.Embedder implementations for Ollama, OpenAI,
// Azure OpenAI, text-embeddings-inference and Gemini, selected from the
// environment by ConfigFromEnv and New.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/docchat/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "bge-m3"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultTEIModel    = "BAAI/bge-m3"
	defaultGeminiModel = "text-embedding-004"

	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 64
)

// Config selects and parameterises an embedding backend.
type Config struct {
	// Backend is one of: ollama, openai, azure, tei, gemini.
	Backend string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// Endpoint is the backend base URL. Backend-specific default when empty.
	Endpoint string
	// APIKey authenticates against hosted backends.
	APIKey string
	// APIVersion is the Azure OpenAI api-version query parameter.
	APIVersion string
	// Dimensions requests a specific output size where the backend supports it.
	Dimensions int
	// BatchSize caps the texts per request. Zero means DefaultBatchSize.
	BatchSize int
	// KeepAlive is the Ollama model keep-alive (OLLAMA_KEEP_ALIVE).
	KeepAlive string
}

// ConfigFromEnv resolves the embedding configuration from the environment,
// inheriting credentials from the chat provider when no embedding-specific
// override is set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, else MODEL_PROVIDER when it names an embedding
//     backend, else ollama
//  2. EMBEDDING_MODEL, else the backend default
//  3. EMBEDDING_API_KEY, else the chat provider's key
//  4. EMBEDDING_ENDPOINT, else the chat provider's endpoint
//  5. EMBEDDING_DIMENSIONS and EMBEDDING_BATCH_SIZE
func ConfigFromEnv() *Config {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		switch p := os.Getenv("MODEL_PROVIDER"); p {
		case "openai", "azure", "gemini":
			backend = p
		default:
			backend = "ollama"
		}
	}
	backend = strings.ToLower(backend)

	cfg := &Config{
		Backend:    backend,
		Model:      os.Getenv("EMBEDDING_MODEL"),
		Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		BatchSize:  getEnvInt("EMBEDDING_BATCH_SIZE", DefaultBatchSize),
	}

	switch backend {
	case "ollama":
		cfg.Model = orDefault(cfg.Model, defaultOllamaModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, orDefault(os.Getenv("OLLAMA_HOST"), "http://localhost:11434"))
		cfg.KeepAlive = os.Getenv("OLLAMA_KEEP_ALIVE")
	case "openai":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, "https://api.openai.com/v1")
		cfg.APIKey = orDefault(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
	case "azure":
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, os.Getenv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIKey = orDefault(cfg.APIKey, os.Getenv("AZURE_OPENAI_API_KEY"))
		cfg.APIVersion = orDefault(os.Getenv("AZURE_OPENAI_API_VERSION"), "2025-04-01-preview")
	case "tei":
		cfg.Model = orDefault(cfg.Model, defaultTEIModel)
		cfg.Endpoint = orDefault(cfg.Endpoint, "http://localhost:8080")
	case "gemini":
		cfg.Model = orDefault(cfg.Model, defaultGeminiModel)
		cfg.APIKey = orDefault(cfg.APIKey, os.Getenv("GOOGLE_API_KEY"))
	}
	return cfg
}

// Validate checks that the configuration carries what its backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case "ollama", "tei":
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: %s requires EMBEDDING_ENDPOINT", c.Backend)
		}
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "azure":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
	case "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid: ollama, openai, azure, tei, gemini)", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder: %s requires EMBEDDING_MODEL", c.Backend)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("embedder: EMBEDDING_DIMENSIONS must not be negative, got %d", c.Dimensions)
	}
	return nil
}

// New constructs the configured embedder, wrapped so that large inputs are
// sent in batches of cfg.BatchSize.
func New(ctx context.Context, cfg *Config) (rag.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var inner rag.Embedder
	switch cfg.Backend {
	case "ollama":
		inner = NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model, KeepAlive: cfg.KeepAlive})
	case "openai":
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "azure":
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    strings.TrimRight(cfg.Endpoint, "/") + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		})
	case "tei":
		inner = NewTEIEmbedder(&TEIConfig{Endpoint: cfg.Endpoint, Model: cfg.Model, APIKey: cfg.APIKey})
	case "gemini":
		g, err := NewGeminiEmbedder(ctx, &GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, Dimensions: cfg.Dimensions})
		if err != nil {
			return nil, err
		}
		inner = g
	}
	return NewBatched(inner, cfg.BatchSize), nil
}

// orDefault returns v, or fallback when v is empty.
func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
