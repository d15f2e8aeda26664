package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/docchat/internal/assistant"
	"github.com/54b3r/docchat/internal/budget"
	"github.com/54b3r/docchat/internal/chunker"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/ingestion"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/session"
)

// Index backends.
const (
	IndexQdrant = "qdrant"
	IndexMemory = "memory"
)

// Index selects and addresses the vector index.
type Index struct {
	// Backend is qdrant (default) or memory.
	Backend string
	Host    string
	Port    int
	// Collection is the Qdrant collection name.
	Collection string
	APIKey     string
	TLS        bool
}

// RAG is the explicit pipeline configuration assembled from the environment.
type RAG struct {
	Index Index

	// ChunkSize and ChunkOverlap are in characters.
	ChunkSize    int
	ChunkOverlap int

	// CandidateK is how many nearest neighbours are reranked; FinalK how
	// many reach the generator.
	CandidateK int
	FinalK     int

	// HistoryTurns is the session window K.
	HistoryTurns int

	// CallTimeout bounds every external provider call.
	CallTimeout time.Duration

	// AnswerSentences caps answer length in the system prompt.
	AnswerSentences int

	// MaxContextTokens is the input budget for one generation call.
	MaxContextTokens int

	// Organization is substituted into the system prompt.
	Organization string

	// IngestMode is replace or append.
	IngestMode ingestion.Mode

	// SystemPromptFile and ContextualizePromptFile override the built-in
	// prompts when set.
	SystemPromptFile        string
	ContextualizePromptFile string

	// ContactsPath is the .xlsx workbook for /user_info submissions.
	ContactsPath string
}

// RAGFromEnv reads the pipeline configuration from env vars, applying
// defaults for anything unset. Malformed numbers are reported, not ignored.
func RAGFromEnv() (*RAG, error) {
	var errs []error
	intVar := func(key string, fallback int) int {
		v := os.Getenv(key)
		if v == "" {
			return fallback
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return fallback
		}
		return n
	}

	r := &RAG{
		Index: Index{
			Backend:    getEnvOrDefault("INDEX_BACKEND", IndexQdrant),
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       intVar("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", rag.DefaultCollection),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			TLS:        os.Getenv("QDRANT_TLS") == "true",
		},
		ChunkSize:               intVar("CHUNK_SIZE", chunker.DefaultSize),
		ChunkOverlap:            intVar("CHUNK_OVERLAP", chunker.DefaultOverlap),
		CandidateK:              intVar("RETRIEVAL_CANDIDATES", rag.DefaultCandidateK),
		FinalK:                  intVar("RETRIEVAL_TOP_K", rag.DefaultFinalK),
		HistoryTurns:            intVar("HISTORY_TURNS", session.DefaultWindow),
		CallTimeout:             fault.DefaultCallTimeout,
		AnswerSentences:         intVar("ANSWER_SENTENCES", assistant.DefaultAnswerSentences),
		MaxContextTokens:        intVar("MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
		Organization:            getEnvOrDefault("DOCCHAT_ORGANIZATION", assistant.DefaultOrganization),
		IngestMode:              ingestion.Mode(getEnvOrDefault("INGEST_MODE", string(ingestion.ModeReplace))),
		SystemPromptFile:        os.Getenv("SYSTEM_PROMPT_FILE"),
		ContextualizePromptFile: os.Getenv("CONTEXTUALIZE_PROMPT_FILE"),
		ContactsPath:            os.Getenv("CONTACTS_XLSX"),
	}
	if v := os.Getenv("PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROVIDER_TIMEOUT: %q is not a duration", v))
		} else {
			r.CallTimeout = d
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return r, nil
}

// Validate checks ranges and cross-field constraints.
func (r *RAG) Validate() error {
	switch r.Index.Backend {
	case IndexQdrant, IndexMemory:
	default:
		return fmt.Errorf("config: INDEX_BACKEND %q is not one of qdrant, memory", r.Index.Backend)
	}
	if r.ChunkSize <= 0 {
		return fmt.Errorf("config: CHUNK_SIZE must be positive, got %d", r.ChunkSize)
	}
	if r.ChunkOverlap <= 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("config: CHUNK_OVERLAP must be in [1, CHUNK_SIZE), got %d", r.ChunkOverlap)
	}
	if r.CandidateK <= 0 || r.FinalK <= 0 {
		return fmt.Errorf("config: RETRIEVAL_CANDIDATES and RETRIEVAL_TOP_K must be positive")
	}
	if r.FinalK > r.CandidateK {
		return fmt.Errorf("config: RETRIEVAL_TOP_K (%d) exceeds RETRIEVAL_CANDIDATES (%d)", r.FinalK, r.CandidateK)
	}
	if r.HistoryTurns <= 0 {
		return fmt.Errorf("config: HISTORY_TURNS must be positive, got %d", r.HistoryTurns)
	}
	if r.CallTimeout <= 0 {
		return fmt.Errorf("config: PROVIDER_TIMEOUT must be positive, got %s", r.CallTimeout)
	}
	if r.AnswerSentences <= 0 {
		return fmt.Errorf("config: ANSWER_SENTENCES must be positive, got %d", r.AnswerSentences)
	}
	if _, err := ingestion.ParseMode(string(r.IngestMode)); err != nil {
		return fmt.Errorf("config: INGEST_MODE: %w", err)
	}
	return nil
}

// Prompts returns the contents of the prompt override files. An unset file
// yields "" so the caller falls back to the built-in prompt.
func (r *RAG) Prompts() (system, contextualize string, err error) {
	if system, err = readOptional(r.SystemPromptFile); err != nil {
		return "", "", err
	}
	if contextualize, err = readOptional(r.ContextualizePromptFile); err != nil {
		return "", "", err
	}
	return system, contextualize, nil
}

// QdrantConfig converts the index settings for rag.NewQdrantStore.
func (r *RAG) QdrantConfig() *rag.QdrantConfig {
	return &rag.QdrantConfig{
		Host:       r.Index.Host,
		Port:       r.Index.Port,
		Collection: r.Index.Collection,
		APIKey:     r.Index.APIKey,
		UseTLS:     r.Index.TLS,
	}
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read prompt file: %w", err)
	}
	return string(data), nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
