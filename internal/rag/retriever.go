package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/logging"
)

// Default retrieval depths: similarity-search candidates and reranked passages.
const (
	DefaultCandidateK = 10
	DefaultFinalK     = 4
)

// RetrieverConfig holds the dependencies of a Retriever.
type RetrieverConfig struct {
	// Embedder embeds the query. Must match the model used at ingestion.
	Embedder Embedder
	// Store is the vector index searched for candidates.
	Store VectorStore
	// Reranker rescores candidates against the query.
	Reranker Reranker
	// EmbedGuard bounds embedder calls. Optional.
	EmbedGuard *fault.Guard
	// SearchGuard bounds index calls. Optional.
	SearchGuard *fault.Guard
	// RerankGuard bounds reranker calls. Optional.
	RerankGuard *fault.Guard
}

// Retriever embeds a query, searches the index for candidates, reranks them
// and keeps the best few. It is safe for concurrent use.
type Retriever struct {
	embedder    Embedder
	store       VectorStore
	reranker    Reranker
	embedGuard  *fault.Guard
	searchGuard *fault.Guard
	rerankGuard *fault.Guard
}

// NewRetriever constructs a Retriever.
func NewRetriever(cfg *RetrieverConfig) (*Retriever, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rag: retriever config must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.Reranker == nil {
		return nil, fmt.Errorf("rag: reranker must not be nil")
	}
	return &Retriever{
		embedder:    cfg.Embedder,
		store:       cfg.Store,
		reranker:    cfg.Reranker,
		embedGuard:  cfg.EmbedGuard,
		searchGuard: cfg.SearchGuard,
		rerankGuard: cfg.RerankGuard,
	}, nil
}

// Retrieve returns at most finalK passages for query, ordered by descending
// rerank score. kCandidates records are fetched from the index first; a
// corpus smaller than kCandidates is not an error. finalK is clamped to
// kCandidates.
func (r *Retriever) Retrieve(ctx context.Context, query string, kCandidates, finalK int) ([]Passage, error) {
	if kCandidates <= 0 {
		kCandidates = DefaultCandidateK
	}
	if finalK <= 0 {
		finalK = DefaultFinalK
	}
	if finalK > kCandidates {
		finalK = kCandidates
	}

	var queryVec []float32
	err := guarded(ctx, r.embedGuard, "rag.embed_query", func(ctx context.Context) error {
		var err error
		queryVec, err = EmbedOne(ctx, r.embedder, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}

	var candidates []Record
	err = guarded(ctx, r.searchGuard, "rag.search", func(ctx context.Context) error {
		var err error
		candidates, err = r.store.Search(ctx, queryVec, kCandidates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	var scores []float32
	err = guarded(ctx, r.rerankGuard, "rag.rerank", func(ctx context.Context) error {
		var err error
		scores, err = r.reranker.Score(ctx, query, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rag: rerank failed: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fault.New(fault.KindProviderUnavailable, "rag.rerank",
			fmt.Sprintf("reranker returned %d scores for %d candidates", len(scores), len(candidates)))
	}

	passages := Rank(candidates, scores, finalK)

	logging.FromContext(ctx).Debug("retrieval complete",
		slog.Int("candidates", len(candidates)),
		slog.Int("passages", len(passages)),
	)
	return passages, nil
}

// Rank pairs candidates with their rerank scores, sorts by descending score
// (ties keep the index's order) and truncates to finalK.
func Rank(candidates []Record, scores []float32, finalK int) []Passage {
	passages := make([]Passage, len(candidates))
	for i, c := range candidates {
		passages[i] = Passage{Record: c, RerankScore: scores[i]}
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].RerankScore > passages[j].RerankScore
	})
	if finalK >= 0 && len(passages) > finalK {
		passages = passages[:finalK]
	}
	return passages
}

// guarded runs fn through g, or directly when g is nil.
func guarded(ctx context.Context, g *fault.Guard, op string, fn func(ctx context.Context) error) error {
	if g == nil {
		err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return fault.Wrap(fault.KindProviderUnavailable, op, err)
	}
	return g.Do(ctx, op, fn)
}
