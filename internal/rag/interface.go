// Package rag defines the retrieval side of the assistant: the embedding,
// vector index and reranking contracts, and the Retriever that chains them
// into similarity search → rerank → top-N.
// Concrete providers live in the embedder and reranker packages; the Qdrant
// index lives here.
package rag

import (
	"context"
	"fmt"
)

// Record is a chunk of source text as stored in, or returned from, the
// vector index.
type Record struct {
	// ID is the unique point identifier (UUID string).
	ID string

	// Content is the chunk text.
	Content string

	// Source is the originating document identity (relative file path).
	Source string

	// Offset is the character offset of the chunk within its source.
	Offset int

	// Metadata holds additional string payload (chunk index, title, model...).
	Metadata map[string]string

	// Score is the similarity score assigned by the index (higher is more
	// similar). Zero for records that have not been searched.
	Score float32
}

// Passage is a reranked record supplied to the generator as grounding.
type Passage struct {
	Record

	// RerankScore is the relevance score from the reranking provider. Only
	// comparable with scores produced for the same query.
	RerankScore float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe for concurrent reads.
type VectorStore interface {
	// Upsert stores a batch of records with their embeddings. embeddings[i]
	// is the vector for records[i]. The collection is created if absent.
	Upsert(ctx context.Context, records []Record, embeddings [][]float32) error

	// Search returns at most topK records ordered by descending similarity.
	// Ties are broken by record ID so identical inputs give identical output.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Record, error)

	// Reset drops the collection and recreates it empty for vectors of the
	// given dimension.
	Reset(ctx context.Context, dimension int) error

	// Dimension returns the vector dimension of the existing collection, or 0
	// when none is known yet.
	Dimension() int

	// DeleteSource removes every record whose Source equals source.
	DeleteSource(ctx context.Context, source string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vectors. The same implementation and
// model must be used at ingestion and query time.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed converts a batch of texts into embeddings, parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model identifies the embedding model (recorded with every stored point).
	Model() string
}

// Reranker scores (query, passage) pairs with a cross-encoder style model.
// Implementations must be safe for concurrent use.
type Reranker interface {
	// Score returns one relevance score per passage, parallel to passages.
	// Higher means more relevant to query.
	Score(ctx context.Context, query string, passages []string) ([]float32, error)
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}
