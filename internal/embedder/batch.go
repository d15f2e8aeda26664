package embedder

import (
	"context"
	"fmt"

	"github.com/54b3r/docchat/internal/rag"
)

// Batched splits Embed calls into requests of at most size texts.
type Batched struct {
	inner rag.Embedder
	size  int
}

// NewBatched wraps inner. A size ≤ 0 means DefaultBatchSize.
func NewBatched(inner rag.Embedder, size int) *Batched {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batched{inner: inner, size: size}
}

// Model returns the wrapped embedder's model.
func (b *Batched) Model() string { return b.inner.Model() }

// Embed embeds texts batch by batch, preserving order.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))
		vecs, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: expected %d embeddings, got %d", end-start, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
