// Package ingestion implements the corpus ingestion pipeline. It loads text
// documents from a directory, chunks them, embeds every chunk, and writes the
// results into the vector index. This pipeline is invoked by the
// `docchat ingest` CLI command and is not safe to run twice concurrently
// against the same collection.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/docchat/internal/chunker"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/logging"
	"github.com/54b3r/docchat/internal/rag"
)

// Mode selects how a run treats records already in the collection.
type Mode string

const (
	// ModeReplace drops and recreates the collection before writing.
	ModeReplace Mode = "replace"
	// ModeAppend keeps other sources but replaces every re-ingested source.
	ModeAppend Mode = "append"
)

// DefaultBatchSize is the number of chunks per embedding and upsert call.
const DefaultBatchSize = 64

// ErrNoDocuments is returned when a run finds nothing to index. The
// collection is left untouched.
var ErrNoDocuments = errors.New("ingestion: no documents to ingest")

// ParseMode validates a mode name. The empty string selects ModeReplace.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeAppend:
		return ModeAppend, nil
	default:
		return "", fmt.Errorf("ingestion: unknown mode %q (want replace or append)", s)
	}
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to chunker.DefaultSize if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to chunker.DefaultOverlap if zero.
	ChunkOverlap int

	// BatchSize bounds the number of chunks per embedding and upsert call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// Mode is replace (default) or append.
	Mode Mode

	// Pattern is the glob used by IngestDir. Defaults to DefaultPattern.
	Pattern string

	// EmbedGuard bounds each embedding batch with a timeout and breaker.
	// Optional.
	EmbedGuard *fault.Guard
}

// Report summarises a completed run.
type Report struct {
	// Documents is the number of documents that produced at least one chunk.
	Documents int
	// Chunks is the number of records written.
	Chunks int
	// Dimension is the embedding dimension of the written records.
	Dimension int
	// Mode is the mode the run used.
	Mode Mode
	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration
}

// Pipeline orchestrates the load → chunk → embed → write flow.
type Pipeline struct {
	// embedder converts chunk text into dense vectors.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// splitter cuts documents into overlapping chunks.
	splitter *chunker.Splitter

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.ChunkSize == 0 {
		resolved.ChunkSize = chunker.DefaultSize
	}
	if resolved.ChunkOverlap == 0 {
		resolved.ChunkOverlap = chunker.DefaultOverlap
		if resolved.ChunkOverlap >= resolved.ChunkSize {
			resolved.ChunkOverlap = max(1, resolved.ChunkSize/5)
		}
	}
	if resolved.BatchSize <= 0 {
		resolved.BatchSize = DefaultBatchSize
	}
	if resolved.Pattern == "" {
		resolved.Pattern = DefaultPattern
	}
	mode, err := ParseMode(string(resolved.Mode))
	if err != nil {
		return nil, err
	}
	resolved.Mode = mode

	splitter, err := chunker.New(resolved.ChunkSize, resolved.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: %w", err)
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		splitter: splitter,
		cfg:      &resolved,
	}, nil
}

// IngestDir loads every document under dir that matches the configured
// pattern and ingests them.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	docs, err := LoadDir(ctx, dir, p.cfg.Pattern)
	if err != nil {
		return nil, err
	}
	progress(fmt.Sprintf("loaded %d documents from %s", len(docs), dir))
	return p.Ingest(ctx, docs, progress)
}

// Ingest chunks, embeds, and stores docs. Every chunk is embedded before the
// collection is touched, so an embedding failure never leaves the index
// emptied. Progress is reported via the optional progress callback.
//
// Index writes are not rolled back on failure; re-running is the recovery
// path.
func (p *Pipeline) Ingest(ctx context.Context, docs []chunker.Document, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}
	start := time.Now()
	log := logging.FromContext(ctx)

	records, sources := p.records(docs)
	if len(records) == 0 {
		return nil, ErrNoDocuments
	}
	progress(fmt.Sprintf("chunked %d documents into %d chunks", len(sources), len(records)))

	embeddings, err := p.embed(ctx, records, progress)
	if err != nil {
		return nil, err
	}
	dim := len(embeddings[0])
	for i, vec := range embeddings {
		if len(vec) == 0 || len(vec) != dim {
			return nil, fault.New(fault.KindIndexWriteFailure, "ingest.embed",
				fmt.Sprintf("chunk %s has dimension %d, want %d", records[i].ID, len(vec), dim))
		}
	}

	switch p.cfg.Mode {
	case ModeReplace:
		if err := p.store.Reset(ctx, dim); err != nil {
			return nil, indexErr(ctx, "ingest.reset", err)
		}
		progress(fmt.Sprintf("reset collection (dimension %d)", dim))
	case ModeAppend:
		if have := p.store.Dimension(); have != 0 && have != dim {
			return nil, fault.New(fault.KindIndexWriteFailure, "ingest.append",
				fmt.Sprintf("embedding dimension %d does not match existing collection dimension %d", dim, have))
		}
		for _, src := range sources {
			if err := p.store.DeleteSource(ctx, src); err != nil {
				return nil, indexErr(ctx, "ingest.delete_source", fmt.Errorf("%s: %w", src, err))
			}
		}
		progress(fmt.Sprintf("cleared previous records for %d sources", len(sources)))
	}

	for lo := 0; lo < len(records); lo += p.cfg.BatchSize {
		hi := min(lo+p.cfg.BatchSize, len(records))
		if err := p.store.Upsert(ctx, records[lo:hi], embeddings[lo:hi]); err != nil {
			return nil, indexErr(ctx, "ingest.upsert", err)
		}
		progress(fmt.Sprintf("stored %d/%d chunks", hi, len(records)))
	}

	report := &Report{
		Documents: len(sources),
		Chunks:    len(records),
		Dimension: dim,
		Mode:      p.cfg.Mode,
		Elapsed:   time.Since(start),
	}
	log.Info("ingestion complete",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("dimension", report.Dimension),
		slog.String("mode", string(report.Mode)),
		slog.String("embedding_model", p.embedder.Model()),
		slog.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// records chunks docs and returns the resulting records plus the distinct
// sources that produced at least one chunk, in first-seen order.
func (p *Pipeline) records(docs []chunker.Document) ([]rag.Record, []string) {
	var (
		records []rag.Record
		sources []string
	)
	seen := make(map[string]bool, len(docs))
	model := p.embedder.Model()
	for _, doc := range docs {
		inferred := InferMetadata(doc.Source)
		for c := range p.splitter.Chunks(doc) {
			md := inferred.Fields()
			md["chunk_index"] = strconv.Itoa(c.Index)
			md["embedding_model"] = model
			records = append(records, rag.Record{
				ID:       ChunkID(c.Source, c.Index),
				Content:  c.Text,
				Source:   c.Source,
				Offset:   c.Offset,
				Metadata: md,
			})
			if !seen[c.Source] {
				seen[c.Source] = true
				sources = append(sources, c.Source)
			}
		}
	}
	return records, sources
}

// embed embeds records in batches, each batch bounded by the embed guard.
func (p *Pipeline) embed(ctx context.Context, records []rag.Record, progress func(string)) ([][]float32, error) {
	out := make([][]float32, 0, len(records))
	for lo := 0; lo < len(records); lo += p.cfg.BatchSize {
		hi := min(lo+p.cfg.BatchSize, len(records))
		texts := make([]string, hi-lo)
		for i, r := range records[lo:hi] {
			texts[i] = r.Content
		}

		var batch [][]float32
		call := func(ctx context.Context) error {
			var err error
			batch, err = p.embedder.Embed(ctx, texts)
			return err
		}
		var err error
		if p.cfg.EmbedGuard != nil {
			err = p.cfg.EmbedGuard.Do(ctx, "ingest.embed", call)
		} else if err = call(ctx); err != nil && ctx.Err() == nil {
			err = fault.Wrap(fault.KindProviderUnavailable, "ingest.embed", err)
		}
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fault.New(fault.KindProviderUnavailable, "ingest.embed",
				fmt.Sprintf("embedder returned %d vectors for %d texts", len(batch), len(texts)))
		}
		out = append(out, batch...)
		progress(fmt.Sprintf("embedded %d/%d chunks", hi, len(records)))
	}
	return out, nil
}

// indexErr classifies an index failure, leaving caller cancellation as is.
func indexErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if fault.Is(err, fault.KindIndexWriteFailure) {
		return err
	}
	return &fault.Error{Kind: fault.KindIndexWriteFailure, Op: op, Err: err}
}

// ChunkID returns the deterministic point ID for chunk index of source: a
// UUIDv5 of "source#index", so re-ingesting a source overwrites its points.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(index))).String()
}
