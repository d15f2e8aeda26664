package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/docchat/internal/fault"
)

// Reserved payload keys. Every other payload field is surfaced via
// Record.Metadata.
const (
	payloadContent = "content"
	payloadSource  = "source"
	payloadOffset  = "offset"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "docchat"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the stored embeddings. Zero means
	// "learn it": from the existing collection, or from the first upsert.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// collection is the target collection name.
	collection string

	mu sync.Mutex
	// dim is the collection's vector dimension; 0 until known.
	dim uint64
}

// NewQdrantStore connects to Qdrant and, when the collection already exists,
// records its vector dimension. A missing collection is created lazily by
// Upsert or explicitly by Reset.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant: config must not be nil")
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6334
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, collection: collection, dim: cfg.VectorSize}

	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		_ = client.Close()
		return nil, fault.Wrap(fault.KindProviderUnavailable, "qdrant.connect",
			fmt.Errorf("failed to check collection existence: %w", err))
	}
	if exists {
		info, err := client.GetCollectionInfo(ctx, collection)
		if err != nil {
			_ = client.Close()
			return nil, fault.Wrap(fault.KindProviderUnavailable, "qdrant.connect",
				fmt.Errorf("failed to read collection %q: %w", collection, err))
		}
		if size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize(); size > 0 {
			store.dim = size
		}
	}

	return store, nil
}

// Collection returns the target collection name.
func (s *QdrantStore) Collection() string { return s.collection }

// Dimension returns the known vector dimension, or 0.
func (s *QdrantStore) Dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.dim)
}

// Reset drops the collection (if present) and recreates it for vectors of
// the given dimension.
func (s *QdrantStore) Reset(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fault.New(fault.KindIndexWriteFailure, "qdrant.reset",
			fmt.Sprintf("invalid vector dimension %d", dimension))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.reset", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.reset",
				fmt.Errorf("failed to drop collection %q: %w", s.collection, err))
		}
	}
	if err := s.create(ctx, uint64(dimension)); err != nil {
		return err
	}
	s.dim = uint64(dimension)
	return nil
}

// create issues CreateCollection. Caller holds s.mu.
func (s *QdrantStore) create(ctx context.Context, dimension uint64) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.create",
			fmt.Errorf("failed to create collection %q: %w", s.collection, err))
	}
	// Filtered deletes by source run on every append ingest.
	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      payloadSource,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.create",
			fmt.Errorf("failed to index source field: %w", err))
	}
	return nil
}

// ensure makes sure the collection exists and that dimension matches it.
func (s *QdrantStore) ensure(ctx context.Context, dimension uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && s.dim != dimension {
		return fault.New(fault.KindIndexWriteFailure, "qdrant.upsert",
			fmt.Sprintf("embedding dimension %d does not match collection %q dimension %d", dimension, s.collection, s.dim))
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.upsert", err)
	}
	if !exists {
		if err := s.create(ctx, dimension); err != nil {
			return err
		}
	}
	s.dim = dimension
	return nil
}

// Upsert stores a batch of records with their embeddings. The batch is
// acknowledged only once Qdrant has applied it.
func (s *QdrantStore) Upsert(ctx context.Context, records []Record, embeddings [][]float32) error {
	if len(records) != len(embeddings) {
		return fault.New(fault.KindIndexWriteFailure, "qdrant.upsert",
			fmt.Sprintf("%d records but %d embeddings", len(records), len(embeddings)))
	}
	if len(records) == 0 {
		return nil
	}
	dimension := uint64(len(embeddings[0]))
	for i, vec := range embeddings {
		if uint64(len(vec)) != dimension || dimension == 0 {
			return fault.New(fault.KindIndexWriteFailure, "qdrant.upsert",
				fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(vec), dimension))
		}
	}
	if err := s.ensure(ctx, dimension); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for i, rec := range records {
		payload := map[string]any{
			payloadContent: rec.Content,
			payloadSource:  rec.Source,
			payloadOffset:  int64(rec.Offset),
		}
		for k, v := range rec.Metadata {
			if _, reserved := payload[k]; !reserved {
				payload[k] = v
			}
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.upsert", err)
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
// A missing collection yields no results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Record, error) {
	if topK <= 0 {
		return nil, nil
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, fault.Wrap(fault.KindProviderUnavailable, "qdrant.search", err)
	}
	if !exists {
		return nil, nil
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindProviderUnavailable, "qdrant.search", err)
	}

	records := make([]Record, 0, len(results))
	for _, r := range results {
		rec := Record{
			ID:       r.GetId().GetUuid(),
			Score:    r.GetScore(),
			Metadata: make(map[string]string),
		}
		for k, v := range r.GetPayload() {
			switch k {
			case payloadContent:
				rec.Content = v.GetStringValue()
			case payloadSource:
				rec.Source = v.GetStringValue()
			case payloadOffset:
				rec.Offset = int(v.GetIntegerValue())
			default:
				rec.Metadata[k] = v.GetStringValue()
			}
		}
		records = append(records, rec)
	}
	SortByScore(records)
	return records, nil
}

// DeleteSource removes every point whose source payload equals source.
func (s *QdrantStore) DeleteSource(ctx context.Context, source string) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.delete_source", err)
	}
	if !exists {
		return nil
	}
	wait := true
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSource, source)},
		}),
	})
	if err != nil {
		return fault.Wrap(fault.KindIndexWriteFailure, "qdrant.delete_source",
			fmt.Errorf("source %q: %w", source, err))
	}
	return nil
}

// Name implements the readiness probe contract.
func (s *QdrantStore) Name() string { return "qdrant" }

// Ping checks that the Qdrant server answers health checks.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// SortByScore orders records by descending score, breaking ties by ID.
func SortByScore(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score > records[j].Score
		}
		return records[i].ID < records[j].ID
	})
}
