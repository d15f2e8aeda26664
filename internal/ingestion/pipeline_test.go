package ingestion

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"github.com/54b3r/docchat/internal/chunker"
	"github.com/54b3r/docchat/internal/fault"
	"github.com/54b3r/docchat/internal/rag"
	"github.com/54b3r/docchat/internal/reranker"
)

const hashDim = 32

// hashEmbedder maps text to a bag-of-words vector by hashing each term into
// one of hashDim buckets.
type hashEmbedder struct {
	calls int
	err   error
	// dims, when set, overrides the output dimension per call.
	dims []int
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		dim := hashDim
		if len(h.dims) > 0 {
			dim = h.dims[i%len(h.dims)]
		}
		vec := make([]float32, dim)
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			vec[int(f.Sum32())%dim]++
		}
		out[i] = vec
	}
	return out, nil
}

func (h *hashEmbedder) Model() string { return "hash-test" }

func newTestPipeline(t *testing.T, e rag.Embedder, store rag.VectorStore, cfg *Config) *Pipeline {
	t.Helper()
	p, err := NewPipeline(e, store, cfg)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

// allRecords returns every record in store.
func allRecords(t *testing.T, store *rag.MemoryStore) []rag.Record {
	t.Helper()
	recs, err := store.Search(context.Background(), make([]float32, hashDim), 1<<20)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return recs
}

func countSource(recs []rag.Record, source string) int {
	n := 0
	for _, r := range recs {
		if r.Source == source {
			n++
		}
	}
	return n
}

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()

	store := rag.NewMemoryStore()
	if _, err := NewPipeline(nil, store, nil); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewPipeline(&hashEmbedder{}, nil, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewPipeline(&hashEmbedder{}, store, &Config{ChunkSize: 100, ChunkOverlap: 100}); err == nil {
		t.Error("expected error for overlap >= size")
	}
	if _, err := NewPipeline(&hashEmbedder{}, store, &Config{Mode: "merge"}); err == nil {
		t.Error("expected error for unknown mode")
	}
	p := newTestPipeline(t, &hashEmbedder{}, store, &Config{ChunkSize: 100})
	if p.cfg.ChunkOverlap != 20 || p.cfg.Mode != ModeReplace || p.cfg.BatchSize != DefaultBatchSize {
		t.Errorf("defaults not applied: %+v", p.cfg)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeReplace, false},
		{"replace", ModeReplace, false},
		{"append", ModeAppend, false},
		{"Append", "", true},
		{"upsert", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIngest_ReplaceDropsPreviousCorpus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := rag.NewMemoryStore()
	p := newTestPipeline(t, &hashEmbedder{}, store, nil)

	first := []chunker.Document{
		{Source: "a.txt", Text: "First document."},
		{Source: "b.txt", Text: "Second document."},
	}
	report, err := p.Ingest(ctx, first, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if report.Documents != 2 || report.Chunks != 2 || report.Dimension != hashDim {
		t.Errorf("report = %+v", report)
	}
	if store.Len() != 2 {
		t.Fatalf("store.Len() = %d, want 2", store.Len())
	}

	if _, err := p.Ingest(ctx, []chunker.Document{{Source: "c.txt", Text: "Only this."}}, nil); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	recs := allRecords(t, store)
	if len(recs) != 1 || recs[0].Source != "c.txt" {
		t.Errorf("after replace: %+v", recs)
	}
}

func TestIngest_AppendReplacesOnlyReingestedSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := rag.NewMemoryStore()
	replace := newTestPipeline(t, &hashEmbedder{}, store, &Config{ChunkSize: 40, ChunkOverlap: 10})
	appendP := newTestPipeline(t, &hashEmbedder{}, store, &Config{ChunkSize: 40, ChunkOverlap: 10, Mode: ModeAppend})

	long := strings.Repeat("alpha beta gamma delta epsilon. ", 8)
	if _, err := replace.Ingest(ctx, []chunker.Document{
		{Source: "a.txt", Text: long},
		{Source: "b.txt", Text: "Unrelated notes."},
	}, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	before := countSource(allRecords(t, store), "a.txt")
	if before < 2 {
		t.Fatalf("expected a.txt to span several chunks, got %d", before)
	}

	if _, err := appendP.Ingest(ctx, []chunker.Document{{Source: "a.txt", Text: "Short now."}}, nil); err != nil {
		t.Fatalf("append Ingest: %v", err)
	}
	recs := allRecords(t, store)
	if got := countSource(recs, "a.txt"); got != 1 {
		t.Errorf("a.txt records = %d, want 1 (stale chunks must be removed)", got)
	}
	if got := countSource(recs, "b.txt"); got != 1 {
		t.Errorf("b.txt records = %d, want 1 (untouched source must survive)", got)
	}
	for _, r := range recs {
		if r.Source == "a.txt" && r.Content != "Short now." {
			t.Errorf("a.txt content = %q", r.Content)
		}
	}
}

func TestIngest_RecordMetadata(t *testing.T) {
	t.Parallel()

	store := rag.NewMemoryStore()
	p := newTestPipeline(t, &hashEmbedder{}, store, nil)
	if _, err := p.Ingest(context.Background(), []chunker.Document{
		{Source: "courses/python_basics.txt", Text: "Python course starts Monday."},
	}, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	recs := allRecords(t, store)
	if len(recs) != 1 {
		t.Fatalf("got %d records", len(recs))
	}
	r := recs[0]
	if r.ID != ChunkID("courses/python_basics.txt", 0) {
		t.Errorf("ID = %q", r.ID)
	}
	want := map[string]string{
		"chunk_index":     "0",
		"embedding_model": "hash-test",
		"title":           "Python basics",
		"category":        "courses",
		"format":          "txt",
	}
	for k, v := range want {
		if r.Metadata[k] != v {
			t.Errorf("Metadata[%q] = %q, want %q", k, r.Metadata[k], v)
		}
	}
}

func TestIngest_NoDocuments(t *testing.T) {
	t.Parallel()

	store := rag.NewMemoryStore()
	p := newTestPipeline(t, &hashEmbedder{}, store, nil)

	for _, docs := range [][]chunker.Document{nil, {{Source: "empty.txt", Text: ""}}} {
		_, err := p.Ingest(context.Background(), docs, nil)
		if !errors.Is(err, ErrNoDocuments) {
			t.Errorf("Ingest(%v) error = %v, want ErrNoDocuments", docs, err)
		}
	}
}

func TestIngest_EmbedFailureLeavesIndexIntact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := rag.NewMemoryStore()
	good := newTestPipeline(t, &hashEmbedder{}, store, nil)
	if _, err := good.Ingest(ctx, []chunker.Document{{Source: "a.txt", Text: "kept"}}, nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	bad := newTestPipeline(t, &hashEmbedder{err: errors.New("connection refused")}, store, nil)
	_, err := bad.Ingest(ctx, []chunker.Document{{Source: "b.txt", Text: "new"}}, nil)
	if !fault.Is(err, fault.KindProviderUnavailable) {
		t.Fatalf("error = %v, want ProviderUnavailable", err)
	}
	if store.Len() != 1 {
		t.Errorf("store.Len() = %d, want 1 (replace must not run after a failed embed)", store.Len())
	}
}

func TestIngest_DimensionMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("within one run", func(t *testing.T) {
		t.Parallel()
		store := rag.NewMemoryStore()
		p := newTestPipeline(t, &hashEmbedder{dims: []int{8, 16}}, store, nil)
		_, err := p.Ingest(ctx, []chunker.Document{
			{Source: "a.txt", Text: "one"},
			{Source: "b.txt", Text: "two"},
		}, nil)
		if !fault.Is(err, fault.KindIndexWriteFailure) {
			t.Fatalf("error = %v, want IndexWriteFailure", err)
		}
		if store.Len() != 0 {
			t.Errorf("store.Len() = %d, want 0", store.Len())
		}
	})

	t.Run("append into collection of another dimension", func(t *testing.T) {
		t.Parallel()
		store := rag.NewMemoryStore()
		first := newTestPipeline(t, &hashEmbedder{}, store, nil)
		if _, err := first.Ingest(ctx, []chunker.Document{{Source: "a.txt", Text: "one"}}, nil); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		second := newTestPipeline(t, &hashEmbedder{dims: []int{8}}, store, &Config{Mode: ModeAppend})
		_, err := second.Ingest(ctx, []chunker.Document{{Source: "b.txt", Text: "two"}}, nil)
		if !fault.Is(err, fault.KindIndexWriteFailure) {
			t.Fatalf("error = %v, want IndexWriteFailure", err)
		}
	})

	t.Run("append of the same source keeps previous records", func(t *testing.T) {
		t.Parallel()
		store := rag.NewMemoryStore()
		first := newTestPipeline(t, &hashEmbedder{dims: []int{32}}, store, nil)
		if _, err := first.Ingest(ctx, []chunker.Document{{Source: "a.txt", Text: "one"}}, nil); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		before := store.Len()

		second := newTestPipeline(t, &hashEmbedder{dims: []int{8}}, store, &Config{Mode: ModeAppend})
		_, err := second.Ingest(ctx, []chunker.Document{{Source: "a.txt", Text: "one, revised"}}, nil)
		if !fault.Is(err, fault.KindIndexWriteFailure) {
			t.Fatalf("error = %v, want IndexWriteFailure", err)
		}
		if store.Len() != before {
			t.Errorf("store.Len() = %d after failed append, want %d", store.Len(), before)
		}
		if store.Dimension() != 32 {
			t.Errorf("store.Dimension() = %d, want 32", store.Dimension())
		}
	})
}

func TestIngest_BatchesEmbedCalls(t *testing.T) {
	t.Parallel()

	e := &hashEmbedder{}
	store := rag.NewMemoryStore()
	p := newTestPipeline(t, e, store, &Config{BatchSize: 2})

	docs := make([]chunker.Document, 5)
	for i := range docs {
		docs[i] = chunker.Document{Source: string(rune('a'+i)) + ".txt", Text: "text"}
	}
	var msgs []string
	if _, err := p.Ingest(context.Background(), docs, func(m string) { msgs = append(msgs, m) }); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if e.calls != 3 {
		t.Errorf("embed calls = %d, want 3", e.calls)
	}
	if store.Len() != 5 {
		t.Errorf("store.Len() = %d, want 5", store.Len())
	}
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1], "5/5") {
		t.Errorf("progress = %v", msgs)
	}
}

func TestChunkID(t *testing.T) {
	t.Parallel()

	a := ChunkID("docs/a.txt", 0)
	if a != ChunkID("docs/a.txt", 0) {
		t.Error("ChunkID not deterministic")
	}
	if a == ChunkID("docs/a.txt", 1) || a == ChunkID("docs/b.txt", 0) {
		t.Error("ChunkID collision")
	}
	if len(a) != 36 {
		t.Errorf("ChunkID %q is not a UUID string", a)
	}
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "top.txt", []byte("top level"))
	writeFile(t, root, "courses/python.txt", []byte("Python course"))
	writeFile(t, root, "courses/deep/more.txt", []byte("deeper"))
	writeFile(t, root, "courses/ignored.md", []byte("# not text"))
	// UTF-16LE with BOM: "hé"
	writeFile(t, root, "utf16.txt", []byte{0xFF, 0xFE, 'h', 0x00, 0xE9, 0x00})
	// Windows-1252: "café"
	writeFile(t, root, "latin.txt", []byte{'c', 'a', 'f', 0xE9})
	// UTF-8 BOM is stripped.
	writeFile(t, root, "bom.txt", []byte{0xEF, 0xBB, 0xBF, 'o', 'k'})

	docs, err := LoadDir(context.Background(), root, "")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	got := make(map[string]string, len(docs))
	for _, d := range docs {
		got[d.Source] = d.Text
	}
	want := map[string]string{
		"top.txt":               "top level",
		"courses/python.txt":    "Python course",
		"courses/deep/more.txt": "deeper",
		"utf16.txt":             "hé",
		"latin.txt":             "café",
		"bom.txt":               "ok",
	}
	if len(got) != len(want) {
		t.Errorf("loaded %d documents, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("doc %q = %q, want %q", k, got[k], v)
		}
	}
	for i := 1; i < len(docs); i++ {
		if docs[i-1].Source > docs[i].Source {
			t.Errorf("documents not sorted: %q before %q", docs[i-1].Source, docs[i].Source)
		}
	}
}

func TestLoadDir_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("expected error for missing directory")
	}
	root := t.TempDir()
	writeFile(t, root, "file.txt", []byte("x"))
	if _, err := LoadDir(context.Background(), filepath.Join(root, "file.txt"), ""); err == nil {
		t.Error("expected error for non-directory")
	}
}

// Two short documents, one chunk each; the follow-up query must rank the
// course document first.
func TestIngestDir_RetrievalScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "cusc.txt", []byte("CUSC offers IT training."))
	writeFile(t, root, "python.txt", []byte("Python course starts Monday."))

	e := &hashEmbedder{}
	store := rag.NewMemoryStore()
	p := newTestPipeline(t, e, store, nil)
	report, err := p.IngestDir(ctx, root, nil)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if report.Chunks != 2 {
		t.Fatalf("chunks = %d, want 2", report.Chunks)
	}

	r, err := rag.NewRetriever(&rag.RetrieverConfig{
		Embedder: e,
		Store:    store,
		Reranker: reranker.NewLexical(),
	})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	passages, err := r.Retrieve(ctx, "When does the Python course start?", 10, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("got %d passages, want 2", len(passages))
	}
	if passages[0].Source != "python.txt" {
		t.Errorf("top passage = %q, want python.txt", passages[0].Source)
	}
	if passages[0].RerankScore <= passages[1].RerankScore {
		t.Errorf("rerank scores not descending: %v, %v", passages[0].RerankScore, passages[1].RerankScore)
	}
}
