package rag

import (
	"context"
	"testing"

	"github.com/54b3r/docchat/internal/fault"
)

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryStore()
	if err := m.Upsert(ctx, []Record{{ID: "a"}}, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	err := m.Upsert(ctx, []Record{{ID: "b"}}, [][]float32{{1, 2}})
	if !fault.Is(err, fault.KindIndexWriteFailure) {
		t.Fatalf("err = %v, want index write failure", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Upsert(ctx, []Record{{ID: "a", Content: "old"}}, [][]float32{{1, 0}})
	_ = m.Upsert(ctx, []Record{{ID: "a", Content: "new"}}, [][]float32{{1, 0}})

	got, err := m.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Content != "new" {
		t.Fatalf("Search = %+v, want single record with content new", got)
	}
}

func TestMemoryStore_SearchOrderAndTies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryStore()
	records := []Record{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	vecs := [][]float32{{1, 0}, {1, 0}, {0, 1}}
	if err := m.Upsert(ctx, records, vecs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := m.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("Search ids = %v, want [a c]", got)
	}
}

func TestMemoryStore_DeleteSourceAndReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemoryStore()
	records := []Record{
		{ID: "1", Source: "a.txt"},
		{ID: "2", Source: "b.txt"},
		{ID: "3", Source: "a.txt"},
	}
	vecs := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	if err := m.Upsert(ctx, records, vecs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := m.DeleteSource(ctx, "a.txt"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len after delete = %d, want 1", m.Len())
	}

	if err := m.Reset(ctx, 3); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Len after reset = %d, want 0", m.Len())
	}
	if err := m.Upsert(ctx, []Record{{ID: "x"}}, [][]float32{{1, 0}}); !fault.Is(err, fault.KindIndexWriteFailure) {
		t.Fatalf("Upsert with old dimension after reset: err = %v, want index write failure", err)
	}
	if err := m.Reset(ctx, 0); err == nil {
		t.Fatal("Reset(0) should fail")
	}
}
