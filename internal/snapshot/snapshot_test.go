package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"saferag/internal/domain"
)

func TestRead_MissingFile(t *testing.T) {
	records, found, err := Read[domain.Chunk](filepath.Join(t.TempDir(), "index.json"))
	if err != nil {
		t.Fatalf("expected no error for missing snapshot, got %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestRead_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte(`[{"id": "x", "embedding": [1, 2`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, found, err := Read[domain.Chunk](path)
	if !found {
		t.Fatalf("expected found=true for an existing file")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestWrite_PreservesFloatPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	want := []domain.Chunk{
		{ID: "a", Text: "Mountain pose grounds the feet.", Source: "Tadasana", Embedding: []float64{0.123456789, -0.000001234567, 0.5}},
	}
	if err := Write(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, found, err := Read[domain.Chunk](path)
	if err != nil || !found {
		t.Fatalf("read: found=%v err=%v", found, err)
	}
	if len(got) != 1 || got[0].Source != "Tadasana" {
		t.Fatalf("unexpected records: %+v", got)
	}
	for i, v := range want[0].Embedding {
		if got[0].Embedding[i] != v {
			t.Fatalf("embedding[%d]: want %v, got %v", i, v, got[0].Embedding[i])
		}
	}
}

func TestWrite_ReplacesWholesaleAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "safety_index.json")
	if err := Write(path, []domain.UnsafeIntent{{Text: "one"}, {Text: "two"}}); err != nil {
		t.Fatal(err)
	}
	if err := Write[domain.UnsafeIntent](path, nil); err != nil {
		t.Fatal(err)
	}
	got, found, err := Read[domain.UnsafeIntent](path)
	if err != nil || !found {
		t.Fatalf("read: found=%v err=%v", found, err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty snapshot after rewrite, got %d records", len(got))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestStage_CommitAndDiscard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	if err := Write(path, []domain.UnsafeIntent{{Text: "old"}}); err != nil {
		t.Fatal(err)
	}

	discarded, err := Stage(path, []domain.UnsafeIntent{{Text: "discarded"}})
	if err != nil {
		t.Fatal(err)
	}
	discarded.Discard()
	got, _, _ := Read[domain.UnsafeIntent](path)
	if len(got) != 1 || got[0].Text != "old" {
		t.Fatalf("discarded stage must not touch the target, got %+v", got)
	}

	staged, err := Stage(path, []domain.UnsafeIntent{{Text: "new"}})
	if err != nil {
		t.Fatal(err)
	}
	got, _, _ = Read[domain.UnsafeIntent](path)
	if got[0].Text != "old" {
		t.Fatalf("target replaced before commit")
	}
	if err := staged.Commit(); err != nil {
		t.Fatal(err)
	}
	got, _, _ = Read[domain.UnsafeIntent](path)
	if got[0].Text != "new" {
		t.Fatalf("commit did not replace the target, got %+v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the snapshot file, found %d entries", len(entries))
	}
}
