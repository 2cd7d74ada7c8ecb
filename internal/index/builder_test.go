package index

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"saferag/internal/chunker"
	"saferag/internal/domain"
	"saferag/internal/snapshot"
)

// fakeEmbedder maps text to a 3D vector of simple rune statistics.
type fakeEmbedder struct {
	failOn string
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding service unavailable")
	}
	var vowels, spaces float64
	for _, r := range text {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			vowels++
		case ' ':
			spaces++
		}
	}
	return []float64{float64(len(text)), vowels, spaces}, nil
}

func newTestBuilder(emb domain.Embedder) *Builder {
	b := NewBuilder(chunker.NewWindowChunker(100, 50), emb, 3, log.New(io.Discard, "", 0))
	return b
}

func TestBuildChunks_OrderAndSource(t *testing.T) {
	b := newTestBuilder(&fakeEmbedder{})
	docs := []domain.Document{
		{Title: "first", Content: strings.Repeat("x", 230)},  // 100, 100, 30 (dropped)
		{Title: "short", Content: "too short"},              // dropped entirely
		{Title: "second", Content: strings.Repeat("y", 160)}, // 100, 60
	}
	chunks, err := b.BuildChunks(context.Background(), docs)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wantSources := []string{"first", "first", "second", "second"}
	if len(chunks) != len(wantSources) {
		t.Fatalf("expected %d chunks, got %d", len(wantSources), len(chunks))
	}
	ids := map[string]bool{}
	for i, ch := range chunks {
		if ch.Source != wantSources[i] {
			t.Fatalf("chunk %d: expected source %s, got %s", i, wantSources[i], ch.Source)
		}
		if ch.ID == "" || ids[ch.ID] {
			t.Fatalf("chunk %d: id %q is empty or duplicated", i, ch.ID)
		}
		ids[ch.ID] = true
		if len(ch.Embedding) != 3 {
			t.Fatalf("chunk %d: expected 3D embedding", i)
		}
	}
	if len(chunks[3].Text) != 60 {
		t.Fatalf("expected 60-char tail, got %d", len(chunks[3].Text))
	}
}

func TestBuildChunks_MalformedDocument(t *testing.T) {
	b := newTestBuilder(&fakeEmbedder{})
	_, err := b.BuildChunks(context.Background(), []domain.Document{{Title: "empty", Content: "   "}})
	if !errors.Is(err, ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestRun_WritesBothSnapshots(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Chunks: filepath.Join(dir, "index.json"), Intents: filepath.Join(dir, "safety_index.json")}
	b := newTestBuilder(&fakeEmbedder{})

	res, err := b.Run(context.Background(),
		[]domain.Document{{Title: "Savasana", Content: strings.Repeat("rest quietly ", 20)}},
		[]string{"stop taking my medication", "poses after surgery"},
		paths)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Chunks != 3 || res.Intents != 2 || res.Dimension != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	intents, found, err := snapshot.Read[domain.UnsafeIntent](paths.Intents)
	if err != nil || !found {
		t.Fatalf("read intents: found=%v err=%v", found, err)
	}
	if intents[0].Text != "stop taking my medication" || intents[1].Text != "poses after surgery" {
		t.Fatalf("intent order not preserved: %+v", intents)
	}
}

func TestRun_NoPhrasesWritesEmptySafetyIndex(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Chunks: filepath.Join(dir, "index.json"), Intents: filepath.Join(dir, "safety_index.json")}
	b := newTestBuilder(&fakeEmbedder{})
	if _, err := b.Run(context.Background(), []domain.Document{{Title: "t", Content: strings.Repeat("z", 80)}}, nil, paths); err != nil {
		t.Fatal(err)
	}
	intents, found, err := snapshot.Read[domain.UnsafeIntent](paths.Intents)
	if err != nil || !found || len(intents) != 0 {
		t.Fatalf("expected an existing empty safety index, got found=%v len=%d err=%v", found, len(intents), err)
	}
}

func TestRun_EmbeddingFailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{Chunks: filepath.Join(dir, "index.json"), Intents: filepath.Join(dir, "safety_index.json")}
	prev := []domain.Chunk{{ID: "old", Text: "old text", Source: "old", Embedding: []float64{1, 2, 3}}}
	if err := snapshot.Write(paths.Chunks, prev); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(paths.Chunks)
	if err != nil {
		t.Fatal(err)
	}

	b := newTestBuilder(&fakeEmbedder{failOn: "boom"})
	docs := []domain.Document{
		{Title: "ok", Content: strings.Repeat("fine ", 30)},
		{Title: "bad", Content: strings.Repeat("boom ", 30)},
	}
	if _, err := b.Run(context.Background(), docs, nil, paths); err == nil {
		t.Fatalf("expected build to fail")
	}
	after, err := os.ReadFile(paths.Chunks)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("previous snapshot was modified by a failed build")
	}
	if _, err := os.Stat(paths.Intents); !os.IsNotExist(err) {
		t.Fatalf("safety index must not be written by a failed build")
	}
}

func TestRun_UnwritableIntentsPathKeepsPreviousChunks(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths := Paths{Chunks: filepath.Join(dir, "index.json"), Intents: filepath.Join(blocker, "safety_index.json")}
	prev := []domain.Chunk{{ID: "old", Text: "old text", Source: "old", Embedding: []float64{1, 2, 3}}}
	if err := snapshot.Write(paths.Chunks, prev); err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(paths.Chunks)
	if err != nil {
		t.Fatal(err)
	}

	b := newTestBuilder(&fakeEmbedder{})
	docs := []domain.Document{{Title: "new", Content: strings.Repeat("fresh ", 30)}}
	if _, err := b.Run(context.Background(), docs, []string{"poses after surgery"}, paths); err == nil {
		t.Fatalf("expected build to fail")
	}
	after, err := os.ReadFile(paths.Chunks)
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatalf("chunk snapshot replaced although the safety index could not be written")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("staged files left behind: %d entries in %s", len(entries), dir)
	}
}
