package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chunker.Size != 500 || cfg.Chunker.MinLength != 50 {
		t.Fatalf("unexpected chunker defaults %+v", cfg.Chunker)
	}
	if cfg.Retrieval.TopK != 3 || cfg.Retrieval.MinScore != 0.22 || cfg.Safety.SemanticThreshold != 0.75 {
		t.Fatalf("unexpected thresholds %+v %+v", cfg.Retrieval, cfg.Safety)
	}
	if cfg.Embedder.OpenAI == nil || cfg.Embedder.OpenAI.APIKeyEnv != "OPENAI_API_KEY" {
		t.Fatalf("openai embedder defaults not applied: %+v", cfg.Embedder)
	}
	if cfg.Interactions.Type != "memory" {
		t.Fatalf("unexpected interactions type %q", cfg.Interactions.Type)
	}
}

func TestLoad_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  type: ollama
completion:
  type: none
retrieval:
  min_score: 0.3
interactions:
  type: redis
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedder.Ollama == nil || cfg.Embedder.Ollama.Model != "nomic-embed-text" {
		t.Fatalf("ollama defaults not applied: %+v", cfg.Embedder)
	}
	if cfg.Completion.OpenAI != nil {
		t.Fatalf("completion type none must not get openai settings")
	}
	if cfg.Retrieval.MinScore != 0.3 || cfg.Retrieval.TopK != 3 {
		t.Fatalf("unexpected retrieval %+v", cfg.Retrieval)
	}
	if cfg.Interactions.Redis == nil || cfg.Interactions.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis defaults not applied: %+v", cfg.Interactions)
	}
	if cfg.Timeouts.Embed().Seconds() != 15 {
		t.Fatalf("unexpected embed timeout %v", cfg.Timeouts.Embed())
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retrieval: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = ":9090"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Server.Addr != ":9090" || got.Index.ChunkSnapshot != "data/embeddings.json" {
		t.Fatalf("unexpected round trip %+v", got)
	}
}
