package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"saferag/internal/completion/openai"
	"saferag/internal/config"
	"saferag/internal/domain"
	"saferag/internal/embedding/ollama"
	openaiemb "saferag/internal/embedding/openai"
	"saferag/internal/interactions"
	"saferag/internal/safety"
	"saferag/internal/service"
	"saferag/internal/snapshot"
	"saferag/internal/vectorstore/memory"
)

func newLogger(prefix string) *log.Logger {
	return log.New(log.Writer(), prefix, log.LstdFlags)
}

func newEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	timeout := cfg.Timeouts.Embed()
	switch cfg.Embedder.Type {
	case "openai":
		c := cfg.Embedder.OpenAI
		return openaiemb.NewClient(openaiemb.Config{
			BaseURL:    c.BaseURL,
			APIKeyEnv:  c.APIKeyEnv,
			Model:      c.Model,
			Dimensions: c.Dimensions,
			Timeout:    timeout,
		})
	case "ollama":
		c := cfg.Embedder.Ollama
		return ollama.NewClient(ollama.Config{BaseURL: c.BaseURL, Model: c.Model, Timeout: timeout})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// newCompleter returns nil when no completion service is usable; the policy
// then answers with the not-configured message.
func newCompleter(cfg *config.AppConfig, logger *log.Logger) domain.Completer {
	switch cfg.Completion.Type {
	case "openai":
		c := cfg.Completion.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Timeout:   cfg.Timeouts.Complete(),
		})
		if err != nil {
			logger.Printf("completion disabled: %v", err)
			return nil
		}
		return client
	case "none":
		return nil
	default:
		logger.Printf("completion disabled: unknown type %s", cfg.Completion.Type)
		return nil
	}
}

func newInteractionStore(ctx context.Context, cfg *config.AppConfig) (interactions.Store, func(), error) {
	switch cfg.Interactions.Type {
	case "memory":
		return interactions.NewMemoryStore(), func() {}, nil
	case "redis":
		r := cfg.Interactions.Redis
		store := interactions.NewRedisStore(interactions.RedisConfig{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			TTL:      time.Duration(r.TTLHours) * time.Hour,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis connection failed (%s): %w", r.Addr, err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown interactions store: %s", cfg.Interactions.Type)
	}
}

// pipeline is everything a serving process needs to answer queries.
type pipeline struct {
	cfg        *config.AppConfig
	policy     *service.Policy
	chunks     *memory.Storage
	classifier *safety.Classifier
	store      interactions.Store
	close      func()
}

func newPipeline(ctx context.Context, cfg *config.AppConfig) (*pipeline, error) {
	ragLogger := newLogger("[rag] ")
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}
	store, closeStore, err := newInteractionStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := &pipeline{
		cfg:    cfg,
		chunks: memory.NewStorage(ragLogger),
		classifier: safety.NewClassifier(newLogger("[safety] "),
			safety.WithThreshold(cfg.Safety.SemanticThreshold),
			safety.WithDebug(cfg.Safety.Debug),
		),
		store: store,
		close: closeStore,
	}
	if _, _, err := p.reload(); err != nil {
		closeStore()
		return nil, err
	}
	p.policy = service.NewPolicy(service.Deps{
		Embedder:   emb,
		Classifier: p.classifier,
		Retriever:  p.chunks,
		Completer:  newCompleter(cfg, ragLogger),
		Recorder:   store,
		Logger:     ragLogger,
	}, service.Options{
		TopK:            cfg.Retrieval.TopK,
		MinScore:        cfg.Retrieval.MinScore,
		EmbedTimeout:    cfg.Timeouts.Embed(),
		CompleteTimeout: cfg.Timeouts.Complete(),
	})
	return p, nil
}

// reload reads both snapshots before swapping either, so a malformed or
// mismatched file leaves the active pair untouched.
func (p *pipeline) reload() (int, int, error) {
	chunks, _, err := snapshot.Read[domain.Chunk](p.cfg.Index.ChunkSnapshot)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", p.cfg.Index.ChunkSnapshot, err)
	}
	intents, _, err := snapshot.Read[domain.UnsafeIntent](p.cfg.Index.SafetySnapshot)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", p.cfg.Index.SafetySnapshot, err)
	}
	chunkDim, err := memory.Validate(chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", p.cfg.Index.ChunkSnapshot, err)
	}
	intentDim, err := safety.ValidateIntents(intents)
	if err != nil {
		return 0, 0, fmt.Errorf("read %s: %w", p.cfg.Index.SafetySnapshot, err)
	}
	if chunkDim > 0 && intentDim > 0 && chunkDim != intentDim {
		return 0, 0, fmt.Errorf("snapshot dimensions disagree: chunks %d, intents %d", chunkDim, intentDim)
	}
	if err := p.chunks.Replace(chunks); err != nil {
		return 0, 0, err
	}
	if err := p.classifier.Replace(intents); err != nil {
		return 0, 0, err
	}
	return len(chunks), len(intents), nil
}

// Ask and Feedback make the pipeline usable as the terminal client's port.
func (p *pipeline) Ask(ctx context.Context, query string) (*service.Answer, error) {
	return p.policy.Ask(ctx, query)
}

func (p *pipeline) Feedback(ctx context.Context, queryID string, fb domain.Feedback) error {
	return p.store.SetFeedback(ctx, queryID, fb)
}
