// Package index builds the chunk and unsafe-intent snapshots. Every run is a
// full rebuild; nothing is written unless the whole build succeeds.
package index

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"saferag/internal/chunker"
	"saferag/internal/domain"
	"saferag/internal/snapshot"
)

// ErrMalformedDocument aborts a build when a document has no usable content.
var ErrMalformedDocument = errors.New("malformed document")

// Builder chunks and embeds corpus documents and unsafe-intent phrases.
type Builder struct {
	chunker     *chunker.WindowChunker
	embedder    domain.Embedder
	concurrency int
	logger      *log.Logger
	newID       func() string
}

func NewBuilder(ch *chunker.WindowChunker, emb domain.Embedder, concurrency int, logger *log.Logger) *Builder {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{chunker: ch, embedder: emb, concurrency: concurrency, logger: logger, newID: uuid.NewString}
}

// BuildChunks returns every retained window of every document, in document
// order then window order. Documents are embedded in parallel.
func (b *Builder) BuildChunks(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error) {
	for i, d := range docs {
		if strings.TrimSpace(d.Content) == "" || !utf8.ValidString(d.Content) {
			return nil, fmt.Errorf("%w: #%d %q has missing or invalid content", ErrMalformedDocument, i, d.Title)
		}
	}

	perDoc := make([][]domain.Chunk, len(docs))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, d := range docs {
		i, d := i, d
		g.Go(func() error {
			windows := b.chunker.Split(d.Content)
			chunks := make([]domain.Chunk, 0, len(windows))
			for _, w := range windows {
				vec, err := b.embedder.Embed(gctx, w)
				if err != nil {
					return fmt.Errorf("embed chunk of %q: %w", d.Title, err)
				}
				chunks = append(chunks, domain.Chunk{ID: b.newID(), Text: w, Source: d.Title, Embedding: vec})
			}
			perDoc[i] = chunks
			if n := done.Add(1); n%50 == 0 {
				b.logger.Printf("embedded %d of %d documents", n, len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Chunk
	for _, cs := range perDoc {
		all = append(all, cs...)
	}
	if err := checkDimensions(len(all), func(i int) []float64 { return all[i].Embedding }); err != nil {
		return nil, err
	}
	return all, nil
}

// BuildIntents embeds each phrase, keeping the input order.
func (b *Builder) BuildIntents(ctx context.Context, phrases []string) ([]domain.UnsafeIntent, error) {
	intents := make([]domain.UnsafeIntent, 0, len(phrases))
	for _, p := range phrases {
		vec, err := b.embedder.Embed(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("embed intent %q: %w", p, err)
		}
		intents = append(intents, domain.UnsafeIntent{Text: p, Embedding: vec})
	}
	if err := checkDimensions(len(intents), func(i int) []float64 { return intents[i].Embedding }); err != nil {
		return nil, err
	}
	return intents, nil
}

// Paths names the snapshot files written by Run.
type Paths struct {
	Chunks  string
	Intents string
}

// Result summarises a completed build.
type Result struct {
	Documents int
	Chunks    int
	Intents   int
	Dimension int
}

// Run builds both snapshots and only then writes them, chunks first. If
// anything fails before writing, the previous snapshots stay in place.
func (b *Builder) Run(ctx context.Context, docs []domain.Document, phrases []string, paths Paths) (Result, error) {
	b.logger.Printf("chunking and embedding %d documents with %s", len(docs), b.embedder.Name())
	chunks, err := b.BuildChunks(ctx, docs)
	if err != nil {
		return Result{}, err
	}
	if len(phrases) == 0 {
		b.logger.Printf("no unsafe intents provided, writing an empty safety index")
	}
	intents, err := b.BuildIntents(ctx, phrases)
	if err != nil {
		return Result{}, err
	}
	res := Result{Documents: len(docs), Chunks: len(chunks), Intents: len(intents)}
	if len(chunks) > 0 {
		res.Dimension = len(chunks[0].Embedding)
	}
	if len(chunks) > 0 && len(intents) > 0 && len(intents[0].Embedding) != res.Dimension {
		return Result{}, fmt.Errorf("intent dimension %d does not match chunk dimension %d", len(intents[0].Embedding), res.Dimension)
	}

	stagedChunks, err := snapshot.Stage(paths.Chunks, chunks)
	if err != nil {
		return Result{}, err
	}
	stagedIntents, err := snapshot.Stage(paths.Intents, intents)
	if err != nil {
		stagedChunks.Discard()
		return Result{}, err
	}
	if err := stagedChunks.Commit(); err != nil {
		stagedIntents.Discard()
		return Result{}, err
	}
	b.logger.Printf("saved %d chunks to %s", len(chunks), paths.Chunks)
	if err := stagedIntents.Commit(); err != nil {
		return Result{}, err
	}
	b.logger.Printf("saved %d safety intents to %s", len(intents), paths.Intents)
	return res, nil
}

func checkDimensions(n int, vec func(int) []float64) error {
	if n == 0 {
		return nil
	}
	dim := len(vec(0))
	if dim == 0 {
		return errors.New("embedder returned an empty vector")
	}
	for i := 1; i < n; i++ {
		if len(vec(i)) != dim {
			return fmt.Errorf("embedder returned mixed dimensions: %d and %d", dim, len(vec(i)))
		}
	}
	return nil
}
