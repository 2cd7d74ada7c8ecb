package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"saferag/internal/chunker"
	"saferag/internal/config"
	"saferag/internal/corpus"
	"saferag/internal/index"
	"saferag/internal/summarizer"
)

func newBuildCmd(loadConfig func() *config.AppConfig) *cobra.Command {
	var digest int
	cmd := &cobra.Command{
		Use:   "build [documents...]",
		Short: "Chunk and embed the corpus and unsafe intents into snapshot files",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if len(args) > 0 {
				cfg.Index.Documents = args
			}
			logger := newLogger("[index] ")

			docs, err := corpus.LoadDocuments(cfg.Index.Documents)
			if err != nil {
				log.Fatalf("load corpus: %v", err)
			}
			phrases, err := corpus.LoadPhrases(cfg.Index.IntentsFile)
			if err != nil {
				log.Fatalf("load unsafe intents: %v", err)
			}
			emb, err := newEmbedder(cfg)
			if err != nil {
				log.Fatalf("embedder init failed: %v", err)
			}

			b := index.NewBuilder(chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.MinLength), emb, cfg.Index.Concurrency, logger)
			start := time.Now()
			res, err := b.Run(context.Background(), docs, phrases, index.Paths{
				Chunks:  cfg.Index.ChunkSnapshot,
				Intents: cfg.Index.SafetySnapshot,
			})
			if err != nil {
				log.Fatalf("build failed: %v", err)
			}
			logger.Printf("indexed %d documents into %d chunks (%d dims) and %d intents in %s",
				res.Documents, res.Chunks, res.Dimension, res.Intents, time.Since(start).Round(time.Millisecond))

			if digest > 0 {
				for _, d := range summarizer.NewFrequency().DigestDocuments(docs, digest) {
					fmt.Printf("%s\n  %s\n", d.Title, d.Summary)
				}
			}
		},
	}
	cmd.Flags().IntVar(&digest, "digest", 0, "Print an N-sentence digest of every indexed document")
	return cmd
}
