package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"saferag/internal/config"
	"saferag/internal/metrics"
	"saferag/internal/server"
)

func newServeCmd(loadConfig func() *config.AppConfig) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question-answering HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(ctx, cfg)
			if err != nil {
				log.Fatalf("startup failed: %v", err)
			}
			defer p.close()

			m := metrics.New()
			m.SetSnapshotSizes(p.chunks.Len(), p.classifier.Len())
			srv := server.New(server.Deps{
				Answerer: p.policy,
				Store:    p.store,
				Reload:   p.reload,
				Metrics:  m,
				Logger:   newLogger("[http] "),
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Addr) }()
			select {
			case err := <-errCh:
				if err != nil {
					log.Fatalf("server failed: %v", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Printf("shutdown: %v", err)
				}
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
