package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"saferag/internal/config"
	"saferag/internal/tui"
)

func newAskCmd(loadConfig func() *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask questions interactively, or answer a single question and exit",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			// keep pipeline logs from tearing the terminal UI
			if len(args) == 0 {
				log.SetOutput(io.Discard)
			}
			p, err := newPipeline(context.Background(), cfg)
			if err != nil {
				log.SetOutput(os.Stderr)
				log.Fatalf("startup failed: %v", err)
			}
			defer p.close()

			if len(args) > 0 {
				ans, err := p.Ask(context.Background(), strings.Join(args, " "))
				if err != nil {
					log.Fatalf("ask failed: %v", err)
				}
				if ans.Verdict.IsUnsafe {
					fmt.Println("Safety notice: " + strings.Join(ans.Verdict.Reasons, "; "))
				}
				fmt.Println(ans.Text)
				if len(ans.Sources) > 0 {
					fmt.Println("Sources: " + strings.Join(ans.Sources, ", "))
				}
				return
			}

			summary := fmt.Sprintf("%d chunks, %d unsafe intents loaded", p.chunks.Len(), p.classifier.Len())
			if _, err := tea.NewProgram(tui.New(p, summary), tea.WithAltScreen()).Run(); err != nil {
				log.SetOutput(os.Stderr)
				log.Fatal(err)
			}
		},
	}
}
