package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"saferag/internal/config"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	rootCmd := &cobra.Command{
		Use:          "saferag",
		Short:        "Retrieval-augmented answers with a safety gate",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/saferag/config.yaml if not provided)")

	loadConfig := func() *config.AppConfig {
		var (
			cfg *config.AppConfig
			err error
		)
		if cfgPath == "" {
			cfg, _, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(cfgPath)
		}
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		return cfg
	}

	rootCmd.AddCommand(newBuildCmd(loadConfig), newServeCmd(loadConfig), newAskCmd(loadConfig))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
