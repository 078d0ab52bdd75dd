package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resumerag/config"
	"resumerag/internal/app"
	"resumerag/internal/logger"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	log      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "resumerag",
	Short: "Résumé retriever - ingest a personal corpus and pack grounded context",
	Long: `resumerag ingests a résumé and an about page into a vector store,
retrieves the passages most relevant to a question, and packs them into a
character budget ready to hand to a language model.

Example usage:
  resumerag init                               # Write a default rag.yaml
  resumerag ingest                             # Ingest the corpus manifest
  resumerag query -q "what languages?"         # Show the packed passages
  resumerag prompt -q "current role?"          # Print the hand-off prompt`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		// Variables already set in the environment win over .env.
		_ = godotenv.Load()

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ApplyEnv(os.Getenv); err != nil {
			return fmt.Errorf("failed to apply environment: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		log, err = logger.New(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./rag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default from config)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}

// openApp opens the store and providers for the current project.
func openApp() (*app.App, error) {
	return app.Open(GetConfig(), GetRootDir(), log)
}
