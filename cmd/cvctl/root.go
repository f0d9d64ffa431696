package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cv-ingest/internal/common"
	"github.com/joseph-ayodele/cv-ingest/internal/llm"
	"github.com/joseph-ayodele/cv-ingest/internal/llm/openai"
	"github.com/joseph-ayodele/cv-ingest/internal/pipeline"
	repo "github.com/joseph-ayodele/cv-ingest/internal/repository"
)

var (
	cfg    = common.LoadConfig()
	logger *slog.Logger

	dbDriver string
	dbURL    string
	model    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cvctl",
	Short: "Extract, ingest and export academic CVs",
	Long: `cvctl runs the CV extraction pipeline from the command line.

Flags override the matching environment variables (DB_DRIVER, DB_URL,
OPENAI_MODEL, LOG_LEVEL). OPENAI_API_KEY is read from the environment only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dbDriver != "" {
			cfg.Database.Driver = dbDriver
		}
		if dbURL != "" {
			cfg.Database.DSN = dbURL
		}
		if model != "" {
			cfg.LLM.Model = model
		}
		level := cfg.LogLevel
		if logLevel != "" {
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "database driver: postgres or sqlite (env DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database DSN (env DB_URL)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model name (env OPENAI_MODEL)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	rootCmd.AddCommand(extractCmd, ingestCmd, exportCmd, dbhealthCmd)
}

func openStore(ctx context.Context) (*repo.DB, repo.ResearcherRepository, error) {
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return nil, nil, common.NewAppError("CONFIG_ERROR", "DB_URL or --db-url is required for postgres", common.ErrInvalidInput)
	}
	db, err := repo.Connect(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return db, repo.NewResearcherRepository(db, logger), nil
}

// newProcessor builds a pipeline; store may be nil for dry runs.
func newProcessor(store pipeline.Store) *pipeline.Processor {
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.AttemptTimeout + 10*time.Second,
	}, logger)
	executor := llm.NewExecutor(client, llm.ExecutorConfig{
		AttemptTimeout: cfg.LLM.AttemptTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryDelay:     cfg.LLM.RetryDelay,
	}, logger)
	return pipeline.NewProcessor(pipeline.Config{
		Model:         client.Model(),
		MaxInputChars: cfg.LLM.MaxInputChars,
		MaxPages:      cfg.Server.MaxPages,
	}, executor, store, nil, logger)
}
