package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/trustvibe/tea/internal/config"
	"github.com/trustvibe/tea/internal/logger"
	"github.com/trustvibe/tea/pkg/agent"
	"github.com/trustvibe/tea/pkg/quota"
	"github.com/trustvibe/tea/pkg/reviewstore"
	"github.com/trustvibe/tea/pkg/server"
	"github.com/trustvibe/tea/pkg/teatools"
	"github.com/trustvibe/tea/pkg/toolexecutor"
	"github.com/trustvibe/tea/pkg/websearch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Tea chat service",
	Long: `Start the Tea chat service. The service exposes the streaming chat
endpoint, the community review search, and the web search tools.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logr, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logr.Close()
	log := logr.GetZerolog()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	gate, err := quota.NewGate(db, cfg.Quota.MaxQueries, log)
	if err != nil {
		return fmt.Errorf("failed to create quota gate: %w", err)
	}
	if err := gate.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize quota gate: %w", err)
	}

	store, err := reviewstore.New(db, log)
	if err != nil {
		return fmt.Errorf("failed to create review store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize review store: %w", err)
	}

	web, err := websearch.NewClient(websearch.Config{
		APIKey:     cfg.Serper.APIKey,
		Endpoint:   cfg.Serper.Endpoint,
		NumResults: cfg.Serper.NumResults,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create web search client: %w", err)
	}

	executor := toolexecutor.New()
	if err := teatools.Register(executor, teatools.Options{
		Reviews: store,
		Web:     web,
		Logger:  log,
	}); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey))
	controller, err := agent.NewController(agent.Config{
		Messages:      &anthropicClient.Messages,
		Executor:      executor,
		Model:         cfg.Anthropic.Model,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		MaxIterations: cfg.Anthropic.MaxIterations,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent controller: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		Runner: controller,
		Gate:   gate,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var scheduler *quota.ResetScheduler
	if cfg.Quota.ResetSchedule != "" {
		scheduler, err = quota.NewResetScheduler(gate, cfg.Quota.ResetSchedule, log)
		if err != nil {
			return fmt.Errorf("failed to create reset scheduler: %w", err)
		}
		scheduler.Start()
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().
		Str("model", cfg.Anthropic.Model).
		Int("max_queries", cfg.Quota.MaxQueries).
		Msg("Tea service started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	return nil
}
