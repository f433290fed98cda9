// ABOUTME: CLI entrypoint for the spyglass investigation server: loads config,
// ABOUTME: wires storage, the model client, workflows, and HTTP, then serves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2389-research/spyglass/agents"
	"github.com/2389-research/spyglass/engine"
	"github.com/2389-research/spyglass/llm"
	"github.com/2389-research/spyglass/pipeline"
	"github.com/2389-research/spyglass/server"
	"github.com/2389-research/spyglass/store"
	"github.com/2389-research/spyglass/telemetry"
)

var version = "dev"

func main() {
	var (
		envFile     string
		showVersion bool
	)
	fs := flag.NewFlagSet("spyglass", flag.ExitOnError)
	fs.StringVar(&envFile, "env", ".env", "Path to a .env file (missing file is ignored)")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	_ = fs.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("spyglass %s\n", version)
		os.Exit(0)
	}

	// Existing environment variables win over the .env file.
	_ = godotenv.Load(envFile)

	os.Exit(run())
}

func run() int {
	cfg, err := server.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, telemetryShutdown, err := telemetry.Setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: telemetry setup: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: telemetry shutdown: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	repo, err := openRepository(cfg, logger)
	if err != nil {
		logger.Error("open task store", "error", err)
		return 1
	}
	if closer, ok := repo.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	client, err := llm.NewChatClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		logger.Error("build model client", "error", err)
		return 1
	}

	policy := pipeline.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	exec := pipeline.NewExecutor(policy, logger)

	hub := server.NewHub()
	orch, err := engine.New(engine.Config{
		Repo:        repo,
		Emitter:     hub,
		Research:    agents.NewIndustryResearchPipeline(client, exec),
		Credibility: agents.NewCredibilityPipeline(client, exec),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("build orchestrator", "error", err)
		return 1
	}

	srv := server.NewServer(orch, hub, logger, cfg.ListLimit)
	httpServer := &http.Server{
		Addr:         cfg.Bind,
		Handler:      otelhttp.NewHandler(srv.Handler(), "spyglass-api"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Bind, "version", version)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			return 1
		}
		return 0
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
		return 1
	}
	return 0
}

// openRepository selects the task store: Postgres when a DSN is configured,
// else SQLite when a path is configured, else in-memory.
func openRepository(cfg *server.Config, logger *slog.Logger) (engine.TaskRepository, error) {
	switch {
	case cfg.PostgresDSN != "":
		logger.Info("using postgres task store")
		return store.OpenPostgres(cfg.PostgresDSN)
	case cfg.SQLitePath != "":
		logger.Info("using sqlite task store", "path", cfg.SQLitePath)
		return store.OpenSQLite(cfg.SQLitePath)
	default:
		logger.Warn("no database configured, tasks are lost on restart")
		return store.NewMemoryStore(), nil
	}
}
