package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/hbm-systems/catalog-import/internal/config"
	"github.com/hbm-systems/catalog-import/internal/core"
	"github.com/hbm-systems/catalog-import/internal/database"
	"github.com/hbm-systems/catalog-import/internal/logging"
	"github.com/joho/godotenv"
)

// Exit codes form the process contract with the supervisor: 0 means the
// run succeeded, 1 means the run was claimed but failed, 2 means the
// process never got far enough to claim a run.
const (
	exitOK      = 0
	exitFailed  = 1
	exitStartup = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	runID, uploadID, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage: %s <run-id> <upload-id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitStartup
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return exitStartup
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"db_max_conns", cfg.Database.MaxConns,
		"batch_size", cfg.Import.BatchSize,
		"lock_timeout", cfg.Import.LockTimeout,
	)

	if !cfg.Import.BulkEnabled {
		slog.Warn("bulk import disabled by configuration, proceeding anyway")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the run on SIGINT/SIGTERM so the run row gets finalized
	// as failed instead of lingering in running.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutdown signal received, cancelling run")
		cancel()
	}()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		return exitStartup
	}
	defer pool.Close()

	service := core.NewService(pool, cfg)

	if err := service.EnsureRunTables(ctx); err != nil {
		slog.Error("failed to ensure bookkeeping tables", "error", err)
		return exitStartup
	}

	if err := service.RunImport(ctx, runID, uploadID); err != nil {
		return exitFailed
	}
	return exitOK
}

func parseArgs(args []string) (runID, uploadID int64, err error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	runID, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil || runID <= 0 {
		return 0, 0, fmt.Errorf("run-id must be a positive integer, got %q", args[0])
	}
	uploadID, err = strconv.ParseInt(args[1], 10, 64)
	if err != nil || uploadID <= 0 {
		return 0, 0, fmt.Errorf("upload-id must be a positive integer, got %q", args[1])
	}
	return runID, uploadID, nil
}
