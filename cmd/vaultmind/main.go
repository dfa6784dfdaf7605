// Command vaultmind is a thin CLI entrypoint that loads configuration,
// wires up the persistence layer and Episodic Memory Manager, and runs
// until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultmind/vaultmind/internal/config"
	"github.com/vaultmind/vaultmind/internal/manager"
	"github.com/vaultmind/vaultmind/internal/observe"
	"github.com/vaultmind/vaultmind/internal/sessiondb/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vaultmind: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vaultmind: %v\n", err)
		}
		return 1
	}

	logger, closeLog, err := observe.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vaultmind: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("vaultmind starting",
		"config", *configPath,
		"sessionmemory_enabled", cfg.SessionMemory.Enabled,
		"long_term_memory_enabled", cfg.LongTermMemory.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.SessionDB.URI)
	if err != nil {
		slog.Error("failed to connect to sessiondb", "err", err)
		return 1
	}
	defer pool.Close()

	store := postgres.New(pool)
	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to migrate sessiondb schema", "err", err)
		return 1
	}

	mgr, err := manager.NewManager(ctx, cfg, store)
	if err != nil {
		slog.Error("failed to initialise episodic memory manager", "err", err)
		return 1
	}

	slog.Info("vaultmind ready — press Ctrl+C to shut down")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := mgr.ShutDown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
