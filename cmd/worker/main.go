// Command worker runs a standalone fix-queue consumer against the
// shared Postgres queue. It lets fix execution scale independently of
// the API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bharatbuild/buildfix/internal/classify"
	"github.com/bharatbuild/buildfix/internal/fixer"
	"github.com/bharatbuild/buildfix/internal/fixrules"
	pgqueue "github.com/bharatbuild/buildfix/internal/queue/postgres"
	"github.com/bharatbuild/buildfix/internal/sandbox"
	"github.com/bharatbuild/buildfix/internal/shutdown"
	pgstore "github.com/bharatbuild/buildfix/internal/store/postgres"
	"github.com/bharatbuild/buildfix/internal/worker"
	"github.com/bharatbuild/buildfix/pkg/config"
	"github.com/bharatbuild/buildfix/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	log := logger.New(slog.LevelInfo, true)
	slog.SetDefault(log.Logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_URL is required: the standalone worker consumes the shared Postgres queue")
	}

	pg, err := pgstore.New(context.Background(), cfg.DatabaseDSN, log.Logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	q := pgqueue.NewPostgresQueue(pg.DB(), log.Logger)

	executor, err := buildExecutor(cfg.Sandbox, log.Logger)
	if err != nil {
		return err
	}
	fixers := fixer.NewRegistry(classify.New(), fixrules.New(), executor, log.Logger)
	consumer := worker.NewConsumer(q, fixers, pg, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coord.Register(shutdown.NewCloserComponent("database", pg))
	coord.Register(shutdown.NewFuncComponent("consumer", func(context.Context) error {
		cancel()
		return nil
	}))

	done := make(chan struct{})
	go func() {
		consumer.Run(ctx)
		close(done)
	}()

	coord.WaitForSignal()
	<-done
	if code := coord.ExitCode(); code != 0 {
		os.Exit(code)
	}
	log.Info("worker stopped")
	return nil
}

// buildExecutor selects the fix-command executor from configuration.
func buildExecutor(cfg config.SandboxConfig, log *slog.Logger) (sandbox.Executor, error) {
	switch cfg.Mode {
	case config.SandboxModeLocal:
		return sandbox.NewLocalExecutor(cfg.CommandTimeout, log), nil
	case config.SandboxModeDocker:
		return sandbox.NewDockerExecutor(cfg.ContainerName, cfg.WorkDir, cfg.CommandTimeout, log), nil
	case config.SandboxModeRemote:
		return sandbox.NewRemoteExecutor(cfg.RemoteHost, cfg.CommandTimeout, log), nil
	default:
		return nil, fmt.Errorf("unsupported sandbox mode %q", cfg.Mode)
	}
}
