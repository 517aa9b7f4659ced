// Command api runs the buildfix API server: log ingestion, workflow
// orchestration, and the automatic fix pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bharatbuild/buildfix/internal/api"
	"github.com/bharatbuild/buildfix/internal/auth"
	"github.com/bharatbuild/buildfix/internal/classify"
	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/fixer"
	"github.com/bharatbuild/buildfix/internal/fixrules"
	"github.com/bharatbuild/buildfix/internal/logbus"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/orchestrator"
	"github.com/bharatbuild/buildfix/internal/queue"
	pgqueue "github.com/bharatbuild/buildfix/internal/queue/postgres"
	"github.com/bharatbuild/buildfix/internal/rebuild"
	"github.com/bharatbuild/buildfix/internal/sandbox"
	"github.com/bharatbuild/buildfix/internal/secrets"
	"github.com/bharatbuild/buildfix/internal/shutdown"
	"github.com/bharatbuild/buildfix/internal/store"
	pgstore "github.com/bharatbuild/buildfix/internal/store/postgres"
	"github.com/bharatbuild/buildfix/internal/trigger"
	"github.com/bharatbuild/buildfix/internal/watcher"
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
	if cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	coord := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)

	broker := events.NewBroker(log.Logger)
	buses := logbus.NewManager(log.Logger)
	rebuilder := rebuild.New(log.Logger)

	// Persistence is optional. Without a DSN the audit store and fix
	// queue run in-memory inside this process.
	var (
		st store.Store
		q  queue.Queue
	)
	if cfg.DatabaseDSN != "" {
		pg, err := pgstore.New(context.Background(), cfg.DatabaseDSN, log.Logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		st = pg
		q = pgqueue.NewPostgresQueue(pg.DB(), log.Logger)
		coord.Register(shutdown.NewCloserComponent("database", pg))
		log.Info("using postgres store and queue")
	} else {
		st = store.NewMemoryStore()
		q = queue.NewMemoryQueue()
		log.Info("DATABASE_URL not set, using in-memory store and queue")
	}

	executor, err := buildExecutor(cfg.Sandbox, log.Logger)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(auth.Config{
		JWTSecret:   cfg.AuthSecret,
		TokenExpiry: cfg.TokenExpiry,
	}, log.Logger)

	fixers := fixer.NewRegistry(classify.New(), fixrules.New(), executor, log.Logger)
	workflows := orchestrator.NewRegistry(cfg.Workflow, orchestrator.Collaborators{}, broker, log.Logger)

	// Age-encrypted env files are optional; without keys the endpoints
	// report the feature as unconfigured.
	var envStore *secrets.EnvStore
	if cfg.Secrets.AgePublicKey != "" || cfg.Secrets.AgePrivateKey != "" {
		secretsSvc, err := secrets.New(secrets.Config{
			AgePublicKey:  cfg.Secrets.AgePublicKey,
			AgePrivateKey: cfg.Secrets.AgePrivateKey,
		}, log.Logger)
		if err != nil {
			return fmt.Errorf("initializing secrets service: %w", err)
		}
		envStore = secrets.NewEnvStore(secretsSvc)
	}

	// A manual edit to a watched project re-arms automatic fixing.
	watchers := watcher.NewManager(cfg.Trigger.Debounce, func(projectID string) {
		fixers.ResetProject(projectID)
		log.Info("manual edit detected, fix retries reset", "project_id", projectID)
	}, log.Logger)
	coord.Register(shutdown.NewFuncComponent("watchers", func(ctx context.Context) error {
		watchers.Close()
		return nil
	}))

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Every workflow event lands in the audit store.
	recorder := store.NewRecorder(st, broker, log.Logger)
	go recorder.Run(rootCtx)

	// Log buffers age out on a 30-minute retention; sweep well inside
	// that window.
	go buses.RunCleanup(rootCtx, 5*time.Minute)

	// The trigger turns bursts of error logs into queued fix jobs.
	fixTrigger := trigger.New(cfg.Trigger, func(projectID string) {
		enqueueFixJob(rootCtx, q, buses, cfg.ProjectsRoot, projectID, log.Logger)
	}, log.Logger)
	coord.Register(shutdown.NewFuncComponent("fix-trigger", func(ctx context.Context) error {
		fixTrigger.Close()
		return nil
	}))

	// Consume the queue in-process. A standalone worker binary exists
	// for Postgres-backed deployments that scale consumers separately.
	consumer := worker.NewConsumer(q, fixers, st, log.Logger)
	go consumer.Run(rootCtx)

	server := api.NewServer(cfg, api.Deps{
		Buses:     buses,
		Rebuilder: rebuilder,
		Broker:    broker,
		Workflows: workflows,
		Fixers:    fixers,
		Store:     st,
		Trigger:   fixTrigger,
		Auth:      authSvc,
		EnvStore:  envStore,
		Watchers:  watchers,
	}, log.Logger)

	coord.Register(shutdown.NewFuncComponent("background-tasks", func(ctx context.Context) error {
		cancelRoot()
		return nil
	}))
	coord.Register(shutdown.NewFuncComponent("http-server", server.Shutdown))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	go coord.WaitForSignal()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-waitDone(coord):
	}

	coord.Wait()
	if code := coord.ExitCode(); code != 0 {
		os.Exit(code)
	}
	log.Info("server stopped")
	return nil
}

func waitDone(coord *shutdown.Coordinator) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		coord.Wait()
		close(done)
	}()
	return done
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

// enqueueFixJob snapshots a project's errors into one fix job.
func enqueueFixJob(ctx context.Context, q queue.Queue, buses *logbus.Manager, projectsRoot, projectID string, log *slog.Logger) {
	bus := buses.Get(projectID)
	if bus == nil {
		return
	}

	errs := bus.GetErrors()
	if len(errs) == 0 {
		return
	}

	var out strings.Builder
	for _, e := range errs {
		out.WriteString(e.Message)
		if e.Stack != "" {
			out.WriteString("\n")
			out.WriteString(e.Stack)
		}
		out.WriteString("\n")
	}

	job := &models.FixJob{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		ProjectPath: filepath.Join(projectsRoot, projectID),
		ErrorOutput: out.String(),
		ExitCode:    1,
	}
	if err := q.Enqueue(ctx, job); err != nil {
		log.Error("enqueueing fix job failed", "project_id", projectID, "error", err)
		return
	}
	log.Info("fix job enqueued", "project_id", projectID, "job_id", job.ID, "errors", len(errs))
}
