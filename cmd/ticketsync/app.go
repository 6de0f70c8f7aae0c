package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/adapters/helpdesk"
	"github.com/spec-kit/ticket-sync/internal/adapters/records"
	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/persistence"
	"github.com/spec-kit/ticket-sync/internal/repository"
	"github.com/spec-kit/ticket-sync/internal/service"
	"github.com/spec-kit/ticket-sync/internal/worker"
)

// app holds the wired sync stack shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	postgres *persistence.Postgres
	redis    *persistence.Redis
	metrics  *observability.Metrics
	runs     *service.RunService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	redis := persistence.NewRedis(cfg.Redis, logger)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, metrics, logger))

	source := helpdesk.NewClient(cfg.Source, logger)
	destination := records.NewClient(cfg.Destination, logger)

	engine := service.NewTicketSync(service.SyncDependencies{
		Tickets:    source,
		Users:      source,
		Records:    destination,
		Contacts:   destination,
		Comments:   destination,
		Files:      destination,
		Tags:       destination,
		Dispatcher: dispatcher,
		Logger:     logger,
	}, service.SyncOptions{
		Profile:       cfg.Profile,
		SourceBaseURL: source.BaseURL(),
		ContactURL:    cfg.Destination.ContactURL,
		PageSize:      cfg.Sync.PageSize,
		Silent:        cfg.Sync.Silent,
	})

	runDeps := service.RunDependencies{Engine: engine, Dispatcher: dispatcher, Logger: logger}
	if pg.Enabled() {
		runDeps.Runs = repository.NewSyncRunRepository(pg.PoolHandle())
	}
	if redis.Enabled() {
		runDeps.Locker = redis
	}

	logger.Info("sync stack ready",
		zap.String("profile", cfg.Sync.ProfileName),
		zap.String("helpdesk", source.BaseURL()),
		zap.Bool("run_ledger", pg.Enabled()),
		zap.Bool("run_lock", redis.Enabled()))

	return &app{
		cfg:      cfg,
		logger:   logger,
		postgres: pg,
		redis:    redis,
		metrics:  metrics,
		runs:     service.NewRunService(cfg.Sync, runDeps),
	}, nil
}

func (a *app) Close() {
	a.runs.Close()
	a.redis.Close()
	a.postgres.Close()
}
