package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/service"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

// Runner starts sync runs.
type Runner interface {
	Run(ctx context.Context, req service.RunRequest) (*domain.SyncRun, error)
}

// Scheduler triggers a "recent" sync run on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runs    Runner
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler parses spec as a standard five-field cron expression. Each run
// is cut off after timeout. A tick that fires while the previous one is still
// running is skipped.
func NewScheduler(spec string, runs Runner, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	adapter := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
			cron.WithLogger(adapter),
		),
		runs:    runs,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.logger.Info("sync scheduler started", zap.Time("next", s.Next()))
	s.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running tick returns.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns when the next tick fires.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	run, err := s.runs.Run(ctx, service.RunRequest{Mode: domain.SyncModeRecent})
	switch {
	case apperrors.HasCode(err, apperrors.CodeConflict):
		s.logger.Info("scheduled sync skipped; another run holds the lock")
	case err != nil:
		s.logger.Error("scheduled sync failed", zap.Error(err))
	default:
		s.logger.Info("scheduled sync finished", zap.String("run_id", run.ID), zap.Any("stats", run.Stats))
	}
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
