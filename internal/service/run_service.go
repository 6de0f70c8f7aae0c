package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/repository"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

// SyncEngine runs the ticket sync itself.
type SyncEngine interface {
	SyncView(ctx context.Context, viewID int64) (domain.SyncStats, error)
	SyncTicket(ctx context.Context, ticketID int64) (domain.SyncStats, error)
}

// RunLocker guards a destination schema against overlapping runs. Extend
// reports ok=false once token no longer holds the lock.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// ErrLockLost cancels a run whose lock expired or was taken over.
var ErrLockLost = errors.New("sync run lock lost")

// RunRequest selects what a run syncs.
type RunRequest struct {
	Mode     domain.SyncMode
	TicketID int64
}

// RunService wraps engine invocations with locking and the run ledger.
type RunService struct {
	engine SyncEngine
	runs   repository.SyncRunRepository
	locker RunLocker
	cfg    config.SyncConfig
	events publisher
	logger *zap.Logger

	// refreshEvery is how often a held lock is extended; a third of the TTL.
	refreshEvery time.Duration
	background   context.Context
	stop         context.CancelFunc
	wg           sync.WaitGroup
}

// RunDependencies lists the collaborators of RunService. Runs and Locker are
// optional; without them runs are neither recorded nor serialized.
type RunDependencies struct {
	Engine     SyncEngine
	Runs       repository.SyncRunRepository
	Locker     RunLocker
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewRunService builds the service.
func NewRunService(cfg config.SyncConfig, deps RunDependencies) *RunService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	background, stop := context.WithCancel(context.Background())
	return &RunService{
		engine:       deps.Engine,
		runs:         deps.Runs,
		locker:       deps.Locker,
		cfg:          cfg,
		events:       publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:       logger,
		refreshEvery: cfg.LockTTL() / 3,
		background:   background,
		stop:         stop,
	}
}

// Run executes one sync run to completion. The returned run is populated even
// when the sync itself failed. The lock is extended for as long as the run lasts.
func (s *RunService) Run(ctx context.Context, req RunRequest) (*domain.SyncRun, error) {
	run, token, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.unlock(ctx, token)
	return run, s.execute(ctx, run, req, token)
}

// Start takes the lock and records the run, then finishes it in the background.
// Background runs are cancelled by Close.
func (s *RunService) Start(ctx context.Context, req RunRequest) (*domain.SyncRun, error) {
	run, token, err := s.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	started := *run

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.unlock(s.background, token)
		_ = s.execute(s.background, run, req, token)
	}()
	return &started, nil
}

// Wait blocks until every run begun by Start has finished.
func (s *RunService) Wait() {
	s.wg.Wait()
}

// Close cancels the runs begun by Start and waits for them to record their result.
func (s *RunService) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *RunService) begin(ctx context.Context, req RunRequest) (*domain.SyncRun, string, error) {
	run := &domain.SyncRun{
		ID:        uuid.NewString(),
		Mode:      req.Mode,
		Status:    domain.SyncRunRunning,
		StartedAt: time.Now(),
	}
	switch req.Mode {
	case domain.SyncModeAll, domain.SyncModeRecent:
		viewID, err := s.cfg.ViewFor(string(req.Mode))
		if err != nil {
			return nil, "", apperrors.NewValidationError(err.Error(), nil)
		}
		run.ViewID = viewID
	case domain.SyncModeTicket:
		if req.TicketID <= 0 {
			return nil, "", apperrors.NewValidationError("ticket id is required", map[string]any{"ticket_id": req.TicketID})
		}
	default:
		return nil, "", apperrors.NewValidationError("unknown sync mode", map[string]any{"mode": req.Mode})
	}

	token, err := s.lock(ctx)
	if err != nil {
		return nil, "", err
	}
	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.unlock(ctx, token)
			return nil, "", err
		}
	}
	return run, token, nil
}

func (s *RunService) execute(ctx context.Context, run *domain.SyncRun, req RunRequest, token string) error {
	ctx = WithRunID(ctx, run.ID)
	logger := s.logger.With(zap.String("run_id", run.ID), zap.String("mode", string(run.Mode)))
	ctx, release := s.keepLocked(ctx, token, logger)
	defer release()
	logger.Info("sync run started", zap.Int64("view_id", run.ViewID), zap.Int64("ticket_id", req.TicketID))

	var (
		stats domain.SyncStats
		err   error
	)
	if req.Mode == domain.SyncModeTicket {
		stats, err = s.engine.SyncTicket(ctx, req.TicketID)
	} else {
		stats, err = s.engine.SyncView(ctx, run.ViewID)
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrLockLost) {
		if err == nil {
			err = cause
		} else {
			err = fmt.Errorf("%w: %w", cause, err)
		}
	}

	run.Stats = stats
	run.Status = domain.SyncRunSucceeded
	payload := events.RunFinishedPayload{Mode: string(run.Mode)}
	if err != nil {
		run.Status = domain.SyncRunFailed
		msg := err.Error()
		run.Error = &msg
		payload.Error = msg
		logger.Error("sync run failed", zap.Error(err), zap.Any("stats", stats))
	} else {
		logger.Info("sync run finished", zap.Any("stats", stats))
	}
	payload.Status = string(run.Status)

	finishCtx := context.WithoutCancel(ctx)
	if s.runs != nil {
		if ferr := s.runs.Finish(finishCtx, run); ferr != nil {
			logger.Error("record run result", zap.Error(ferr))
		}
	}
	if run.FinishedAt == nil {
		now := time.Now()
		run.FinishedAt = &now
	}
	s.events.publish(finishCtx, events.Event{Type: events.EventRunFinished, Payload: payload})
	return err
}

func (s *RunService) lock(ctx context.Context) (string, error) {
	if s.locker == nil {
		return "", nil
	}
	token, ok, err := s.locker.Acquire(ctx, s.cfg.LockKey, s.cfg.LockTTL())
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if !ok {
		return "", apperrors.NewConflict("a sync run is already in progress", map[string]any{"lock_key": s.cfg.LockKey})
	}
	return token, nil
}

func (s *RunService) unlock(ctx context.Context, token string) {
	if s.locker == nil || token == "" {
		return
	}
	if err := s.locker.Release(context.WithoutCancel(ctx), s.cfg.LockKey, token); err != nil {
		s.logger.Warn("release run lock", zap.Error(err))
	}
}

// keepLocked extends the lock every refreshEvery until the returned stop func
// is called. Losing the lock cancels the returned context with ErrLockLost.
// A failed extension is retried on the next tick.
func (s *RunService) keepLocked(ctx context.Context, token string, logger *zap.Logger) (context.Context, func()) {
	if s.locker == nil || token == "" || s.refreshEvery <= 0 {
		return ctx, func() {}
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := s.locker.Extend(ctx, s.cfg.LockKey, token, s.cfg.LockTTL())
				if err != nil {
					logger.Warn("extend run lock", zap.Error(err))
					continue
				}
				if !ok {
					logger.Error("run lock lost; cancelling run", zap.String("lock_key", s.cfg.LockKey))
					cancel(ErrLockLost)
					return
				}
			}
		}
	}()

	return ctx, func() {
		cancel(nil)
		<-done
	}
}

// ListRuns returns the most recent runs, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	if s.runs == nil {
		return []domain.SyncRun{}, nil
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.SyncRun{}
	}
	return runs, nil
}

// GetRun returns one recorded run.
func (s *RunService) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	if s.runs == nil {
		return nil, apperrors.NewNotFound("sync run", map[string]any{"run_id": id})
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("sync run", map[string]any{"run_id": id})
		}
		return nil, err
	}
	return run, nil
}
