package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/observability"
)

// AuditService turns sync events into log lines and outcome counters.
type AuditService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.count)
	a.dispatcher.Subscribe(events.EventTicketUpdated, a.count)
	a.dispatcher.Subscribe(events.EventTicketSkipped, a.count)
	a.dispatcher.Subscribe(events.EventRequesterUpserted, a.handleRequesterUpserted)
	a.dispatcher.Subscribe(events.EventCommentPosted, a.count)
	a.dispatcher.Subscribe(events.EventAttachmentMigrated, a.handleAttachmentMigrated)
	a.dispatcher.Subscribe(events.EventAttachmentMissing, a.handleAttachmentMissing)
	a.dispatcher.Subscribe(events.EventRunFinished, a.handleRunFinished)
}

// count records "ticket_created" as entity "ticket", outcome "created".
func (a *AuditService) count(_ context.Context, event events.Event) error {
	entity, outcome, _ := strings.Cut(string(event.Type), "_")
	a.metrics.RecordSync(entity, outcome)
	a.logger.Debug(string(event.Type),
		zap.String("run_id", event.RunID),
		zap.Int64("source_id", event.SourceID),
		zap.Int64("record_id", event.RecordID))
	return nil
}

func (a *AuditService) handleRequesterUpserted(_ context.Context, event events.Event) error {
	outcome := "updated"
	if payload, ok := event.Payload.(events.RequesterUpsertedPayload); ok && payload.Created {
		outcome = "created"
	}
	a.metrics.RecordSync("requester", outcome)
	a.logger.Info("RequesterUpserted",
		zap.String("run_id", event.RunID),
		zap.Int64("user_id", event.SourceID),
		zap.Int64("record_id", event.RecordID),
		zap.String("outcome", outcome))
	return nil
}

func (a *AuditService) handleAttachmentMigrated(_ context.Context, event events.Event) error {
	files := 1
	if n, ok := event.Payload.(int); ok {
		files = n
	}
	for i := 0; i < files; i++ {
		a.metrics.RecordSync("attachment", "migrated")
	}
	return nil
}

func (a *AuditService) handleAttachmentMissing(_ context.Context, event events.Event) error {
	a.metrics.RecordSync("attachment", "missing")
	payload, _ := event.Payload.(events.AttachmentPayload)
	a.logger.Warn("AttachmentMissing",
		zap.String("run_id", event.RunID),
		zap.Int64("ticket_id", event.SourceID),
		zap.String("filename", payload.Filename),
		zap.String("url", payload.URL))
	return nil
}

func (a *AuditService) handleRunFinished(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.RunFinishedPayload)
	a.metrics.RecordSync("run", strings.ToLower(payload.Status))
	a.logger.Info("RunFinished",
		zap.String("run_id", event.RunID),
		zap.String("mode", payload.Mode),
		zap.String("status", payload.Status),
		zap.String("error", payload.Error))
	return nil
}
