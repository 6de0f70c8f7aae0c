package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
)

// DefaultPageSize is the helpdesk's fixed view page size.
const DefaultPageSize = 30

// SyncOptions parameterizes the engine with a destination schema.
type SyncOptions struct {
	Profile       config.Profile
	SourceBaseURL string
	ContactURL    string
	PageSize      int
	Silent        bool
}

// TicketSync walks helpdesk views and upserts every ticket, its requester and its
// comment thread into the record store. Tickets are settled one at a time.
type TicketSync struct {
	tickets  TicketSource
	records  RecordStore
	comments CommentStore
	tags     TagStore

	resolver *EntityResolver
	mapper   *FieldMapper
	users    *UserResolver
	thread   *CommentSynchronizer

	profile  config.Profile
	pageSize int
	silent   bool
	events   publisher
	logger   *zap.Logger
}

// NewTicketSync wires the engine's components.
func NewTicketSync(deps SyncDependencies, opts SyncOptions) *TicketSync {
	logger := deps.logger()
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	resolver := NewEntityResolver(deps.Records, logger)
	mapper := NewFieldMapper(opts.Profile, opts.SourceBaseURL, logger)
	attachments := NewAttachmentMigrator(deps.Files, opts.SourceBaseURL, logger)
	users := NewUserResolver(deps, resolver, mapper, attachments, opts.Profile, opts.Silent)

	return &TicketSync{
		tickets:  deps.Tickets,
		records:  deps.Records,
		comments: deps.Comments,
		tags:     deps.Tags,
		resolver: resolver,
		mapper:   mapper,
		users:    users,
		thread:   NewCommentSynchronizer(deps, users, attachments, opts.ContactURL, opts.Silent),
		profile:  opts.Profile,
		pageSize: pageSize,
		silent:   opts.Silent,
		events:   publisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:   logger,
	}
}

// SyncView upserts every ticket of a helpdesk view, page by page, until a page
// comes back shorter than the page size.
func (s *TicketSync) SyncView(ctx context.Context, viewID int64) (domain.SyncStats, error) {
	var stats domain.SyncStats
	for page := 1; ; page++ {
		listed, err := s.tickets.ListTickets(ctx, viewID, page)
		if err != nil {
			return stats, fmt.Errorf("list view %d page %d: %w", viewID, page, err)
		}
		stats.Pages++
		s.logger.Info("syncing page",
			zap.Int64("view_id", viewID),
			zap.Int("page", page),
			zap.Int("tickets", len(listed)))

		for _, summary := range listed {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := s.syncByID(ctx, summary.ID, &stats); err != nil {
				return stats, err
			}
		}

		if len(listed) < s.pageSize {
			return stats, nil
		}
	}
}

// SyncTicket upserts a single helpdesk ticket.
func (s *TicketSync) SyncTicket(ctx context.Context, ticketID int64) (domain.SyncStats, error) {
	var stats domain.SyncStats
	err := s.syncByID(ctx, ticketID, &stats)
	return stats, err
}

func (s *TicketSync) syncByID(ctx context.Context, ticketID int64, stats *domain.SyncStats) error {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("get ticket %d: %w", ticketID, err)
	}
	return s.Upsert(ctx, ticket, stats)
}

// Upsert creates the record of a ticket on first sight and rewrites it when the
// ticket changed since the record's last revision.
func (s *TicketSync) Upsert(ctx context.Context, ticket domain.SourceTicket, stats *domain.SyncStats) error {
	stats.TicketsSeen++

	existing, found, err := s.resolver.FindByExternalID(ctx, s.profile.Ticket.AppID, ticket.ID)
	if err != nil {
		return fmt.Errorf("find record of ticket %d: %w", ticket.ID, err)
	}

	if found {
		return s.update(ctx, ticket, existing, stats)
	}
	return s.create(ctx, ticket, stats)
}

func (s *TicketSync) update(ctx context.Context, ticket domain.SourceTicket, existing domain.DestinationRecord, stats *domain.SyncStats) error {
	if !IsStale(existing, ticket.UpdatedAt) {
		stats.TicketsSkipped++
		s.events.publish(ctx, events.Event{
			Type:     events.EventTicketSkipped,
			SourceID: ticket.ID,
			RecordID: existing.ID,
			Payload:  events.TicketSkippedPayload{LastModified: existing.LastModified, SourceUpdatedAt: ticket.UpdatedAt},
		})
		return nil
	}

	fields, err := s.ticketFields(ctx, ticket, stats)
	if err != nil {
		return err
	}
	write := domain.RecordWrite{ExternalID: ExternalID(ticket.ID), Fields: fields, Silent: true}
	if err := s.records.UpdateRecord(ctx, existing.ID, write); err != nil {
		return fmt.Errorf("update record %d of ticket %d: %w", existing.ID, ticket.ID, err)
	}

	ref := domain.ItemReference(existing.ID)
	if err := s.tags.SetTags(ctx, ref, ticket.Tags); err != nil {
		return fmt.Errorf("set tags of record %d: %w", existing.ID, err)
	}
	current, err := s.comments.ListComments(ctx, ref)
	if err != nil {
		return fmt.Errorf("list comments of record %d: %w", existing.ID, err)
	}
	result, err := s.thread.Sync(ctx, ticket, existing.ID, false, current)
	addComments(stats, result)
	if err != nil {
		return err
	}

	stats.TicketsUpdated++
	s.logger.Info("ticket updated", zap.Int64("ticket_id", ticket.ID), zap.Int64("record_id", existing.ID))
	s.events.publish(ctx, events.Event{Type: events.EventTicketUpdated, SourceID: ticket.ID, RecordID: existing.ID})
	return nil
}

func (s *TicketSync) create(ctx context.Context, ticket domain.SourceTicket, stats *domain.SyncStats) error {
	fields, err := s.ticketFields(ctx, ticket, stats)
	if err != nil {
		return err
	}
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	write := domain.RecordWrite{ExternalID: ExternalID(ticket.ID), Fields: fields, Tags: tags, Silent: s.silent}
	recordID, err := s.records.CreateRecord(ctx, s.profile.Ticket.AppID, write)
	if err != nil {
		return fmt.Errorf("create record of ticket %d: %w", ticket.ID, err)
	}

	result, err := s.thread.Sync(ctx, ticket, recordID, true, nil)
	addComments(stats, result)
	if err != nil {
		return err
	}

	stats.TicketsCreated++
	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.Int64("record_id", recordID))
	s.events.publish(ctx, events.Event{Type: events.EventTicketCreated, SourceID: ticket.ID, RecordID: recordID})
	return nil
}

// ticketFields resolves the assignee and upserts the requester before mapping,
// so the ticket record never points at a requester that was not written yet.
func (s *TicketSync) ticketFields(ctx context.Context, ticket domain.SourceTicket, stats *domain.SyncStats) ([]domain.FieldValue, error) {
	var links TicketLinks

	if ticket.AssigneeID != nil {
		contact, ok, err := s.users.ResolveContact(ctx, *ticket.AssigneeID)
		if err != nil {
			return nil, fmt.Errorf("resolve assignee of ticket %d: %w", ticket.ID, err)
		}
		if ok {
			links.AssigneeProfileID = &contact.ProfileID
		}
	}

	outcome, ok, err := s.users.UpsertRequester(ctx, ticket.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("upsert requester of ticket %d: %w", ticket.ID, err)
	}
	if ok {
		links.RequesterRecordID = &outcome.RecordID
		if outcome.Created {
			stats.RequestersCreated++
		}
		if outcome.Updated {
			stats.RequestersUpdated++
		}
		if outcome.Created || outcome.Updated {
			s.events.publish(ctx, events.Event{
				Type:     events.EventRequesterUpserted,
				SourceID: ticket.RequesterID,
				RecordID: outcome.RecordID,
				Payload:  events.RequesterUpsertedPayload{Created: outcome.Created, Updated: outcome.Updated},
			})
		}
	}

	return s.mapper.TicketFields(ticket, links), nil
}

func addComments(stats *domain.SyncStats, result CommentResult) {
	stats.CommentsPosted += result.Posted
	stats.AttachmentsMoved += result.AttachmentsMoved
	stats.AttachmentsMissing += result.AttachmentsMissing
}
