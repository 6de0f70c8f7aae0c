package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
)

const (
	attributionSeparator = "<br /><br />"
	unknownAuthor        = "Unknown"
)

// CommentSynchronizer merges a helpdesk comment thread into a record's comments.
type CommentSynchronizer struct {
	comments    CommentStore
	users       *UserResolver
	attachments *AttachmentMigrator
	contactURL  string
	silent      bool
	events      publisher
	logger      *zap.Logger
}

// CommentResult counts what one thread merge did.
type CommentResult struct {
	Posted             int
	Skipped            int
	AttachmentsMoved   int
	AttachmentsMissing int
}

// NewCommentSynchronizer constructs the synchronizer. contactURL prefixes a
// contact's user id to link to their profile.
func NewCommentSynchronizer(deps SyncDependencies, users *UserResolver, attachments *AttachmentMigrator, contactURL string, silent bool) *CommentSynchronizer {
	return &CommentSynchronizer{
		comments:    deps.Comments,
		users:       users,
		attachments: attachments,
		contactURL:  contactURL,
		silent:      silent,
		events:      publisher{dispatcher: deps.Dispatcher, logger: deps.logger()},
		logger:      deps.logger(),
	}
}

// Sync posts every source comment that the record does not already carry.
// The comment repeating the description is never posted; its attachments go
// onto the record itself, and only when newTicket is set.
func (s *CommentSynchronizer) Sync(ctx context.Context, ticket domain.SourceTicket, recordID int64, newTicket bool, existing []domain.DestinationComment) (CommentResult, error) {
	var result CommentResult
	ref := domain.ItemReference(recordID)

	for _, comment := range ticket.Comments {
		if comment.Body == ticket.Description {
			if !newTicket {
				continue
			}
			migrated, err := s.attachments.MigrateAll(ctx, comment.Attachments, &ref)
			if err != nil {
				return result, fmt.Errorf("migrate description attachments of ticket %d: %w", ticket.ID, err)
			}
			s.tallyAttachments(ctx, &result, ticket.ID, recordID, migrated)
			continue
		}

		if AlreadyPosted(comment, existing) {
			result.Skipped++
			continue
		}
		if err := s.post(ctx, ticket, recordID, comment, &result); err != nil {
			return result, err
		}
	}
	return result, nil
}

// AlreadyPosted reports whether some destination comment contains the source text.
func AlreadyPosted(comment domain.SourceComment, existing []domain.DestinationComment) bool {
	for _, candidate := range existing {
		if strings.Contains(candidate.Value, comment.Body) {
			return true
		}
	}
	return false
}

func (s *CommentSynchronizer) post(ctx context.Context, ticket domain.SourceTicket, recordID int64, comment domain.SourceComment, result *CommentResult) error {
	attribution, err := s.Attribution(ctx, ticket.RequesterID, comment.AuthorID)
	if err != nil {
		return fmt.Errorf("attribute comment %d of ticket %d: %w", comment.ID, ticket.ID, err)
	}
	text := comment.Body + attributionSeparator + attribution

	migrated, err := s.attachments.MigrateAll(ctx, comment.Attachments, nil)
	if err != nil {
		return fmt.Errorf("migrate attachments of comment %d: %w", comment.ID, err)
	}
	s.tallyAttachments(ctx, result, ticket.ID, recordID, migrated)

	if err := s.comments.CreateComment(ctx, domain.ItemReference(recordID), text, migrated.FileIDs, s.silent); err != nil {
		return fmt.Errorf("post comment %d on record %d: %w", comment.ID, recordID, err)
	}
	result.Posted++
	s.events.publish(ctx, events.Event{
		Type:     events.EventCommentPosted,
		SourceID: ticket.ID,
		RecordID: recordID,
		Payload:  events.CommentPostedPayload{SourceCommentID: comment.ID, Files: len(migrated.FileIDs)},
	})
	return nil
}

// Attribution renders the author line appended to a posted comment.
func (s *CommentSynchronizer) Attribution(ctx context.Context, requesterID, authorID int64) (string, error) {
	if authorID == requesterID {
		record, ok, err := s.users.FindRequesterRecord(ctx, authorID)
		if err != nil {
			return "", err
		}
		if !ok {
			return unknownAuthor, nil
		}
		return link(record.Link, record.Title), nil
	}

	user, ok, err := s.users.FetchUser(ctx, authorID)
	if err != nil {
		return "", err
	}
	if !ok {
		return unknownAuthor, nil
	}
	contact, ok, err := s.users.matchContact(ctx, user)
	if err != nil {
		return "", err
	}
	if ok {
		return link(s.contactURL+strconv.FormatInt(contact.UserID, 10), contact.Name), nil
	}
	return link("mailto:"+user.Email, user.Name), nil
}

func (s *CommentSynchronizer) tallyAttachments(ctx context.Context, result *CommentResult, ticketID, recordID int64, migrated MigrationResult) {
	result.AttachmentsMoved += len(migrated.FileIDs)
	result.AttachmentsMissing += len(migrated.Missing)
	for _, missing := range migrated.Missing {
		s.events.publish(ctx, events.Event{
			Type:     events.EventAttachmentMissing,
			SourceID: ticketID,
			RecordID: recordID,
			Payload:  events.AttachmentPayload{Filename: missing.Filename, URL: s.attachments.AttachmentURL(missing)},
		})
	}
	if len(migrated.FileIDs) > 0 {
		s.events.publish(ctx, events.Event{
			Type:     events.EventAttachmentMigrated,
			SourceID: ticketID,
			RecordID: recordID,
			Payload:  len(migrated.FileIDs),
		})
	}
}

func link(href, label string) string {
	return `<a href="` + href + `">` + label + `</a>`
}
