package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
)

// TicketSource reads tickets from the helpdesk. ListTickets returns at most one
// page; a short page marks the end of the view.
type TicketSource interface {
	ListTickets(ctx context.Context, viewID int64, page int) ([]domain.SourceTicket, error)
	GetTicket(ctx context.Context, id int64) (domain.SourceTicket, error)
}

// UserSource reads helpdesk users. Unknown ids fail with a NOT_FOUND DomainError.
type UserSource interface {
	GetUser(ctx context.Context, id int64) (domain.SourceUser, error)
}

// RecordStore reads and writes items in the record store.
type RecordStore interface {
	FindByExternalID(ctx context.Context, appID int64, externalID string) ([]domain.DestinationRecord, error)
	CreateRecord(ctx context.Context, appID int64, write domain.RecordWrite) (int64, error)
	UpdateRecord(ctx context.Context, id int64, write domain.RecordWrite) error
}

// ContactDirectory searches the people known to a record store space.
type ContactDirectory interface {
	SearchContacts(ctx context.Context, spaceID int64, field domain.ContactField, value string) ([]domain.DestinationContact, error)
}

// CommentStore reads and posts comments on records.
type CommentStore interface {
	ListComments(ctx context.Context, ref domain.Reference) ([]domain.DestinationComment, error)
	CreateComment(ctx context.Context, ref domain.Reference, text string, fileIDs []int64, silent bool) error
}

// FileStore copies a remote file into the record store. A nil reference uploads
// the file without attaching it. A missing remote file fails with NOT_FOUND.
type FileStore interface {
	UploadFromURL(ctx context.Context, url, filename string, ref *domain.Reference) (int64, error)
}

// TagStore replaces the tag set of a record.
type TagStore interface {
	SetTags(ctx context.Context, ref domain.Reference, tags []string) error
}

// SyncDependencies bundles the collaborators of the sync engine.
type SyncDependencies struct {
	Tickets    TicketSource
	Users      UserSource
	Records    RecordStore
	Contacts   ContactDirectory
	Comments   CommentStore
	Files      FileStore
	Tags       TagStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

func (d SyncDependencies) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
