package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

// UserResolver links helpdesk users to record store contacts and requester records.
type UserResolver struct {
	users       UserSource
	contacts    ContactDirectory
	records     RecordStore
	resolver    *EntityResolver
	mapper      *FieldMapper
	attachments *AttachmentMigrator
	profile     config.Profile
	silent      bool
	logger      *zap.Logger
}

// RequesterOutcome describes what UpsertRequester did.
type RequesterOutcome struct {
	RecordID int64
	Created  bool
	Updated  bool
}

// NewUserResolver constructs the resolver.
func NewUserResolver(deps SyncDependencies, resolver *EntityResolver, mapper *FieldMapper, attachments *AttachmentMigrator, profile config.Profile, silent bool) *UserResolver {
	return &UserResolver{
		users:       deps.Users,
		contacts:    deps.Contacts,
		records:     deps.Records,
		resolver:    resolver,
		mapper:      mapper,
		attachments: attachments,
		profile:     profile,
		silent:      silent,
		logger:      deps.logger(),
	}
}

// FetchUser loads a helpdesk user. An unknown id is reported as found=false.
func (u *UserResolver) FetchUser(ctx context.Context, userID int64) (domain.SourceUser, bool, error) {
	user, err := u.users.GetUser(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			u.logger.Info("helpdesk user not found", zap.Int64("user_id", userID))
			return domain.SourceUser{}, false, nil
		}
		return domain.SourceUser{}, false, fmt.Errorf("get helpdesk user %d: %w", userID, err)
	}
	return user, true, nil
}

// ResolveContact finds the record store contact for a helpdesk user, first by
// email then by name. Only a single match counts; none or several yield found=false.
func (u *UserResolver) ResolveContact(ctx context.Context, userID int64) (domain.DestinationContact, bool, error) {
	user, ok, err := u.FetchUser(ctx, userID)
	if err != nil || !ok {
		return domain.DestinationContact{}, false, err
	}
	return u.matchContact(ctx, user)
}

func (u *UserResolver) matchContact(ctx context.Context, user domain.SourceUser) (domain.DestinationContact, bool, error) {
	if user.Email != "" {
		contact, ok, err := u.searchOne(ctx, domain.ContactFieldMail, strings.ToLower(user.Email))
		if err != nil || ok {
			return contact, ok, err
		}
	}
	if user.Name != "" {
		return u.searchOne(ctx, domain.ContactFieldName, user.Name)
	}
	return domain.DestinationContact{}, false, nil
}

func (u *UserResolver) searchOne(ctx context.Context, field domain.ContactField, value string) (domain.DestinationContact, bool, error) {
	matches, err := u.contacts.SearchContacts(ctx, u.profile.SpaceID, field, value)
	if err != nil {
		return domain.DestinationContact{}, false, fmt.Errorf("search contacts by %s: %w", field, err)
	}
	if len(matches) != 1 {
		if len(matches) > 1 {
			u.logger.Debug("contact search ambiguous",
				zap.String("field", string(field)),
				zap.Error(apperrors.NewAmbiguousMatch("contact", len(matches))))
		}
		return domain.DestinationContact{}, false, nil
	}
	return matches[0], true, nil
}

// FindRequesterRecord returns the requester record created for a helpdesk user.
func (u *UserResolver) FindRequesterRecord(ctx context.Context, userID int64) (domain.DestinationRecord, bool, error) {
	return u.resolver.FindByExternalID(ctx, u.profile.Requester.AppID, userID)
}

// UpsertRequester makes sure the requester record for userID exists and is current.
// A stale record is rewritten without touching its photo; a new record gets the
// user's photo when one can be migrated.
func (u *UserResolver) UpsertRequester(ctx context.Context, userID int64) (RequesterOutcome, bool, error) {
	user, ok, err := u.FetchUser(ctx, userID)
	if err != nil || !ok {
		return RequesterOutcome{}, false, err
	}

	existing, found, err := u.FindRequesterRecord(ctx, userID)
	if err != nil {
		return RequesterOutcome{}, false, fmt.Errorf("find requester %d: %w", userID, err)
	}
	if found {
		outcome := RequesterOutcome{RecordID: existing.ID}
		if IsStale(existing, user.UpdatedAt) {
			write := domain.RecordWrite{
				ExternalID: ExternalID(userID),
				Fields:     u.mapper.RequesterFields(user, nil),
				Silent:     true,
			}
			if err := u.records.UpdateRecord(ctx, existing.ID, write); err != nil {
				return RequesterOutcome{}, false, fmt.Errorf("update requester record %d: %w", existing.ID, err)
			}
			outcome.Updated = true
		}
		return outcome, true, nil
	}

	var photoID *int64
	if u.mapper.PhotoEligible(user) {
		fileID, ok, err := u.attachments.Upload(ctx, user.PhotoURL, "", nil)
		if err != nil {
			return RequesterOutcome{}, false, fmt.Errorf("migrate photo of user %d: %w", userID, err)
		}
		if ok {
			photoID = &fileID
		}
	}

	write := domain.RecordWrite{
		ExternalID: ExternalID(userID),
		Fields:     u.mapper.RequesterFields(user, photoID),
		Tags:       []string{},
		Silent:     true,
	}
	id, err := u.records.CreateRecord(ctx, u.profile.Requester.AppID, write)
	if err != nil {
		return RequesterOutcome{}, false, fmt.Errorf("create requester record for user %d: %w", userID, err)
	}
	u.logger.Info("requester record created", zap.Int64("user_id", userID), zap.Int64("record_id", id))
	return RequesterOutcome{RecordID: id, Created: true}, true, nil
}
