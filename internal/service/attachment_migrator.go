package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

// AttachmentMigrator copies helpdesk attachments into the record store.
type AttachmentMigrator struct {
	files   FileStore
	baseURL string
	logger  *zap.Logger
}

// MigrationResult summarizes a batch of attachment copies.
type MigrationResult struct {
	FileIDs []int64
	Missing []domain.Attachment
}

// NewAttachmentMigrator constructs the migrator. sourceBaseURL is the helpdesk origin.
func NewAttachmentMigrator(files FileStore, sourceBaseURL string, logger *zap.Logger) *AttachmentMigrator {
	return &AttachmentMigrator{
		files:   files,
		baseURL: strings.TrimRight(sourceBaseURL, "/"),
		logger:  logger,
	}
}

// AttachmentURL builds the download URL of an attachment token.
func (a *AttachmentMigrator) AttachmentURL(attachment domain.Attachment) string {
	return a.baseURL + "/attachments/token/" + url.PathEscape(attachment.Token) +
		"/?name=" + url.QueryEscape(attachment.Filename)
}

// Migrate copies one attachment under ref. A missing attachment yields found=false.
func (a *AttachmentMigrator) Migrate(ctx context.Context, attachment domain.Attachment, ref *domain.Reference) (int64, bool, error) {
	return a.Upload(ctx, a.AttachmentURL(attachment), attachment.Filename, ref)
}

// MigrateAll copies every attachment, skipping the ones that are gone.
func (a *AttachmentMigrator) MigrateAll(ctx context.Context, attachments []domain.Attachment, ref *domain.Reference) (MigrationResult, error) {
	result := MigrationResult{FileIDs: []int64{}}
	for _, attachment := range attachments {
		fileID, ok, err := a.Migrate(ctx, attachment, ref)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Missing = append(result.Missing, attachment)
			continue
		}
		result.FileIDs = append(result.FileIDs, fileID)
	}
	return result, nil
}

// Upload copies the file at rawURL into the record store.
func (a *AttachmentMigrator) Upload(ctx context.Context, rawURL, filename string, ref *domain.Reference) (int64, bool, error) {
	fileID, err := a.files.UploadFromURL(ctx, rawURL, filename, ref)
	if err != nil {
		if apperrors.IsNotFound(err) {
			a.logger.Warn("attachment could not be uploaded", zap.String("url", rawURL), zap.Error(err))
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("upload %s: %w", rawURL, err)
	}
	return fileID, true, nil
}
