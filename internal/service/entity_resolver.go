package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// ExternalID renders a helpdesk id the way records are tagged with it.
func ExternalID(sourceID int64) string {
	return strconv.FormatInt(sourceID, 10)
}

// EntityResolver finds the record already created for a helpdesk entity.
type EntityResolver struct {
	records RecordStore
	logger  *zap.Logger
}

// NewEntityResolver constructs the resolver.
func NewEntityResolver(records RecordStore, logger *zap.Logger) *EntityResolver {
	return &EntityResolver{records: records, logger: logger}
}

// FindByExternalID returns the record of appID tagged with sourceID. An empty
// result is reported as found=false. When several records carry the same tag the
// first one is used and the duplication is logged.
func (r *EntityResolver) FindByExternalID(ctx context.Context, appID, sourceID int64) (domain.DestinationRecord, bool, error) {
	externalID := ExternalID(sourceID)
	matches, err := r.records.FindByExternalID(ctx, appID, externalID)
	if err != nil {
		return domain.DestinationRecord{}, false, err
	}
	switch len(matches) {
	case 0:
		return domain.DestinationRecord{}, false, nil
	case 1:
		return matches[0], true, nil
	}
	r.logger.Warn("external id matches several records",
		zap.Int64("app_id", appID),
		zap.String("external_id", externalID),
		zap.Int("count", len(matches)),
		zap.Int64("using_record_id", matches[0].ID))
	return matches[0], true, nil
}

// IsStale reports whether a record predates the source's last update. Equal
// timestamps count as current.
func IsStale(record domain.DestinationRecord, sourceUpdatedAt time.Time) bool {
	return record.LastModified.Before(sourceUpdatedAt)
}
