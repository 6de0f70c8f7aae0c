package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		modified time.Time
		want     bool
	}{
		{"older", now.Add(-time.Second), true},
		{"same instant", now, false},
		{"newer", now.Add(time.Minute), false},
	}
	for _, tt := range tests {
		record := domain.DestinationRecord{LastModified: tt.modified}
		if got := IsStale(record, now); got != tt.want {
			t.Errorf("%s: IsStale = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFindByExternalID(t *testing.T) {
	records := newFakeRecords()
	records.put(10, domain.DestinationRecord{ID: 1, ExternalID: "5"})
	records.put(10, domain.DestinationRecord{ID: 2, ExternalID: "6"})
	records.put(10, domain.DestinationRecord{ID: 3, ExternalID: "6"})
	resolver := NewEntityResolver(records, zap.NewNop())
	ctx := context.Background()

	if got, ok, err := resolver.FindByExternalID(ctx, 10, 5); err != nil || !ok || got.ID != 1 {
		t.Errorf("FindByExternalID(5) = (%d, %v, %v), want (1, true, nil)", got.ID, ok, err)
	}
	if _, ok, err := resolver.FindByExternalID(ctx, 10, 7); err != nil || ok {
		t.Errorf("FindByExternalID(7) = (%v, %v), want absent", ok, err)
	}
	if _, ok, _ := resolver.FindByExternalID(ctx, 11, 5); ok {
		t.Error("FindByExternalID matched a record of another app")
	}
	if got, ok, err := resolver.FindByExternalID(ctx, 10, 6); err != nil || !ok || got.ID != 2 {
		t.Errorf("FindByExternalID(6) = (%d, %v, %v), want first duplicate", got.ID, ok, err)
	}
}
