package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

func sampleTicket(id int64, updated time.Time) domain.SourceTicket {
	return domain.SourceTicket{
		ID:          id,
		Description: "Printer on fire. Submitted from: Acme Corp",
		Status:      domain.TicketStatusOpen,
		Channel:     domain.TicketChannelWebForm,
		RequesterID: 2,
		UpdatedAt:   updated,
		Tags:        []string{"printer"},
		Comments: []domain.SourceComment{
			{ID: 1, Body: "Printer on fire. Submitted from: Acme Corp", AuthorID: 2},
			{ID: 2, Body: "Still burning", AuthorID: 2},
		},
	}
}

func TestSyncViewPagination(t *testing.T) {
	w := newFakeWorld()
	for page, size := range map[int]int{1: 30, 2: 30, 3: 12} {
		for i := 0; i < size; i++ {
			w.tickets.pages[page] = append(w.tickets.pages[page], domain.SourceTicket{ID: int64(page)*1000 + int64(i)})
		}
	}
	w.tickets.pages[4] = []domain.SourceTicket{{ID: 99999}}

	stats, err := w.engine().SyncView(context.Background(), 47845)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int{1, 2, 3}; !reflect.DeepEqual(w.tickets.listCalls, want) {
		t.Errorf("page fetches = %v, want %v", w.tickets.listCalls, want)
	}
	if stats.Pages != 3 || stats.TicketsSeen != 72 || stats.TicketsCreated != 72 {
		t.Errorf("stats = %+v, want 3 pages 72 tickets", stats)
	}
	if len(w.tickets.getCalls) != 72 {
		t.Errorf("ticket fetches = %d, want 72", len(w.tickets.getCalls))
	}
}

func TestSyncViewEmpty(t *testing.T) {
	w := newFakeWorld()
	stats, err := w.engine().SyncView(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Pages != 1 || stats.TicketsSeen != 0 {
		t.Errorf("stats = %+v, want one empty page", stats)
	}
}

func TestSyncTicketCreatesOnce(t *testing.T) {
	profile := testProfile()
	w := newFakeWorld()
	w.users.users[2] = domain.SourceUser{ID: 2, Name: "Req", Email: "req@x.com"}
	w.tickets.add(sampleTicket(5, time.Now().Add(-time.Hour)))

	stats, err := w.engine().SyncTicket(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	tickets := w.records.createsIn(profile.Ticket.AppID)
	if len(tickets) != 1 || len(w.records.updates) != 0 {
		t.Fatalf("ticket creates = %d updates = %d, want 1 and 0", len(tickets), len(w.records.updates))
	}
	if w.records.creates[0].AppID != profile.Requester.AppID {
		t.Error("ticket written before its requester")
	}
	write := tickets[0].Write
	if write.ExternalID != "5" || !reflect.DeepEqual(write.Tags, []string{"printer"}) {
		t.Errorf("write = %+v", write)
	}
	if got, ok := fieldValue(write.Fields, profile.Ticket.Location); !ok || got != "Acme Corp" {
		t.Errorf("location = %v", got)
	}
	requesterID := w.records.creates[0].RecordID
	if got, ok := fieldValue(write.Fields, profile.Ticket.Requester); !ok || got != requesterID {
		t.Errorf("requester field = %v, want %d", got, requesterID)
	}
	if len(w.comments.posted) != 1 || w.comments.posted[0].Ref.ID != tickets[0].RecordID {
		t.Errorf("posted = %+v, want the one non-description comment", w.comments.posted)
	}
	if stats.TicketsCreated != 1 || stats.RequestersCreated != 1 || stats.CommentsPosted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if w.countEvents(events.EventTicketCreated) != 1 {
		t.Error("ticket_created not published")
	}
}

func TestSyncTicketIdempotentWhenUnchanged(t *testing.T) {
	w := newFakeWorld()
	w.users.users[2] = domain.SourceUser{ID: 2, Name: "Req"}
	w.tickets.add(sampleTicket(5, time.Now().Add(-time.Hour)))
	engine := w.engine()

	if _, err := engine.SyncTicket(context.Background(), 5); err != nil {
		t.Fatal(err)
	}
	creates, posted, tagged := len(w.records.creates), len(w.comments.posted), len(w.tags.calls)

	stats, err := engine.SyncTicket(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.records.creates) != creates || len(w.records.updates) != 0 ||
		len(w.comments.posted) != posted || len(w.tags.calls) != tagged {
		t.Errorf("second run wrote: creates %d updates %d posts %d tags %d",
			len(w.records.creates)-creates, len(w.records.updates), len(w.comments.posted)-posted, len(w.tags.calls)-tagged)
	}
	if stats.TicketsSkipped != 1 {
		t.Errorf("stats = %+v, want one skip", stats)
	}
}

func TestSyncTicketUpdatesStale(t *testing.T) {
	profile := testProfile()
	now := time.Now()
	w := newFakeWorld()
	w.users.users[2] = domain.SourceUser{ID: 2, Name: "Req", UpdatedAt: now.Add(-48 * time.Hour)}
	w.records.put(profile.Requester.AppID, domain.DestinationRecord{ID: 60, ExternalID: "2", Title: "Req", Link: "https://records.example.com/items/60", LastModified: now})
	w.records.put(profile.Ticket.AppID, domain.DestinationRecord{ID: 70, ExternalID: "5", LastModified: now.Add(-time.Hour)})
	w.comments.existing[70] = []domain.DestinationComment{{Value: "Still burning<br /><br />Req"}}
	ticket := sampleTicket(5, now)
	ticket.Comments = append(ticket.Comments, domain.SourceComment{ID: 3, Body: "Now smoking", AuthorID: 2})
	w.tickets.add(ticket)

	stats, err := w.engine().SyncTicket(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.records.creates) != 0 || len(w.records.updates) != 1 || w.records.updates[0].RecordID != 70 {
		t.Fatalf("creates = %d updates = %+v, want one update of 70", len(w.records.creates), w.records.updates)
	}
	if !w.records.updates[0].Write.Silent {
		t.Error("ticket update not silent")
	}
	if len(w.tags.calls) != 1 || w.tags.calls[0].Ref != domain.ItemReference(70) {
		t.Errorf("tag calls = %+v", w.tags.calls)
	}
	if len(w.comments.posted) != 1 {
		t.Fatalf("posted = %+v, want only the new comment", w.comments.posted)
	}
	if want := `Now smoking<br /><br /><a href="https://records.example.com/items/60">Req</a>`; w.comments.posted[0].Text != want {
		t.Errorf("text = %q, want %q", w.comments.posted[0].Text, want)
	}
	if stats.TicketsUpdated != 1 || stats.RequestersUpdated != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

type failingRecords struct {
	*fakeRecords
}

func (f failingRecords) CreateRecord(context.Context, int64, domain.RecordWrite) (int64, error) {
	return 0, apperrors.NewUpstreamError("records", 500, errors.New("down"))
}

func TestSyncViewStopsOnUpstreamFailure(t *testing.T) {
	w := newFakeWorld()
	w.tickets.pages[1] = []domain.SourceTicket{{ID: 1}, {ID: 2}}
	deps := w.deps()
	deps.Records = failingRecords{w.records}
	engine := NewTicketSync(deps, SyncOptions{Profile: testProfile(), SourceBaseURL: testBaseURL})

	_, err := engine.SyncView(context.Background(), 1)
	if !apperrors.HasCode(err, apperrors.CodeUpstream) {
		t.Fatalf("SyncView error = %v, want upstream", err)
	}
	if len(w.tickets.getCalls) != 1 {
		t.Errorf("ticket fetches = %d, want the run to stop after the first", len(w.tickets.getCalls))
	}
}

func TestSyncViewHonorsCancellation(t *testing.T) {
	w := newFakeWorld()
	w.tickets.pages[1] = []domain.SourceTicket{{ID: 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := w.engine().SyncView(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("SyncView error = %v, want context.Canceled", err)
	}
}
