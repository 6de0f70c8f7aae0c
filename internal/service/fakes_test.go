package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-sync/internal/config"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util"
)

const testBaseURL = "https://help.example.com"

func testProfile() config.Profile {
	profile, err := config.BuiltinProfile(config.ProfilePrimary)
	if err != nil {
		panic(err)
	}
	return profile
}

type fakeTickets struct {
	pages     map[int][]domain.SourceTicket
	tickets   map[int64]domain.SourceTicket
	listCalls []int
	getCalls  []int64
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{pages: map[int][]domain.SourceTicket{}, tickets: map[int64]domain.SourceTicket{}}
}

func (f *fakeTickets) add(ticket domain.SourceTicket) {
	f.tickets[ticket.ID] = ticket
}

func (f *fakeTickets) ListTickets(_ context.Context, _ int64, page int) ([]domain.SourceTicket, error) {
	f.listCalls = append(f.listCalls, page)
	return f.pages[page], nil
}

func (f *fakeTickets) GetTicket(_ context.Context, id int64) (domain.SourceTicket, error) {
	f.getCalls = append(f.getCalls, id)
	ticket, ok := f.tickets[id]
	if !ok {
		return domain.SourceTicket{ID: id, Status: domain.TicketStatusOpen, RequesterID: 1}, nil
	}
	return ticket, nil
}

type fakeUsers struct {
	users map[int64]domain.SourceUser
	err   error
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (domain.SourceUser, error) {
	if f.err != nil {
		return domain.SourceUser{}, f.err
	}
	user, ok := f.users[id]
	if !ok {
		return domain.SourceUser{}, apperrors.NewNotFound("helpdesk user", nil)
	}
	return user, nil
}

type recordCall struct {
	AppID    int64
	RecordID int64
	Write    domain.RecordWrite
}

type fakeRecords struct {
	byKey   map[string][]domain.DestinationRecord
	creates []recordCall
	updates []recordCall
	nextID  int64
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byKey: map[string][]domain.DestinationRecord{}, nextID: 1000}
}

func recordKey(appID int64, externalID string) string {
	return fmt.Sprintf("%d/%s", appID, externalID)
}

func (f *fakeRecords) put(appID int64, record domain.DestinationRecord) {
	key := recordKey(appID, record.ExternalID)
	f.byKey[key] = append(f.byKey[key], record)
}

func (f *fakeRecords) FindByExternalID(_ context.Context, appID int64, externalID string) ([]domain.DestinationRecord, error) {
	return f.byKey[recordKey(appID, externalID)], nil
}

func (f *fakeRecords) CreateRecord(_ context.Context, appID int64, write domain.RecordWrite) (int64, error) {
	f.nextID++
	f.creates = append(f.creates, recordCall{AppID: appID, RecordID: f.nextID, Write: write})
	f.put(appID, domain.DestinationRecord{
		ID:           f.nextID,
		ExternalID:   write.ExternalID,
		Title:        fmt.Sprintf("record %d", f.nextID),
		Link:         fmt.Sprintf("https://records.example.com/items/%d", f.nextID),
		LastModified: time.Now(),
	})
	return f.nextID, nil
}

func (f *fakeRecords) UpdateRecord(_ context.Context, id int64, write domain.RecordWrite) error {
	f.updates = append(f.updates, recordCall{RecordID: id, Write: write})
	return nil
}

func (f *fakeRecords) createsIn(appID int64) []recordCall {
	var out []recordCall
	for _, call := range f.creates {
		if call.AppID == appID {
			out = append(out, call)
		}
	}
	return out
}

type fakeContacts struct {
	byMail map[string][]domain.DestinationContact
	byName map[string][]domain.DestinationContact
	calls  []string
}

func (f *fakeContacts) SearchContacts(_ context.Context, _ int64, field domain.ContactField, value string) ([]domain.DestinationContact, error) {
	f.calls = append(f.calls, string(field)+"="+value)
	if field == domain.ContactFieldMail {
		return f.byMail[value], nil
	}
	return f.byName[value], nil
}

type postedComment struct {
	Ref     domain.Reference
	Text    string
	FileIDs []int64
	Silent  bool
}

type fakeComments struct {
	existing map[int64][]domain.DestinationComment
	posted   []postedComment
}

func (f *fakeComments) ListComments(_ context.Context, ref domain.Reference) ([]domain.DestinationComment, error) {
	return f.existing[ref.ID], nil
}

func (f *fakeComments) CreateComment(_ context.Context, ref domain.Reference, text string, fileIDs []int64, silent bool) error {
	f.posted = append(f.posted, postedComment{Ref: ref, Text: text, FileIDs: fileIDs, Silent: silent})
	return nil
}

type upload struct {
	URL      string
	Filename string
	Ref      *domain.Reference
}

type fakeFiles struct {
	missing map[string]bool
	uploads []upload
	nextID  int64
}

func (f *fakeFiles) UploadFromURL(_ context.Context, url, filename string, ref *domain.Reference) (int64, error) {
	for token := range f.missing {
		if strings.Contains(url, "/token/"+token+"/") {
			return 0, apperrors.NewNotFound("attachment", nil)
		}
	}
	f.nextID++
	f.uploads = append(f.uploads, upload{URL: url, Filename: filename, Ref: ref})
	return f.nextID, nil
}

type tagCall struct {
	Ref  domain.Reference
	Tags []string
}

type fakeTags struct {
	calls []tagCall
}

func (f *fakeTags) SetTags(_ context.Context, ref domain.Reference, tags []string) error {
	f.calls = append(f.calls, tagCall{Ref: ref, Tags: tags})
	return nil
}

type fakeWorld struct {
	tickets  *fakeTickets
	users    *fakeUsers
	records  *fakeRecords
	contacts *fakeContacts
	comments *fakeComments
	files    *fakeFiles
	tags     *fakeTags
	events   []events.Event
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		tickets:  newFakeTickets(),
		users:    &fakeUsers{users: map[int64]domain.SourceUser{}},
		records:  newFakeRecords(),
		contacts: &fakeContacts{byMail: map[string][]domain.DestinationContact{}, byName: map[string][]domain.DestinationContact{}},
		comments: &fakeComments{existing: map[int64][]domain.DestinationComment{}},
		files:    &fakeFiles{missing: map[string]bool{}},
		tags:     &fakeTags{},
	}
}

func (w *fakeWorld) deps() SyncDependencies {
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, event events.Event) error {
		w.events = append(w.events, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketSkipped,
		events.EventRequesterUpserted, events.EventCommentPosted,
		events.EventAttachmentMigrated, events.EventAttachmentMissing,
	} {
		dispatcher.Subscribe(eventType, record)
	}
	return SyncDependencies{
		Tickets:    w.tickets,
		Users:      w.users,
		Records:    w.records,
		Contacts:   w.contacts,
		Comments:   w.comments,
		Files:      w.files,
		Tags:       w.tags,
		Dispatcher: dispatcher,
	}
}

func (w *fakeWorld) engine() *TicketSync {
	return NewTicketSync(w.deps(), SyncOptions{
		Profile:       testProfile(),
		SourceBaseURL: testBaseURL,
		ContactURL:    "https://records.example.com/contacts/",
	})
}

func (w *fakeWorld) countEvents(eventType events.EventType) int {
	n := 0
	for _, event := range w.events {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func int64Ptr(v int64) *int64 {
	return &v
}
