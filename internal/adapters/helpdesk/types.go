package helpdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// timeLayouts are the timestamp renderings the helpdesk has been seen to emit.
var timeLayouts = []string{
	"2006/01/02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
}

// timestamp decodes the helpdesk's date strings.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("helpdesk: unrecognized timestamp %q", raw)
}

type ticketJSON struct {
	NiceID       int64            `json:"nice_id"`
	Description  string           `json:"description"`
	StatusID     int              `json:"status_id"`
	ViaID        int              `json:"via_id"`
	AssigneeID   *int64           `json:"assignee_id"`
	RequesterID  int64            `json:"requester_id"`
	CreatedAt    timestamp        `json:"created_at"`
	UpdatedAt    timestamp        `json:"updated_at"`
	CurrentTags  string           `json:"current_tags"`
	FieldEntries []fieldEntryJSON `json:"ticket_field_entries"`
	Comments     []commentJSON    `json:"comments"`
}

type fieldEntryJSON struct {
	TicketFieldID int64  `json:"ticket_field_id"`
	Value         string `json:"value"`
}

type commentJSON struct {
	ID          int64            `json:"id"`
	Value       string           `json:"value"`
	AuthorID    int64            `json:"author_id"`
	CreatedAt   timestamp        `json:"created_at"`
	Attachments []attachmentJSON `json:"attachments"`
}

type attachmentJSON struct {
	Token    string `json:"token"`
	Filename string `json:"filename"`
}

type userJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	PhotoURL  string    `json:"photo_url"`
	UpdatedAt timestamp `json:"updated_at"`
}

var statusByID = map[int]domain.TicketStatus{
	0: domain.TicketStatusNew,
	1: domain.TicketStatusOpen,
	2: domain.TicketStatusPending,
	3: domain.TicketStatusSolved,
	4: domain.TicketStatusClosed,
}

var channelByID = map[int]domain.TicketChannel{
	0:  domain.TicketChannelWebForm,
	4:  domain.TicketChannelMail,
	5:  domain.TicketChannelWebService,
	16: domain.TicketChannelGetSatisfaction,
	17: domain.TicketChannelDropbox,
	23: domain.TicketChannelTwitter,
	26: domain.TicketChannelTicketSharing,
	29: domain.TicketChannelChat,
}

func (t ticketJSON) toDomain() domain.SourceTicket {
	ticket := domain.SourceTicket{
		ID:          t.NiceID,
		Description: t.Description,
		Status:      statusByID[t.StatusID],
		Channel:     channelByID[t.ViaID],
		AssigneeID:  t.AssigneeID,
		RequesterID: t.RequesterID,
		CreatedAt:   t.CreatedAt.Time,
		UpdatedAt:   t.UpdatedAt.Time,
		Tags:        strings.Fields(t.CurrentTags),
	}
	for _, entry := range t.FieldEntries {
		ticket.Entries = append(ticket.Entries, domain.FieldEntry{FieldID: entry.TicketFieldID, Value: entry.Value})
	}
	for i, c := range t.Comments {
		comment := domain.SourceComment{
			ID:        c.ID,
			Body:      c.Value,
			AuthorID:  c.AuthorID,
			CreatedAt: c.CreatedAt.Time,
		}
		if comment.ID == 0 {
			comment.ID = int64(i + 1)
		}
		for _, a := range c.Attachments {
			comment.Attachments = append(comment.Attachments, domain.Attachment{Token: a.Token, Filename: a.Filename})
		}
		ticket.Comments = append(ticket.Comments, comment)
	}
	return ticket
}

func (u userJSON) toDomain() domain.SourceUser {
	return domain.SourceUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		PhotoURL:  u.PhotoURL,
		UpdatedAt: u.UpdatedAt.Time,
	}
}
