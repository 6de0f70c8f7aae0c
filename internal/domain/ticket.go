package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TicketStatus enumerates helpdesk lifecycle states.
type TicketStatus string

const (
	TicketStatusNew     TicketStatus = "NEW"
	TicketStatusOpen    TicketStatus = "OPEN"
	TicketStatusPending TicketStatus = "PENDING"
	TicketStatusSolved  TicketStatus = "SOLVED"
	TicketStatusClosed  TicketStatus = "CLOSED"
)

// TicketChannel enumerates how a ticket reached the helpdesk.
type TicketChannel string

const (
	TicketChannelWebForm         TicketChannel = "WEB_FORM"
	TicketChannelMail            TicketChannel = "MAIL"
	TicketChannelWebService      TicketChannel = "WEB_SERVICE"
	TicketChannelGetSatisfaction TicketChannel = "GET_SATISFACTION"
	TicketChannelDropbox         TicketChannel = "DROPBOX"
	TicketChannelTicketSharing   TicketChannel = "TICKET_SHARING"
	TicketChannelTwitter         TicketChannel = "TWITTER"
	TicketChannelChat            TicketChannel = "CHAT"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending, TicketStatusSolved, TicketStatusClosed:
		return true
	}
	return false
}

// Valid reports whether c is one of the known channels.
func (c TicketChannel) Valid() bool {
	switch c {
	case TicketChannelWebForm, TicketChannelMail, TicketChannelWebService, TicketChannelGetSatisfaction,
		TicketChannelDropbox, TicketChannelTicketSharing, TicketChannelTwitter, TicketChannelChat:
		return true
	}
	return false
}

// Humanize renders a symbolic enum name for display: "WEB_FORM" becomes "Web form".
func Humanize[T ~string](value T) string {
	name := strings.ReplaceAll(strings.ToLower(string(value)), "_", " ")
	if name == "" {
		return name
	}
	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + name[size:]
}

// FieldEntry is a typed custom field value attached to a source ticket.
type FieldEntry struct {
	FieldID int64
	Value   string
}

// SourceTicket is a helpdesk ticket as read during a run. It is never mutated.
type SourceTicket struct {
	ID          int64
	Description string
	Status      TicketStatus
	Channel     TicketChannel
	AssigneeID  *int64
	RequesterID int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Entries     []FieldEntry
	Tags        []string
	Comments    []SourceComment
}

// SourceComment is one entry in a ticket's thread. The first comment usually
// repeats the ticket description verbatim.
type SourceComment struct {
	ID          int64
	Body        string
	AuthorID    int64
	CreatedAt   time.Time
	Attachments []Attachment
}

// Attachment identifies a downloadable file on the helpdesk.
type Attachment struct {
	Token    string
	Filename string
}
