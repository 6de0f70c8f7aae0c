package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated      EventType = "ticket_created"
	EventTicketUpdated      EventType = "ticket_updated"
	EventTicketSkipped      EventType = "ticket_skipped"
	EventRequesterUpserted  EventType = "requester_upserted"
	EventCommentPosted      EventType = "comment_posted"
	EventAttachmentMigrated EventType = "attachment_migrated"
	EventAttachmentMissing  EventType = "attachment_missing"
	EventRunFinished        EventType = "run_finished"
)

// Event represents something the sync engine wrote, skipped or gave up on.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	SourceID  int64       `json:"source_id,omitempty"`
	RecordID  int64       `json:"record_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// TicketSkippedPayload payload.
type TicketSkippedPayload struct {
	LastModified    time.Time `json:"last_modified"`
	SourceUpdatedAt time.Time `json:"source_updated_at"`
}

// RequesterUpsertedPayload payload.
type RequesterUpsertedPayload struct {
	Created bool `json:"created"`
	Updated bool `json:"updated"`
}

// CommentPostedPayload payload.
type CommentPostedPayload struct {
	SourceCommentID int64 `json:"source_comment_id"`
	Files           int   `json:"files"`
}

// AttachmentPayload payload.
type AttachmentPayload struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// RunFinishedPayload payload.
type RunFinishedPayload struct {
	Mode   string `json:"mode"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
