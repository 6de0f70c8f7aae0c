package domain

import "time"

// SyncMode selects which helpdesk view a run walks.
type SyncMode string

const (
	SyncModeAll    SyncMode = "all"
	SyncModeRecent SyncMode = "recent"
	SyncModeTicket SyncMode = "ticket"
)

// SyncRunStatus enumerates run lifecycle states.
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "RUNNING"
	SyncRunSucceeded SyncRunStatus = "SUCCEEDED"
	SyncRunFailed    SyncRunStatus = "FAILED"
)

// SyncStats counts what a run wrote.
type SyncStats struct {
	Pages              int `json:"pages"`
	TicketsSeen        int `json:"tickets_seen"`
	TicketsCreated     int `json:"tickets_created"`
	TicketsUpdated     int `json:"tickets_updated"`
	TicketsSkipped     int `json:"tickets_skipped"`
	RequestersCreated  int `json:"requesters_created"`
	RequestersUpdated  int `json:"requesters_updated"`
	CommentsPosted     int `json:"comments_posted"`
	AttachmentsMoved   int `json:"attachments_moved"`
	AttachmentsMissing int `json:"attachments_missing"`
}

// SyncRun is the ledger entry for one invocation of the sync engine.
type SyncRun struct {
	ID         string
	Mode       SyncMode
	ViewID     int64
	Status     SyncRunStatus
	Stats      SyncStats
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}
