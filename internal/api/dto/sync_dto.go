package dto

import (
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// RunRequest payload for starting a view sync.
type RunRequest struct {
	Mode string `json:"mode"`
}

// RunResponse describes one sync run.
type RunResponse struct {
	ID         string           `json:"id"`
	Mode       string           `json:"mode"`
	ViewID     int64            `json:"view_id,omitempty"`
	Status     string           `json:"status"`
	Stats      domain.SyncStats `json:"stats"`
	Error      *string          `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// NewRunResponse maps a domain run to its response payload.
func NewRunResponse(run *domain.SyncRun) RunResponse {
	return RunResponse{
		ID:         run.ID,
		Mode:       string(run.Mode),
		ViewID:     run.ViewID,
		Status:     string(run.Status),
		Stats:      run.Stats,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// NewRunResponses maps a page of runs.
func NewRunResponses(runs []domain.SyncRun) []RunResponse {
	out := make([]RunResponse, 0, len(runs))
	for i := range runs {
		out = append(out, NewRunResponse(&runs[i]))
	}
	return out
}
