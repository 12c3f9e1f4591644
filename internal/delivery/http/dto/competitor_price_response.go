package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

type ScrapeRunResponse struct {
	ID              uuid.UUID           `json:"id"`
	Source          string              `json:"source"`
	Status          string              `json:"status"`
	StartedAt       string              `json:"started_at"`
	FinishedAt      string              `json:"finished_at,omitempty"`
	LockExpiresAt   string              `json:"lock_expires_at,omitempty"`
	DurationSeconds *float64            `json:"duration_seconds,omitempty"`
	Result          *pricing.ScrapeMeta `json:"result,omitempty"`
	Error           string              `json:"error,omitempty"`
}

func NewScrapeRunResponse(run pricing.ScrapeRun) ScrapeRunResponse {
	out := ScrapeRunResponse{
		ID:        run.ID,
		Source:    string(run.Source),
		Status:    string(run.Status),
		StartedAt: formatTime(&run.StartedAt),
		Result:    run.Result,
		Error:     run.Error,
	}
	out.FinishedAt = formatTime(run.FinishedAt)
	out.LockExpiresAt = formatTime(run.LockExpiresAt)
	if run.FinishedAt != nil {
		d := run.FinishedAt.Sub(run.StartedAt).Seconds()
		out.DurationSeconds = &d
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
