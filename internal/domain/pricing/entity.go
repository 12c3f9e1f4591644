package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceSiteA Source = "siteA"
	SourceSiteB Source = "siteB"
)

func (s Source) String() string { return string(s) }

type Category string

const (
	CategoryHaircut           Category = "haircut"
	CategoryColor             Category = "color"
	CategoryChemicalTreatment Category = "chemical-treatment"
	CategoryStyling           Category = "styling"
	CategoryTreatments        Category = "treatments"
	CategoryOther             Category = "other"
)

func ParseCategory(s string) Category {
	switch c := Category(strings.TrimSpace(s)); c {
	case CategoryHaircut, CategoryColor, CategoryChemicalTreatment, CategoryStyling, CategoryTreatments:
		return c
	default:
		return CategoryOther
	}
}

type CompetitorPriceRecord struct {
	Source       Source         `json:"source"`
	ServiceName  string         `json:"service_name"`
	Category     Category       `json:"category"`
	Price        float64        `json:"price"`
	Currency     string         `json:"currency"`
	CapturedAt   time.Time      `json:"captured_at"`
	ContentHash  string         `json:"content_hash,omitempty"`
	Observations string         `json:"observations,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Valid reports whether the record may be persisted.
func (r CompetitorPriceRecord) Valid() bool {
	return r.Price > 0 && strings.TrimSpace(r.ServiceName) != ""
}

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusSkipped
}

// ScrapeMeta describes one fetch outcome. The last successful one is the
// prior cache state of the next run.
type ScrapeMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	UsedCache    bool      `json:"used_cache"`
	DebugPath    string    `json:"debug_path,omitempty"`
	ItemCount    int       `json:"item_count"`
}

type ScrapeResult struct {
	Items []CompetitorPriceRecord
	Meta  ScrapeMeta
}

type ScrapeRun struct {
	ID            uuid.UUID   `json:"id"`
	Source        Source      `json:"source"`
	Status        RunStatus   `json:"status"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
	LockExpiresAt *time.Time  `json:"lock_expires_at,omitempty"`
	Result        *ScrapeMeta `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// IsLocked is true only for a running row whose lock has not expired yet.
// A running row past its expiry is stale and may be overridden.
func (r *ScrapeRun) IsLocked(now time.Time) bool {
	if r == nil || r.Status != RunStatusRunning || r.LockExpiresAt == nil {
		return false
	}
	return r.LockExpiresAt.After(now)
}
