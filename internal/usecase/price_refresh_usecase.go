package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/metrics"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/repository"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/scraper"
)

const (
	SkipReasonMinInterval = "min_interval"
	SkipReasonLocked      = "locked"
)

type RefreshOptions struct {
	// Force bypasses the min-interval and lock checks.
	Force bool
	// NoCache drops the prior validators so the source is fully re-extracted.
	NoCache bool
	// Sources limits the refresh; empty means every configured source.
	Sources []pricing.Source
}

// SourceRefreshResult is the outcome of one source. Its JSON form depends on
// the status: skipped carries a reason, success carries inserted and meta,
// failed carries the error message.
type SourceRefreshResult struct {
	Status   pricing.RunStatus
	Reason   string
	Inserted int
	Meta     *pricing.ScrapeMeta
	Error    string
}

func (r SourceRefreshResult) MarshalJSON() ([]byte, error) {
	switch r.Status {
	case pricing.RunStatusSkipped:
		return json.Marshal(struct {
			Status pricing.RunStatus `json:"status"`
			Reason string            `json:"reason"`
		}{r.Status, r.Reason})
	case pricing.RunStatusSuccess:
		return json.Marshal(struct {
			Status   pricing.RunStatus   `json:"status"`
			Inserted int                 `json:"inserted"`
			Meta     *pricing.ScrapeMeta `json:"meta"`
		}{r.Status, r.Inserted, r.Meta})
	default:
		return json.Marshal(struct {
			Status pricing.RunStatus `json:"status"`
			Error  string            `json:"error"`
		}{r.Status, r.Error})
	}
}

func (r *SourceRefreshResult) UnmarshalJSON(b []byte) error {
	var w struct {
		Status   pricing.RunStatus   `json:"status"`
		Reason   string              `json:"reason"`
		Inserted int                 `json:"inserted"`
		Meta     *pricing.ScrapeMeta `json:"meta"`
		Error    string              `json:"error"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = SourceRefreshResult{Status: w.Status, Reason: w.Reason, Inserted: w.Inserted, Meta: w.Meta, Error: w.Error}
	return nil
}

type PriceRefreshUsecase interface {
	Refresh(ctx context.Context, opts RefreshOptions) (map[pricing.Source]SourceRefreshResult, error)
}

type PriceRefreshConfig struct {
	MinInterval   time.Duration
	LockMinutes   int
	MinYieldRatio float64
}

type PriceRefresh struct {
	prices   repository.PriceRepository
	runs     repository.ScrapeRunRepository
	registry *scraper.Registry
	cache    PriceCache
	metrics  *metrics.Registry
	cfg      PriceRefreshConfig
	logger   *log.Logger
	now      func() time.Time
}

func NewPriceRefreshUsecase(
	prices repository.PriceRepository,
	runs repository.ScrapeRunRepository,
	registry *scraper.Registry,
	cache PriceCache,
	m *metrics.Registry,
	cfg PriceRefreshConfig,
	l *log.Logger,
) *PriceRefresh {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 6 * time.Hour
	}
	if cfg.LockMinutes <= 0 {
		cfg.LockMinutes = 10
	}
	if cfg.MinYieldRatio <= 0 {
		cfg.MinYieldRatio = 0.5
	}
	return &PriceRefresh{
		prices:   prices,
		runs:     runs,
		registry: registry,
		cache:    cache,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.OrDefault(l),
		now:      time.Now,
	}
}

// Refresh processes the selected sources one after another. A failing source
// is reported inline and never stops the others; only invalid input or a
// missing wiring yields an error.
func (u *PriceRefresh) Refresh(ctx context.Context, opts RefreshOptions) (map[pricing.Source]SourceRefreshResult, error) {
	if u == nil || u.registry == nil || u.prices == nil || u.runs == nil {
		return nil, ErrNotConfigured
	}

	sources, err := u.selectSources(opts.Sources)
	if err != nil {
		return nil, err
	}

	out := make(map[pricing.Source]SourceRefreshResult, len(sources))
	for _, src := range sources {
		res := u.refreshSource(ctx, src, opts)
		u.metrics.ObserveRun(string(src), string(res.Status), res.Reason)
		out[src] = res
	}
	return out, nil
}

func (u *PriceRefresh) selectSources(requested []pricing.Source) ([]pricing.Source, error) {
	if len(requested) == 0 {
		return u.registry.Sources(), nil
	}
	seen := make(map[pricing.Source]struct{}, len(requested))
	out := make([]pricing.Source, 0, len(requested))
	for _, src := range requested {
		src = pricing.Source(strings.TrimSpace(string(src)))
		if _, ok := u.registry.Get(src); !ok {
			return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, src)
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out, nil
}

func (u *PriceRefresh) refreshSource(ctx context.Context, src pricing.Source, opts RefreshOptions) SourceRefreshResult {
	ext, _ := u.registry.Get(src)
	now := u.now().UTC()

	if !opts.Force {
		last, err := u.runs.GetLastScrapeRun(ctx, src)
		if err != nil {
			return u.failed(src, fmt.Errorf("read last run: %w", err))
		}
		if last != nil && last.FinishedAt != nil && now.Sub(*last.FinishedAt) < u.cfg.MinInterval {
			return u.skipped(src, SkipReasonMinInterval)
		}
		if last.IsLocked(now) {
			return u.skipped(src, SkipReasonLocked)
		}
	}

	// The last successful meta feeds both the conditional fetch and the yield check.
	var previous *pricing.ScrapeMeta
	lastOK, err := u.runs.GetLastSuccessfulScrapeRun(ctx, src)
	if err != nil {
		return u.failed(src, fmt.Errorf("read last successful run: %w", err))
	}
	if lastOK != nil {
		previous = lastOK.Result
	}
	prior := previous
	if opts.NoCache {
		prior = nil
	}

	var run *pricing.ScrapeRun
	if opts.Force {
		run, err = u.runs.CreateScrapeRun(ctx, src, u.cfg.LockMinutes)
	} else {
		run, err = u.runs.AcquireScrapeRun(ctx, src, u.cfg.LockMinutes)
	}
	if errors.Is(err, repository.ErrRunLocked) {
		return u.skipped(src, SkipReasonLocked)
	}
	if err != nil {
		return u.failed(src, err)
	}

	u.logger.Info("refresh source", "source", src, "run_id", run.ID, "force", opts.Force, "nocache", opts.NoCache)
	started := time.Now()

	res, err := ext.Extract(ctx, prior)
	if err != nil {
		u.finish(ctx, src, run.ID, pricing.RunStatusFailed, nil, err.Error())
		return u.failed(src, err)
	}

	inserted, err := u.prices.InsertPrices(ctx, res.Items)
	if err != nil {
		err = fmt.Errorf("insert prices: %w", err)
		u.finish(ctx, src, run.ID, pricing.RunStatusFailed, nil, err.Error())
		return u.failed(src, err)
	}
	u.metrics.ObserveExtraction(string(src), len(res.Items), inserted, time.Since(started).Seconds())
	u.checkYield(src, res, previous)

	meta := res.Meta
	if err := u.finish(ctx, src, run.ID, pricing.RunStatusSuccess, &meta, ""); err != nil {
		return u.failed(src, fmt.Errorf("finish run: %w", err))
	}
	u.metrics.ObserveSuccess(string(src), float64(u.now().Unix()))

	if inserted > 0 && u.cache != nil {
		if err := u.cache.Delete(ctx, LatestPricesCacheKey(src)); err != nil {
			u.logger.Warn("cache invalidation failed", "source", src, "err", err)
		}
	}

	u.logger.Info("refresh done", "source", src, "status", pricing.RunStatusSuccess,
		"items", len(res.Items), "inserted", inserted, "used_cache", meta.UsedCache)
	return SourceRefreshResult{Status: pricing.RunStatusSuccess, Inserted: inserted, Meta: &meta}
}

// finish outlives a cancelled request so the run never stays running until
// its lock expires.
func (u *PriceRefresh) finish(ctx context.Context, src pricing.Source, id uuid.UUID, status pricing.RunStatus, meta *pricing.ScrapeMeta, errMsg string) error {
	err := u.runs.FinishScrapeRun(context.WithoutCancel(ctx), id, status, meta, errMsg)
	if err != nil {
		u.logger.Error("finish run failed", "source", src, "run_id", id, "status", status, "err", err)
	}
	return err
}

// checkYield flags a fresh extraction that returned nothing or far fewer items
// than the last successful one.
func (u *PriceRefresh) checkYield(src pricing.Source, res pricing.ScrapeResult, previous *pricing.ScrapeMeta) bool {
	if res.Meta.UsedCache {
		return false
	}
	n := len(res.Items)
	low := n == 0
	if !low && previous != nil && previous.ItemCount > 0 {
		low = float64(n) < u.cfg.MinYieldRatio*float64(previous.ItemCount)
	}
	if !low {
		return false
	}

	prevCount := 0
	if previous != nil {
		prevCount = previous.ItemCount
	}
	u.logger.Warn("low yield", "source", src, "items", n, "previous", prevCount, "url", res.Meta.URL)
	u.metrics.ObserveLowYield(string(src))
	return true
}

func (u *PriceRefresh) skipped(src pricing.Source, reason string) SourceRefreshResult {
	u.logger.Info("refresh skipped", "source", src, "reason", reason)
	return SourceRefreshResult{Status: pricing.RunStatusSkipped, Reason: reason}
}

func (u *PriceRefresh) failed(src pricing.Source, err error) SourceRefreshResult {
	u.logger.Error("refresh failed", "source", src, "err", err)
	return SourceRefreshResult{Status: pricing.RunStatusFailed, Error: err.Error()}
}

var _ PriceRefreshUsecase = (*PriceRefresh)(nil)
