package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/repository"
)

type PriceQueryUsecase interface {
	LatestPrices(ctx context.Context) (map[pricing.Source][]pricing.CompetitorPriceRecord, error)
	ListRuns(ctx context.Context, source string, limit int) ([]pricing.ScrapeRun, error)
}

type PriceQuery struct {
	prices   repository.PriceRepository
	runs     repository.ScrapeRunRepository
	sources  []pricing.Source
	cache    PriceCache
	cacheTTL time.Duration
	logger   *log.Logger
}

func NewPriceQueryUsecase(
	prices repository.PriceRepository,
	runs repository.ScrapeRunRepository,
	sources []pricing.Source,
	cache PriceCache,
	cacheTTL time.Duration,
	l *log.Logger,
) *PriceQuery {
	return &PriceQuery{
		prices:   prices,
		runs:     runs,
		sources:  append([]pricing.Source(nil), sources...),
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.OrDefault(l),
	}
}

// LatestPrices returns the most recent records of every configured source.
// A source without records maps to an empty slice.
func (u *PriceQuery) LatestPrices(ctx context.Context) (map[pricing.Source][]pricing.CompetitorPriceRecord, error) {
	if u == nil || u.prices == nil {
		return nil, ErrNotConfigured
	}

	out := make(map[pricing.Source][]pricing.CompetitorPriceRecord, len(u.sources))
	for _, src := range u.sources {
		key := LatestPricesCacheKey(src)
		if u.cache != nil {
			var cached []pricing.CompetitorPriceRecord
			hit, err := u.cache.GetJSON(ctx, key, &cached)
			if err == nil && hit {
				u.logger.Debug("cache hit", "key", key)
				out[src] = cached
				continue
			}
		}

		records, err := u.prices.GetLatestBySource(ctx, src, repository.DefaultLatestLimit)
		if err != nil {
			return nil, fmt.Errorf("latest prices for %s: %w", src, err)
		}
		out[src] = records

		if u.cache != nil {
			if err := u.cache.SetJSON(ctx, key, records, u.cacheTTL); err != nil {
				u.logger.Warn("cache set failed", "key", key, "err", err)
			}
		}
	}
	return out, nil
}

func (u *PriceQuery) ListRuns(ctx context.Context, source string, limit int) ([]pricing.ScrapeRun, error) {
	if u == nil || u.runs == nil {
		return nil, ErrNotConfigured
	}
	if limit < 0 || limit > repository.MaxRunListLimit {
		return nil, ErrInvalidInput
	}

	src := pricing.Source(strings.TrimSpace(source))
	if src != "" && !slices.Contains(u.sources, src) {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, src)
	}
	return u.runs.ListScrapeRuns(ctx, src, limit)
}

var _ PriceQueryUsecase = (*PriceQuery)(nil)
