package usecase

import (
	"context"
	"time"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

type PriceCache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func LatestPricesCacheKey(source pricing.Source) string {
	return "competitor-prices:latest:" + string(source)
}
