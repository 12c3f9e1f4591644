package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

const (
	DefaultLatestLimit = 200
	MaxLatestLimit     = 200
)

type PriceRepository interface {
	InsertPrices(ctx context.Context, records []pricing.CompetitorPriceRecord) (int, error)
	GetLatestBySource(ctx context.Context, source pricing.Source, limit int) ([]pricing.CompetitorPriceRecord, error)
}

type PostgresPriceRepository struct {
	db database.DB
}

func NewPostgresPriceRepository(db database.DB) *PostgresPriceRepository {
	return &PostgresPriceRepository{db: db}
}

const insertPriceSQL = `INSERT INTO competitor_prices
	(source, service_name, category, price, currency, captured_at, content_hash, observations, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
ON CONFLICT (source, service_name, content_hash) DO NOTHING`

const selectLatestPricesSQL = `SELECT source, service_name, category, price::float8, currency, captured_at,
	content_hash, COALESCE(observations, ''), metadata
FROM competitor_prices
WHERE source = $1
ORDER BY captured_at DESC, id DESC
LIMIT $2`

// InsertPrices writes one batch in a single transaction and returns the
// number of rows actually inserted. Rows already stored for the same
// (source, service name, content hash) are left untouched.
func (r *PostgresPriceRepository) InsertPrices(ctx context.Context, records []pricing.CompetitorPriceRecord) (int, error) {
	batch := DedupRecords(records)
	if len(batch) == 0 {
		return 0, nil
	}

	inserted := 0
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		for _, rec := range batch {
			var meta []byte
			if len(rec.Metadata) > 0 {
				b, err := json.Marshal(rec.Metadata)
				if err != nil {
					return fmt.Errorf("marshal metadata for %s: %w", rec.ServiceName, err)
				}
				meta = b
			}

			n, err := tx.Exec(ctx, insertPriceSQL,
				string(rec.Source),
				rec.ServiceName,
				string(rec.Category),
				rec.Price,
				rec.Currency,
				rec.CapturedAt.UTC(),
				rec.ContentHash,
				rec.Observations,
				meta,
			)
			if err != nil {
				return fmt.Errorf("insert price %s/%s: %w", rec.Source, rec.ServiceName, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PostgresPriceRepository) GetLatestBySource(ctx context.Context, source pricing.Source, limit int) ([]pricing.CompetitorPriceRecord, error) {
	if limit <= 0 {
		limit = DefaultLatestLimit
	}
	if limit > MaxLatestLimit {
		limit = MaxLatestLimit
	}

	rows, err := r.db.Query(ctx, selectLatestPricesSQL, string(source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pricing.CompetitorPriceRecord, 0)
	for rows.Next() {
		var (
			rec      pricing.CompetitorPriceRecord
			src, cat string
			meta     []byte
		)
		if err := rows.Scan(&src, &rec.ServiceName, &cat, &rec.Price, &rec.Currency, &rec.CapturedAt,
			&rec.ContentHash, &rec.Observations, &meta); err != nil {
			return nil, err
		}
		rec.Source = pricing.Source(src)
		rec.Category = pricing.ParseCategory(cat)
		rec.CapturedAt = rec.CapturedAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DedupRecords keeps the first record per (source, service name, price).
func DedupRecords(records []pricing.CompetitorPriceRecord) []pricing.CompetitorPriceRecord {
	type key struct {
		source pricing.Source
		name   string
		price  float64
	}
	seen := make(map[key]struct{}, len(records))
	out := make([]pricing.CompetitorPriceRecord, 0, len(records))
	for _, rec := range records {
		k := key{source: rec.Source, name: rec.ServiceName, price: rec.Price}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rec)
	}
	return out
}
