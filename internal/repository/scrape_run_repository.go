package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database/postgres"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

var (
	ErrRunLocked   = errors.New("scrape run locked")
	ErrRunNotFound = errors.New("scrape run not found")
)

const (
	DefaultRunListLimit = 20
	MaxRunListLimit     = 100
)

type ScrapeRunRepository interface {
	GetLastScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error)
	GetLastSuccessfulScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error)
	CreateScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error)
	AcquireScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error)
	FinishScrapeRun(ctx context.Context, id uuid.UUID, status pricing.RunStatus, result *pricing.ScrapeMeta, errMsg string) error
	ListScrapeRuns(ctx context.Context, source pricing.Source, limit int) ([]pricing.ScrapeRun, error)
}

type PostgresScrapeRunRepository struct {
	db  database.DB
	now func() time.Time
}

func NewPostgresScrapeRunRepository(db database.DB) *PostgresScrapeRunRepository {
	return &PostgresScrapeRunRepository{db: db, now: time.Now}
}

const runColumns = `id, source, status, started_at, finished_at, lock_expires_at, result, COALESCE(error, '')`

const (
	selectLastRunSQL = `SELECT ` + runColumns + ` FROM scrape_runs
WHERE source = $1
ORDER BY started_at DESC
LIMIT 1`

	selectLastSuccessfulRunSQL = `SELECT ` + runColumns + ` FROM scrape_runs
WHERE source = $1 AND status = 'success'
ORDER BY finished_at DESC NULLS LAST, started_at DESC
LIMIT 1`

	selectRunsSQL = `SELECT ` + runColumns + ` FROM scrape_runs
WHERE ($1 = '' OR source = $1)
ORDER BY started_at DESC
LIMIT $2`

	insertRunSQL = `INSERT INTO scrape_runs (id, source, status, started_at, lock_expires_at)
VALUES ($1, $2, 'running', $3, $4)`

	lockSourceSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

	countActiveRunsSQL = `SELECT COUNT(*) FROM scrape_runs
WHERE source = $1 AND status = 'running' AND lock_expires_at > $2`

	expireStaleRunsSQL = `UPDATE scrape_runs
SET status = 'failed', finished_at = $2, error = 'lock expired'
WHERE source = $1 AND status = 'running' AND (lock_expires_at IS NULL OR lock_expires_at <= $2)`

	finishRunSQL = `UPDATE scrape_runs
SET status = $2, finished_at = $3, result = $4, error = NULLIF($5, '')
WHERE id = $1 AND status = 'running'`
)

func (r *PostgresScrapeRunRepository) GetLastScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error) {
	return r.getOne(ctx, selectLastRunSQL, source)
}

func (r *PostgresScrapeRunRepository) GetLastSuccessfulScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error) {
	return r.getOne(ctx, selectLastSuccessfulRunSQL, source)
}

func (r *PostgresScrapeRunRepository) getOne(ctx context.Context, query string, source pricing.Source) (*pricing.ScrapeRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, query, string(source)))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

// CreateScrapeRun inserts a running row without looking at other runs.
func (r *PostgresScrapeRunRepository) CreateScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error) {
	run := r.newRun(source, lockMinutes)
	if _, err := r.db.Exec(ctx, insertRunSQL, run.ID, string(run.Source), run.StartedAt, *run.LockExpiresAt); err != nil {
		return nil, fmt.Errorf("create scrape run: %w", err)
	}
	return run, nil
}

// AcquireScrapeRun serializes on a per-source transaction lock, refuses while
// an unexpired running row exists, closes expired ones as failed and then
// inserts the new run.
func (r *PostgresScrapeRunRepository) AcquireScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error) {
	run := r.newRun(source, lockMinutes)
	err := database.WithTx(ctx, r.db, func(tx database.Tx) error {
		if _, err := tx.Exec(ctx, lockSourceSQL, string(source)); err != nil {
			return fmt.Errorf("lock source: %w", err)
		}

		var active int
		if err := tx.QueryRow(ctx, countActiveRunsSQL, string(source), run.StartedAt).Scan(&active); err != nil {
			return fmt.Errorf("count active runs: %w", err)
		}
		if active > 0 {
			return ErrRunLocked
		}

		if _, err := tx.Exec(ctx, expireStaleRunsSQL, string(source), run.StartedAt); err != nil {
			return fmt.Errorf("expire stale runs: %w", err)
		}
		if _, err := tx.Exec(ctx, insertRunSQL, run.ID, string(run.Source), run.StartedAt, *run.LockExpiresAt); err != nil {
			return fmt.Errorf("create scrape run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FinishScrapeRun moves a running row to a terminal status. The meta snapshot
// becomes the prior cache state of the next run.
func (r *PostgresScrapeRunRepository) FinishScrapeRun(ctx context.Context, id uuid.UUID, status pricing.RunStatus, result *pricing.ScrapeMeta, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish scrape run: status %q is not terminal", status)
	}

	var payload []byte
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal run result: %w", err)
		}
		payload = b
	}

	n, err := r.db.Exec(ctx, finishRunSQL, id, string(status), r.now().UTC(), payload, errMsg)
	if err != nil {
		return fmt.Errorf("finish scrape run: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *PostgresScrapeRunRepository) ListScrapeRuns(ctx context.Context, source pricing.Source, limit int) ([]pricing.ScrapeRun, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}
	if limit > MaxRunListLimit {
		limit = MaxRunListLimit
	}

	rows, err := r.db.Query(ctx, selectRunsSQL, string(source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]pricing.ScrapeRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresScrapeRunRepository) newRun(source pricing.Source, lockMinutes int) *pricing.ScrapeRun {
	if lockMinutes <= 0 {
		lockMinutes = 10
	}
	now := r.now().UTC()
	expires := now.Add(time.Duration(lockMinutes) * time.Minute)
	return &pricing.ScrapeRun{
		ID:            uuid.New(),
		Source:        source,
		Status:        pricing.RunStatusRunning,
		StartedAt:     now,
		LockExpiresAt: &expires,
	}
}

func scanRun(row database.Row) (*pricing.ScrapeRun, error) {
	var (
		run         pricing.ScrapeRun
		src, status string
		finished    *time.Time
		expires     *time.Time
		result      []byte
	)
	if err := row.Scan(&run.ID, &src, &status, &run.StartedAt, &finished, &expires, &result, &run.Error); err != nil {
		return nil, err
	}
	run.Source = pricing.Source(src)
	run.Status = pricing.RunStatus(status)
	run.StartedAt = run.StartedAt.UTC()
	if finished != nil {
		t := finished.UTC()
		run.FinishedAt = &t
	}
	if expires != nil {
		t := expires.UTC()
		run.LockExpiresAt = &t
	}
	if len(result) > 0 {
		var meta pricing.ScrapeMeta
		if err := json.Unmarshal(result, &meta); err != nil {
			return nil, fmt.Errorf("decode run result: %w", err)
		}
		run.Result = &meta
	}
	return &run, nil
}
