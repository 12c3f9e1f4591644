package repository

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/database"
)

// fakeDB understands exactly the statements issued by this package and keeps
// state in memory. Transactions snapshot state and restore it on rollback.
type fakeDB struct {
	mu sync.Mutex

	prices []priceRow
	runs   []*runRow

	failOnName string
	lastLimit  int

	begins, commits, rollbacks int
	advisoryLocks              int
}

type priceRow struct {
	id                     int
	source, name, category string
	price                  float64
	currency               string
	capturedAt             time.Time
	hash, observations     string
	metadata               []byte
}

type runRow struct {
	id             uuid.UUID
	source, status string
	startedAt      time.Time
	finishedAt     *time.Time
	lockExpiresAt  *time.Time
	result         []byte
	errMsg         string
}

func newFakeDB() *fakeDB { return &fakeDB{} }

func (db *fakeDB) Ping(ctx context.Context) error { return nil }
func (db *fakeDB) Close() error                   { return nil }
func (db *fakeDB) SQLDB() *sql.DB                 { return nil }

func (db *fakeDB) Begin(ctx context.Context) (database.Tx, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.begins++
	snap := fakeSnapshot{prices: append([]priceRow(nil), db.prices...)}
	for _, r := range db.runs {
		cp := *r
		snap.runs = append(snap.runs, &cp)
	}
	return &fakeTx{db: db, snap: snap}, nil
}

type fakeSnapshot struct {
	prices []priceRow
	runs   []*runRow
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch query {
	case insertPriceSQL:
		name := args[1].(string)
		if db.failOnName != "" && name == db.failOnName {
			return 0, fmt.Errorf("simulated failure")
		}
		src, hash := args[0].(string), args[6].(string)
		for _, p := range db.prices {
			if p.source == src && p.name == name && p.hash == hash {
				return 0, nil
			}
		}
		meta, _ := args[8].([]byte)
		db.prices = append(db.prices, priceRow{
			id:           len(db.prices) + 1,
			source:       src,
			name:         name,
			category:     args[2].(string),
			price:        args[3].(float64),
			currency:     args[4].(string),
			capturedAt:   args[5].(time.Time),
			hash:         hash,
			observations: args[7].(string),
			metadata:     meta,
		})
		return 1, nil

	case insertRunSQL:
		expires := args[3].(time.Time)
		db.runs = append(db.runs, &runRow{
			id:            args[0].(uuid.UUID),
			source:        args[1].(string),
			status:        "running",
			startedAt:     args[2].(time.Time),
			lockExpiresAt: &expires,
		})
		return 1, nil

	case lockSourceSQL:
		db.advisoryLocks++
		return 1, nil

	case expireStaleRunsSQL:
		src, now := args[0].(string), args[1].(time.Time)
		var n int64
		for _, r := range db.runs {
			if r.source == src && r.status == "running" && (r.lockExpiresAt == nil || !r.lockExpiresAt.After(now)) {
				r.status = "failed"
				t := now
				r.finishedAt = &t
				r.errMsg = "lock expired"
				n++
			}
		}
		return n, nil

	case finishRunSQL:
		id := args[0].(uuid.UUID)
		for _, r := range db.runs {
			if r.id == id && r.status == "running" {
				r.status = args[1].(string)
				t := args[2].(time.Time)
				r.finishedAt = &t
				r.result, _ = args[3].([]byte)
				r.errMsg = args[4].(string)
				return 1, nil
			}
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected exec: %s", query)
}

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch query {
	case countActiveRunsSQL:
		src, now := args[0].(string), args[1].(time.Time)
		n := 0
		for _, r := range db.runs {
			if r.source == src && r.status == "running" && r.lockExpiresAt != nil && r.lockExpiresAt.After(now) {
				n++
			}
		}
		return fakeRow{vals: []any{n}}

	case selectLastRunSQL, selectLastSuccessfulRunSQL:
		src := args[0].(string)
		cands := make([]*runRow, 0)
		for _, r := range db.runs {
			if r.source != src {
				continue
			}
			if query == selectLastSuccessfulRunSQL && r.status != "success" {
				continue
			}
			cands = append(cands, r)
		}
		if len(cands) == 0 {
			return fakeRow{err: pgx.ErrNoRows}
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].startedAt.After(cands[j].startedAt) })
		return fakeRow{vals: cands[0].values()}
	}
	return fakeRow{err: fmt.Errorf("unexpected query row: %s", query)}
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch query {
	case selectLatestPricesSQL:
		src, limit := args[0].(string), args[1].(int)
		db.lastLimit = limit
		sel := make([]priceRow, 0)
		for _, p := range db.prices {
			if p.source == src {
				sel = append(sel, p)
			}
		}
		sort.SliceStable(sel, func(i, j int) bool {
			if !sel[i].capturedAt.Equal(sel[j].capturedAt) {
				return sel[i].capturedAt.After(sel[j].capturedAt)
			}
			return sel[i].id > sel[j].id
		})
		if len(sel) > limit {
			sel = sel[:limit]
		}
		out := &fakeRows{}
		for _, p := range sel {
			out.rows = append(out.rows, []any{p.source, p.name, p.category, p.price, p.currency, p.capturedAt, p.hash, p.observations, p.metadata})
		}
		return out, nil

	case selectRunsSQL:
		src, limit := args[0].(string), args[1].(int)
		db.lastLimit = limit
		sel := make([]*runRow, 0)
		for _, r := range db.runs {
			if src == "" || r.source == src {
				sel = append(sel, r)
			}
		}
		sort.SliceStable(sel, func(i, j int) bool { return sel[i].startedAt.After(sel[j].startedAt) })
		if len(sel) > limit {
			sel = sel[:limit]
		}
		out := &fakeRows{}
		for _, r := range sel {
			out.rows = append(out.rows, r.values())
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

func (r *runRow) values() []any {
	return []any{r.id, r.source, r.status, r.startedAt, r.finishedAt, r.lockExpiresAt, r.result, r.errMsg}
}

type fakeTx struct {
	db   *fakeDB
	snap fakeSnapshot
	done bool
}

func (tx *fakeTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return tx.db.Exec(ctx, query, args...)
}

func (tx *fakeTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return tx.db.Query(ctx, query, args...)
}

func (tx *fakeTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return tx.db.QueryRow(ctx, query, args...)
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.done = true
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.done {
		return nil
	}
	tx.done = true
	tx.db.rollbacks++
	tx.db.prices = tx.snap.prices
	tx.db.runs = tx.snap.runs
	return nil
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.rows[r.pos-1])
}

func assign(dest, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan dest mismatch: %d != %d", len(dest), len(vals))
	}
	for i := range dest {
		dv := reflect.ValueOf(dest[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan dest %d is not a pointer", i)
		}
		target := dv.Elem()
		if vals[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(vals[i])
		switch {
		case v.Type().AssignableTo(target.Type()):
			target.Set(v)
		case v.Type().ConvertibleTo(target.Type()):
			target.Set(v.Convert(target.Type()))
		default:
			return fmt.Errorf("scan type mismatch at %d: %s into %s", i, v.Type(), target.Type())
		}
	}
	return nil
}
