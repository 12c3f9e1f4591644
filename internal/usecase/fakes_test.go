package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/repository"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakePriceRepo struct {
	mu        sync.Mutex
	rows      []pricing.CompetitorPriceRecord
	insertErr error
	reads     int
}

func (r *fakePriceRepo) InsertPrices(ctx context.Context, records []pricing.CompetitorPriceRecord) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	n := 0
	for _, rec := range repository.DedupRecords(records) {
		dup := false
		for _, row := range r.rows {
			if row.Source == rec.Source && row.ServiceName == rec.ServiceName && row.ContentHash == rec.ContentHash {
				dup = true
				break
			}
		}
		if !dup {
			r.rows = append(r.rows, rec)
			n++
		}
	}
	return n, nil
}

func (r *fakePriceRepo) GetLatestBySource(ctx context.Context, source pricing.Source, limit int) ([]pricing.CompetitorPriceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	out := make([]pricing.CompetitorPriceRecord, 0)
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].Source == source {
			out = append(out, r.rows[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRunRepo struct {
	mu   sync.Mutex
	now  func() time.Time
	runs []*pricing.ScrapeRun

	readErr    error
	acquireErr error
	finishErr  error
	creates    int
	acquires   int
}

func newFakeRunRepo(now func() time.Time) *fakeRunRepo { return &fakeRunRepo{now: now} }

func (r *fakeRunRepo) latest(source pricing.Source, onlySuccess bool) *pricing.ScrapeRun {
	var best *pricing.ScrapeRun
	for _, run := range r.runs {
		if run.Source != source || (onlySuccess && run.Status != pricing.RunStatusSuccess) {
			continue
		}
		if best == nil || !run.StartedAt.Before(best.StartedAt) {
			best = run
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

func (r *fakeRunRepo) GetLastScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.latest(source, false), nil
}

func (r *fakeRunRepo) GetLastSuccessfulScrapeRun(ctx context.Context, source pricing.Source) (*pricing.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	return r.latest(source, true), nil
}

func (r *fakeRunRepo) insert(source pricing.Source, lockMinutes int) *pricing.ScrapeRun {
	now := r.now().UTC()
	exp := now.Add(time.Duration(lockMinutes) * time.Minute)
	run := &pricing.ScrapeRun{ID: uuid.New(), Source: source, Status: pricing.RunStatusRunning, StartedAt: now, LockExpiresAt: &exp}
	r.runs = append(r.runs, run)
	cp := *run
	return &cp
}

func (r *fakeRunRepo) CreateScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	return r.insert(source, lockMinutes), nil
}

func (r *fakeRunRepo) AcquireScrapeRun(ctx context.Context, source pricing.Source, lockMinutes int) (*pricing.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquires++
	if r.acquireErr != nil {
		return nil, r.acquireErr
	}
	now := r.now().UTC()
	for _, run := range r.runs {
		if run.Source == source && run.IsLocked(now) {
			return nil, repository.ErrRunLocked
		}
	}
	for _, run := range r.runs {
		if run.Source == source && run.Status == pricing.RunStatusRunning {
			run.Status = pricing.RunStatusFailed
			run.FinishedAt = &now
			run.Error = "lock expired"
		}
	}
	return r.insert(source, lockMinutes), nil
}

func (r *fakeRunRepo) FinishScrapeRun(ctx context.Context, id uuid.UUID, status pricing.RunStatus, result *pricing.ScrapeMeta, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishErr != nil {
		return r.finishErr
	}
	for _, run := range r.runs {
		if run.ID == id && run.Status == pricing.RunStatusRunning {
			now := r.now().UTC()
			run.Status = status
			run.FinishedAt = &now
			run.Result = result
			run.Error = errMsg
			return nil
		}
	}
	return repository.ErrRunNotFound
}

func (r *fakeRunRepo) ListScrapeRuns(ctx context.Context, source pricing.Source, limit int) ([]pricing.ScrapeRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pricing.ScrapeRun, 0)
	for _, run := range r.runs {
		if source == "" || run.Source == source {
			out = append(out, *run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRunRepo) bySource(source pricing.Source) []pricing.ScrapeRun {
	out, _ := r.ListScrapeRuns(context.Background(), source, 0)
	return out
}

// fakeExtractor returns a fixed document. A 304 is simulated when the prior
// content hash matches the document hash.
type fakeExtractor struct {
	source pricing.Source
	hash   string
	items  []pricing.CompetitorPriceRecord
	err    error

	calls  int
	priors []*pricing.ScrapeMeta
}

func (e *fakeExtractor) Source() pricing.Source { return e.source }

func (e *fakeExtractor) Extract(ctx context.Context, prior *pricing.ScrapeMeta) (pricing.ScrapeResult, error) {
	e.calls++
	e.priors = append(e.priors, prior)
	if e.err != nil {
		return pricing.ScrapeResult{}, e.err
	}
	meta := pricing.ScrapeMeta{URL: "https://" + string(e.source) + ".example", ContentHash: e.hash, ETag: `"` + e.hash + `"`}
	if prior != nil && prior.ContentHash == e.hash {
		meta.UsedCache = true
		meta.ItemCount = prior.ItemCount
		return pricing.ScrapeResult{Items: []pricing.CompetitorPriceRecord{}, Meta: meta}, nil
	}
	items := make([]pricing.CompetitorPriceRecord, len(e.items))
	for i, it := range e.items {
		it.Source = e.source
		it.ContentHash = e.hash
		items[i] = it
	}
	meta.ItemCount = len(items)
	return pricing.ScrapeResult{Items: items, Meta: meta}, nil
}

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes []string
	getErr  error
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
	return nil
}

var errBoom = errors.New("boom")
