package scraper

import (
	"context"
	"fmt"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

// Extractor turns one competitor source into price records. prior is the meta
// of the last successful run, or nil to force a full re-extraction.
type Extractor interface {
	Source() pricing.Source
	Extract(ctx context.Context, prior *pricing.ScrapeMeta) (pricing.ScrapeResult, error)
}

// Registry dispatches by source and keeps registration order, which is the
// order sources are refreshed in.
type Registry struct {
	order      []pricing.Source
	extractors map[pricing.Source]Extractor
}

func NewRegistry(extractors ...Extractor) (*Registry, error) {
	r := &Registry{extractors: map[pricing.Source]Extractor{}}
	for _, e := range extractors {
		if e == nil {
			continue
		}
		src := e.Source()
		if _, ok := r.extractors[src]; ok {
			return nil, fmt.Errorf("duplicate extractor for source %s", src)
		}
		r.extractors[src] = e
		r.order = append(r.order, src)
	}
	return r, nil
}

func (r *Registry) Get(src pricing.Source) (Extractor, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.extractors[src]
	return e, ok
}

func (r *Registry) Sources() []pricing.Source {
	if r == nil {
		return nil
	}
	out := make([]pricing.Source, len(r.order))
	copy(out, r.order)
	return out
}
