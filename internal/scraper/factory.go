package scraper

import (
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/config"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

// BuildRegistry creates one extractor per configured source. All extractors
// share a single Fetcher, and with it the HTTP client.
func BuildRegistry(sources []config.SourceConfig, sc config.ScraperConfig, client *http.Client, l *log.Logger) (*Registry, error) {
	fetcher := NewFetcher(client, sc.UserAgent, sc.MaxBodyBytes)
	text := NewPDFTextExtractor(sc.PDFToTextBin)
	dumper := NewDebugDumper(sc.DebugDir)

	extractors := make([]Extractor, 0, len(sources))
	for _, s := range sources {
		src := pricing.Source(s.Source)
		sl := l
		if sl != nil {
			sl = sl.With("source", s.Source)
		}

		switch s.Kind {
		case config.SourceKindHTML:
			extractors = append(extractors, NewHTMLCatalogExtractor(src, s.URL, s.Currency, fetcher, sl).WithDebugDumper(dumper))
		case config.SourceKindPDF:
			var headless LinkFinder
			if sc.HeadlessLookup {
				headless = ChromeLinkFinder{UserAgent: sc.UserAgent, Timeout: sc.FetchTimeout}
			}
			resolver := NewPDFResolver(fetcher, PDFResolverOptions{
				DirectURL:  s.URL,
				ListingURL: s.ListingURL,
				UserAgent:  sc.UserAgent,
				Timeout:    sc.FetchTimeout,
				Headless:   headless,
			}, sl)
			extractors = append(extractors, NewPDFPriceListExtractor(PDFPriceListOptions{
				Source:   src,
				Currency: s.Currency,
				Resolver: resolver,
				Fetcher:  fetcher,
				Text:     text,
				Dumper:   dumper,
			}, sl))
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", s.Source, s.Kind)
		}
	}
	return NewRegistry(extractors...)
}
