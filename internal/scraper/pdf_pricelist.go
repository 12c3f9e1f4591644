package scraper

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
)

// URLResolver locates the current document URL of a source.
type URLResolver interface {
	Resolve(ctx context.Context) (string, error)
	Reresolve(ctx context.Context) (string, error)
}

type PDFPriceListExtractor struct {
	source   pricing.Source
	currency string
	resolver URLResolver
	fetcher  *Fetcher
	text     PDFTextExtractor
	dumper   *DebugDumper
	logger   *log.Logger
	now      func() time.Time
}

type PDFPriceListOptions struct {
	Source   pricing.Source
	Currency string
	Resolver URLResolver
	Fetcher  *Fetcher
	Text     PDFTextExtractor
	Dumper   *DebugDumper
}

func NewPDFPriceListExtractor(opts PDFPriceListOptions, l *log.Logger) *PDFPriceListExtractor {
	text := opts.Text
	if text == nil {
		text = PdfcpuTextExtractor{}
	}
	return &PDFPriceListExtractor{
		source:   opts.Source,
		currency: opts.Currency,
		resolver: opts.Resolver,
		fetcher:  opts.Fetcher,
		text:     text,
		dumper:   opts.Dumper,
		logger:   logger.OrDefault(l),
		now:      time.Now,
	}
}

func (e *PDFPriceListExtractor) Source() pricing.Source { return e.source }

func (e *PDFPriceListExtractor) Extract(ctx context.Context, prior *pricing.ScrapeMeta) (pricing.ScrapeResult, error) {
	if e == nil || e.fetcher == nil || e.resolver == nil {
		return pricing.ScrapeResult{}, fmt.Errorf("nil extractor/fetcher/resolver")
	}

	pdfURL, err := e.resolver.Resolve(ctx)
	if err != nil {
		return pricing.ScrapeResult{}, fmt.Errorf("resolve pdf url: %w", err)
	}

	fr, err := e.fetcher.Fetch(ctx, pdfURL, prior)
	if err != nil {
		return pricing.ScrapeResult{}, err
	}
	now := e.now().UTC()
	if fr.NotModified {
		e.logger.Debug("price list not modified", "source", e.source, "url", pdfURL)
		return cachedResult(fr, prior, now), nil
	}

	if !looksLikePDF(fr) {
		e.logger.Warn("resolved url is not a pdf, re-resolving", "source", e.source, "url", pdfURL, "content_type", fr.ContentType)
		pdfURL, err = e.resolver.Reresolve(ctx)
		if err != nil {
			return pricing.ScrapeResult{}, fmt.Errorf("re-resolve pdf url: %w", err)
		}
		fr, err = e.fetcher.Fetch(ctx, pdfURL, prior)
		if err != nil {
			return pricing.ScrapeResult{}, err
		}
		now = e.now().UTC()
		if fr.NotModified {
			return cachedResult(fr, prior, now), nil
		}
		if !looksLikePDF(fr) {
			return pricing.ScrapeResult{}, fmt.Errorf("%w: %s (content-type %q)", ErrNotPDF, pdfURL, fr.ContentType)
		}
	}

	text, err := e.text.ExtractText(ctx, fr.Body)
	if err != nil {
		return pricing.ScrapeResult{}, fmt.Errorf("extract pdf text: %w", err)
	}
	debugPath := e.dumper.Dump(string(e.source), text)

	lines := ParsePriceListLines(strings.Split(text, "\n"))
	items := make([]pricing.CompetitorPriceRecord, 0, len(lines))
	for _, l := range lines {
		rec := pricing.CompetitorPriceRecord{
			Source:      e.source,
			ServiceName: l.Name,
			Category:    l.Category,
			Price:       l.Price,
			Currency:    e.currency,
			CapturedAt:  now,
			ContentHash: fr.ContentHash,
		}
		if !rec.Valid() {
			continue
		}
		items = append(items, rec)
	}

	return pricing.ScrapeResult{
		Items: items,
		Meta: pricing.ScrapeMeta{
			URL:          pdfURL,
			ETag:         fr.ETag,
			LastModified: fr.LastModified,
			ContentHash:  fr.ContentHash,
			ContentType:  fr.ContentType,
			FetchedAt:    now,
			DebugPath:    debugPath,
			ItemCount:    len(items),
		},
	}, nil
}

func looksLikePDF(fr FetchResult) bool {
	return isPDFContentType(fr.ContentType) || bytes.HasPrefix(fr.Body, []byte("%PDF-"))
}

type PriceListLine struct {
	Name     string
	Price    float64
	Category pricing.Category
}

var priceLineRe = regexp.MustCompile(`^\$\s*(\d[\d.,\s]*)$`)

// Section headers of the price list, matched in order against the upper-cased
// header line.
var headerCategories = []struct {
	fragments []string
	category  pricing.Category
}{
	{[]string{"CORTE", "BARB"}, pricing.CategoryHaircut},
	{[]string{"COLOR", "MECHA", "BALAYAGE", "TINTUR"}, pricing.CategoryColor},
	{[]string{"ALISAD", "KERATIN", "QUIMIC", "QUÍMIC", "PERMANENTE", "BOTOX"}, pricing.CategoryChemicalTreatment},
	{[]string{"PEINAD", "BRUSHING", "RECOGID"}, pricing.CategoryStyling},
	{[]string{"TRATAMIENTO", "HIDRATACI", "NUTRICI"}, pricing.CategoryTreatments},
}

func headerCategory(header string) pricing.Category {
	h := strings.ToUpper(header)
	for _, hc := range headerCategories {
		for _, f := range hc.fragments {
			if strings.Contains(h, f) {
				return hc.category
			}
		}
	}
	return pricing.CategoryOther
}

// ParsePriceListLines reads "name" / "$ amount" line pairs. A line ending in
// ':' opens a category section that lasts until the next header. A name line
// never carries the currency marker. Blank lines are ignored; entries with a
// non-positive amount are dropped.
func ParsePriceListLines(raw []string) []PriceListLine {
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = NormalizeServiceName(l)
		if l != "" {
			lines = append(lines, l)
		}
	}

	category := pricing.CategoryOther
	out := make([]PriceListLine, 0)
	for i := 0; i < len(lines); {
		line := lines[i]
		if strings.HasSuffix(line, ":") {
			category = headerCategory(line)
			i++
			continue
		}
		if strings.Contains(line, "$") || i+1 >= len(lines) {
			i++
			continue
		}
		m := priceLineRe.FindStringSubmatch(lines[i+1])
		if m == nil {
			i++
			continue
		}
		if price := ParseAmount(m[1]); price > 0 {
			out = append(out, PriceListLine{Name: line, Price: price, Category: category})
		}
		i += 2
	}
	return out
}
