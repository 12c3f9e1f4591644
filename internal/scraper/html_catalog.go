package scraper

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
)

// A name-like fragment of 3-100 chars immediately followed by "$ amount".
var catalogPriceRe = regexp.MustCompile(`(\p{L}[\p{L}\p{N} +&/:().,'\-]{2,99}?)\s*\$\s*(\d[\d.,]*)`)

type HTMLCatalogExtractor struct {
	source   pricing.Source
	url      string
	currency string
	fetcher  *Fetcher
	logger   *log.Logger
	now      func() time.Time

	dumper *DebugDumper
	md     *converter.Converter
}

func NewHTMLCatalogExtractor(source pricing.Source, url, currency string, fetcher *Fetcher, l *log.Logger) *HTMLCatalogExtractor {
	return &HTMLCatalogExtractor{
		source:   source,
		url:      strings.TrimSpace(url),
		currency: currency,
		fetcher:  fetcher,
		logger:   logger.OrDefault(l),
		now:      time.Now,
	}
}

// WithDebugDumper makes fresh fetches leave a markdown rendering of the page
// behind. A nil or disabled dumper is a no-op.
func (e *HTMLCatalogExtractor) WithDebugDumper(d *DebugDumper) *HTMLCatalogExtractor {
	if d == nil || d.Dir == "" {
		return e
	}
	e.dumper = d
	e.md = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return e
}

func (e *HTMLCatalogExtractor) Source() pricing.Source { return e.source }

func (e *HTMLCatalogExtractor) Extract(ctx context.Context, prior *pricing.ScrapeMeta) (pricing.ScrapeResult, error) {
	if e == nil || e.fetcher == nil {
		return pricing.ScrapeResult{}, fmt.Errorf("nil extractor/fetcher")
	}

	fr, err := e.fetcher.Fetch(ctx, e.url, prior)
	if err != nil {
		return pricing.ScrapeResult{}, err
	}
	now := e.now().UTC()

	if fr.NotModified {
		e.logger.Debug("catalog not modified", "source", e.source, "url", e.url)
		return cachedResult(fr, prior, now), nil
	}

	names, err := priceFragments(fr.Body)
	if err != nil {
		return pricing.ScrapeResult{}, fmt.Errorf("parse catalog %s: %w", e.url, err)
	}

	items := make([]pricing.CompetitorPriceRecord, 0, len(names))
	for _, f := range names {
		rec := pricing.CompetitorPriceRecord{
			Source:      e.source,
			ServiceName: NormalizeServiceName(f.name),
			Price:       ParseAmount(f.amount),
			Currency:    e.currency,
			CapturedAt:  now,
			ContentHash: fr.ContentHash,
		}
		if !rec.Valid() {
			continue
		}
		rec.Category = CategorizeService(rec.ServiceName)
		items = append(items, rec)
	}

	return pricing.ScrapeResult{
		Items: items,
		Meta: pricing.ScrapeMeta{
			URL:          e.url,
			ETag:         fr.ETag,
			LastModified: fr.LastModified,
			ContentHash:  fr.ContentHash,
			ContentType:  fr.ContentType,
			FetchedAt:    now,
			ItemCount:    len(items),
			DebugPath:    e.dumpMarkdown(fr.Body),
		},
	}, nil
}

func (e *HTMLCatalogExtractor) dumpMarkdown(body []byte) string {
	if e.dumper == nil || e.md == nil {
		return ""
	}
	md, err := e.md.ConvertString(string(body), converter.WithDomain(e.url))
	if err != nil {
		e.logger.Debug("markdown conversion failed", "source", e.source, "err", err)
		return ""
	}
	return e.dumper.Dump(string(e.source)+"-catalog", md)
}

type priceFragment struct {
	name   string
	amount string
}

// priceFragments returns, per text node holding a currency marker, the first
// "name $amount" match.
func priceFragments(body []byte) ([]priceFragment, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]priceFragment, 0)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode && strings.Contains(n.Data, "$") {
			// &nbsp; reaches us as U+00A0, which \s does not match.
			text := NormalizeServiceName(n.Data)
			if m := catalogPriceRe.FindStringSubmatch(text); m != nil {
				out = append(out, priceFragment{name: m[1], amount: m[2]})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return out, nil
}

func cachedResult(fr FetchResult, prior *pricing.ScrapeMeta, now time.Time) pricing.ScrapeResult {
	meta := pricing.ScrapeMeta{
		URL:          fr.URL,
		ETag:         fr.ETag,
		LastModified: fr.LastModified,
		ContentHash:  fr.ContentHash,
		ContentType:  fr.ContentType,
		FetchedAt:    now,
		UsedCache:    true,
	}
	if prior != nil {
		meta.ContentHash = pickNonEmpty(meta.ContentHash, prior.ContentHash)
		meta.ItemCount = prior.ItemCount
	}
	return pricing.ScrapeResult{Items: []pricing.CompetitorPriceRecord{}, Meta: meta}
}
