package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/html"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/lib/logger"
)

var pdfLinkRe = regexp.MustCompile(`(?i)(?:href|src)\s*=\s*["']([^"'\s>]+?\.pdf(?:[?#][^"'\s>]*)?)["']`)

// LinkFinder discovers PDF links on a page that renders them client side.
type LinkFinder interface {
	FindPDFLinks(ctx context.Context, pageURL string) ([]string, error)
}

// PDFResolver finds the current price-list URL. The direct URL is preferred
// when it still serves a PDF; otherwise the public listing page is searched.
type PDFResolver struct {
	fetcher    *Fetcher
	directURL  string
	listingURL string
	userAgent  string
	timeout    time.Duration
	headless   LinkFinder
	logger     *log.Logger
}

type PDFResolverOptions struct {
	DirectURL  string
	ListingURL string
	UserAgent  string
	Timeout    time.Duration
	Headless   LinkFinder
}

func NewPDFResolver(fetcher *Fetcher, opts PDFResolverOptions, l *log.Logger) *PDFResolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &PDFResolver{
		fetcher:    fetcher,
		directURL:  strings.TrimSpace(opts.DirectURL),
		listingURL: strings.TrimSpace(opts.ListingURL),
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		headless:   opts.Headless,
		logger:     logger.OrDefault(l),
	}
}

func (r *PDFResolver) Resolve(ctx context.Context) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil resolver")
	}
	if r.directURL != "" && r.fetcher != nil {
		ct, err := r.fetcher.Head(ctx, r.directURL)
		if err == nil && isPDFContentType(ct) {
			return r.directURL, nil
		}
		r.logger.Debug("direct pdf url rejected", "url", r.directURL, "content_type", ct, "err", err)
	}
	return r.resolveFromListing(ctx)
}

// Reresolve skips the direct-URL probe; it is used after the resolved URL
// served something that was not a PDF.
func (r *PDFResolver) Reresolve(ctx context.Context) (string, error) {
	if r == nil {
		return "", fmt.Errorf("nil resolver")
	}
	return r.resolveFromListing(ctx)
}

func (r *PDFResolver) resolveFromListing(ctx context.Context) (string, error) {
	if r.listingURL != "" {
		link, err := r.scanListingPage(ctx)
		if err != nil {
			r.logger.Warn("listing page scan failed", "url", r.listingURL, "host", hostFromURL(r.listingURL), "err", err)
		} else if link != "" {
			return link, nil
		}

		if r.headless != nil {
			links, err := r.headless.FindPDFLinks(ctx, r.listingURL)
			if err != nil {
				r.logger.Warn("headless pdf lookup failed", "url", r.listingURL, "err", err)
			} else if len(links) > 0 {
				return links[0], nil
			}
		}
	}

	if r.directURL != "" {
		return r.directURL, nil
	}
	return "", ErrNoPDFURL
}

func (r *PDFResolver) scanListingPage(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	c := colly.NewCollector()
	c.SetRequestTimeout(r.timeout)

	var found string
	var reqErr error

	c.OnRequest(func(req *colly.Request) {
		for k, v := range httpHeaders(r.userAgent) {
			req.Headers.Set(k, v)
		}
	})

	c.OnResponse(func(resp *colly.Response) {
		found = FindPDFLink(resp.Body, resp.Request.URL)
	})

	c.OnError(func(_ *colly.Response, err error) {
		reqErr = err
	})

	if err := c.Visit(r.listingURL); err != nil {
		return "", err
	}
	c.Wait()
	if reqErr != nil {
		return "", reqErr
	}
	return found, nil
}

// FindPDFLink returns the first href/src ending in .pdf, resolved against base.
func FindPDFLink(body []byte, base *url.URL) string {
	for _, m := range pdfLinkRe.FindAllSubmatch(body, -1) {
		raw := strings.TrimSpace(html.UnescapeString(string(m[1])))
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if base == nil {
			return ref.String()
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
