package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

const defaultMaxBodyBytes = 20 << 20

type FetchResult struct {
	URL          string
	StatusCode   int
	Body         []byte
	ETag         string
	LastModified string
	ContentHash  string
	ContentType  string
	NotModified  bool
}

// Fetcher performs conditional GETs. It never retries; callers own the
// success/failure accounting.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

func NewFetcher(client *http.Client, userAgent string, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	return &Fetcher{client: client, userAgent: strings.TrimSpace(userAgent), maxBytes: maxBytes}
}

// Fetch sends If-None-Match/If-Modified-Since from prior when prior describes
// the same URL. On 304 the body is omitted and the prior validators and hash
// are carried forward. Otherwise the SHA-256 of the raw body is computed
// regardless of what the server reports.
func (f *Fetcher) Fetch(ctx context.Context, url string, prior *pricing.ScrapeMeta) (FetchResult, error) {
	if f == nil || f.client == nil {
		return FetchResult{}, fmt.Errorf("nil fetcher")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("new request: %w", err)
	}
	for k, v := range httpHeaders(f.userAgent) {
		req.Header.Set(k, v)
	}

	usePrior := prior != nil && (prior.URL == "" || prior.URL == url)
	if usePrior {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		out := FetchResult{
			URL:          url,
			StatusCode:   resp.StatusCode,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			ContentType:  resp.Header.Get("Content-Type"),
			NotModified:  true,
		}
		if usePrior {
			out.ETag = pickNonEmpty(out.ETag, prior.ETag)
			out.LastModified = pickNonEmpty(out.LastModified, prior.LastModified)
			out.ContentHash = prior.ContentHash
			out.ContentType = pickNonEmpty(out.ContentType, prior.ContentType)
		}
		return out, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FetchResult{URL: url, StatusCode: resp.StatusCode}, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := readAllLimit(resp.Body, f.maxBytes)
	if err != nil {
		return FetchResult{}, fmt.Errorf("read %s: %w", url, err)
	}

	return FetchResult{
		URL:          url,
		StatusCode:   resp.StatusCode,
		Body:         body,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		ContentHash:  ContentHash(body),
		ContentType:  resp.Header.Get("Content-Type"),
	}, nil
}

// Head returns the Content-Type reported for url.
func (f *Fetcher) Head(ctx context.Context, url string) (string, error) {
	if f == nil || f.client == nil {
		return "", fmt.Errorf("nil fetcher")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	for k, v := range httpHeaders(f.userAgent) {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("head %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Header.Get("Content-Type"), nil
}

func ContentHash(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
