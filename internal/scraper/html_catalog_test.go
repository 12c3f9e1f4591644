package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

const catalogHTML = `<!doctype html>
<html><head><title>Precios</title>
<script>var promo = "Corte Promo $100";</script>
<style>.precio:after { content: "Tinte $1"; }</style>
</head>
<body>
  <ul>
    <li><span>Corte Caballero $20.000</span></li>
    <li><span>Barba $8500</span></li>
    <li><span>Consultá precios</span></li>
    <li><span>Lavado $0</span></li>
  </ul>
</body></html>`

func TestHTMLCatalogExtractor_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"cat-1"`)
		_, _ = w.Write([]byte(catalogHTML))
	}))
	defer server.Close()

	e := NewHTMLCatalogExtractor(pricing.SourceSiteA, server.URL, "ARS", NewFetcher(server.Client(), "ua", 0), nil)
	res, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(res.Items), res.Items)
	}

	want := []struct {
		name  string
		price float64
	}{
		{"Corte Caballero", 20000},
		{"Barba", 8500},
	}
	for i, w := range want {
		got := res.Items[i]
		if got.ServiceName != w.name || got.Price != w.price {
			t.Fatalf("record %d: expected %s/%v, got %s/%v", i, w.name, w.price, got.ServiceName, got.Price)
		}
		if got.Category != pricing.CategoryHaircut {
			t.Fatalf("record %d: expected haircut, got %s", i, got.Category)
		}
		if got.Source != pricing.SourceSiteA || got.Currency != "ARS" {
			t.Fatalf("record %d: unexpected source/currency %s/%s", i, got.Source, got.Currency)
		}
		if got.ContentHash != res.Meta.ContentHash {
			t.Fatalf("record %d: expected content hash of the document", i)
		}
	}

	if res.Meta.ContentHash != ContentHash([]byte(catalogHTML)) {
		t.Fatalf("unexpected meta hash %s", res.Meta.ContentHash)
	}
	if res.Meta.UsedCache || res.Meta.ItemCount != 2 || res.Meta.ETag != `"cat-1"` {
		t.Fatalf("unexpected meta %+v", res.Meta)
	}
}

func TestPriceFragments_NonBreakingSpaces(t *testing.T) {
	body := `<ul><li>Corte Caballero $&nbsp;20.000</li><li>Barba&nbsp;$8500</li><li>Corte&nbsp;Dama $15.000</li></ul>`

	got, err := priceFragments([]byte(body))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := []priceFragment{
		{name: "Corte Caballero", amount: "20.000"},
		{name: "Barba", amount: "8500"},
		{name: "Corte Dama", amount: "15.000"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d fragments, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("fragment %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestHTMLCatalogExtractor_NoMatchesStillHashes(t *testing.T) {
	body := "<html><body><p>Nuevo sitio en construcción</p></body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	e := NewHTMLCatalogExtractor(pricing.SourceSiteA, server.URL, "ARS", NewFetcher(server.Client(), "ua", 0), nil)
	res, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("expected no records, got %d", len(res.Items))
	}
	if res.Meta.ContentHash != ContentHash([]byte(body)) {
		t.Fatalf("expected content hash even without items")
	}
}

func TestHTMLCatalogExtractor_DumpsMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(catalogHTML))
	}))
	defer server.Close()

	dir := t.TempDir()
	e := NewHTMLCatalogExtractor(pricing.SourceSiteA, server.URL, "ARS", NewFetcher(server.Client(), "ua", 0), nil).
		WithDebugDumper(NewDebugDumper(dir))
	res, err := e.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if filepath.Dir(res.Meta.DebugPath) != dir {
		t.Fatalf("expected dump in %s, got %q", dir, res.Meta.DebugPath)
	}
	b, err := os.ReadFile(res.Meta.DebugPath)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if !strings.Contains(string(b), "Corte Caballero") || strings.Contains(string(b), "<li>") {
		t.Fatalf("expected markdown rendering, got %q", b)
	}
}

func TestHTMLCatalogExtractor_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"cat-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte(catalogHTML))
	}))
	defer server.Close()

	prior := &pricing.ScrapeMeta{URL: server.URL, ETag: `"cat-1"`, ContentHash: "hash-1", ItemCount: 2}
	e := NewHTMLCatalogExtractor(pricing.SourceSiteA, server.URL, "ARS", NewFetcher(server.Client(), "ua", 0), nil)
	res, err := e.Extract(context.Background(), prior)
	if err != nil {
		t.Fatalf("extract error: %v", err)
	}
	if len(res.Items) != 0 {
		t.Fatalf("expected empty items on 304, got %d", len(res.Items))
	}
	if res.Meta.ContentHash != "hash-1" || !res.Meta.UsedCache {
		t.Fatalf("expected prior hash and used cache, got %+v", res.Meta)
	}
	if res.Meta.ItemCount != 2 {
		t.Fatalf("expected prior item count, got %d", res.Meta.ItemCount)
	}
}

func TestHTMLCatalogExtractor_FetchErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := NewHTMLCatalogExtractor(pricing.SourceSiteA, server.URL, "ARS", NewFetcher(server.Client(), "ua", 0), nil)
	if _, err := e.Extract(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegistry(t *testing.T) {
	f := NewFetcher(nil, "ua", 0)
	a := NewHTMLCatalogExtractor("b", "http://x", "ARS", f, nil)
	b := NewHTMLCatalogExtractor("a", "http://y", "ARS", f, nil)

	r, err := NewRegistry(a, b)
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	srcs := r.Sources()
	if len(srcs) != 2 || srcs[0] != "b" || srcs[1] != "a" {
		t.Fatalf("expected registration order, got %v", srcs)
	}
	if _, ok := r.Get("a"); !ok {
		t.Fatalf("expected extractor for a")
	}
	if _, ok := r.Get("c"); ok {
		t.Fatalf("unexpected extractor for c")
	}

	if _, err := NewRegistry(a, a); err == nil {
		t.Fatalf("expected duplicate source error")
	}
}
