package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stephanyes/estudio-maker-turnos-sub001/internal/domain/pricing"
)

func TestFetcher_FreshContentHashesBody(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("hello"))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "test-agent/1.0", 0)
	fr, err := f.Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if fr.NotModified {
		t.Fatalf("expected fresh content")
	}
	if string(fr.Body) != "hello" {
		t.Fatalf("unexpected body %q", fr.Body)
	}
	if want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"; fr.ContentHash != want {
		t.Fatalf("expected hash %s, got %s", want, fr.ContentHash)
	}
	if fr.ETag != `"v1"` || fr.LastModified == "" {
		t.Fatalf("expected validators to be captured, got etag=%q lastmod=%q", fr.ETag, fr.LastModified)
	}
	if gotUA != "test-agent/1.0" {
		t.Fatalf("expected user agent to be sent, got %q", gotUA)
	}
}

func TestFetcher_NotModifiedCarriesPriorState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` && r.Header.Get("If-Modified-Since") == "Mon, 02 Jan 2006 15:04:05 GMT" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		_, _ = w.Write([]byte("changed"))
	}))
	defer server.Close()

	prior := &pricing.ScrapeMeta{
		URL:          server.URL,
		ETag:         `"v1"`,
		LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
		ContentHash:  "prior-hash",
		ContentType:  "text/html",
	}
	f := NewFetcher(server.Client(), "ua", 0)
	fr, err := f.Fetch(context.Background(), server.URL, prior)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if !fr.NotModified {
		t.Fatalf("expected 304 handling")
	}
	if len(fr.Body) != 0 {
		t.Fatalf("expected no body on 304")
	}
	if fr.ContentHash != "prior-hash" || fr.ETag != `"v1"` || fr.ContentType != "text/html" {
		t.Fatalf("expected prior state carried forward, got %+v", fr)
	}
}

func TestFetcher_IgnoresPriorForOtherURL(t *testing.T) {
	var gotINM string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotINM = r.Header.Get("If-None-Match")
		_, _ = w.Write([]byte("body"))
	}))
	defer server.Close()

	prior := &pricing.ScrapeMeta{URL: "https://elsewhere.example/old.pdf", ETag: `"old"`}
	f := NewFetcher(server.Client(), "ua", 0)
	if _, err := f.Fetch(context.Background(), server.URL, prior); err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if gotINM != "" {
		t.Fatalf("expected no validator for a different url, got %q", gotINM)
	}
}

func TestFetcher_Non2xxIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ua", 0)
	_, err := f.Fetch(context.Background(), server.URL, nil)
	var se *HTTPStatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", se.StatusCode)
	}
}

func TestFetcher_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ua", 5)
	if _, err := f.Fetch(context.Background(), server.URL, nil); err == nil {
		t.Fatalf("expected error for oversized body")
	}
}

func TestFetcher_Head(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/pdf")
	}))
	defer server.Close()

	f := NewFetcher(server.Client(), "ua", 0)
	ct, err := f.Head(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("head error: %v", err)
	}
	if !isPDFContentType(ct) {
		t.Fatalf("expected pdf content type, got %q", ct)
	}
}
