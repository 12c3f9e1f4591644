package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type SourceKind string

const (
	SourceKindHTML SourceKind = "html"
	SourceKindPDF  SourceKind = "pdf"
)

// SourceConfig describes one competitor. ListingURL is only used by pdf
// sources, where the direct URL may move and must be rediscovered.
type SourceConfig struct {
	Source     string     `yaml:"source"`
	Kind       SourceKind `yaml:"kind"`
	URL        string     `yaml:"url"`
	ListingURL string     `yaml:"listing_url"`
	Currency   string     `yaml:"currency"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

var ErrInvalidSources = errors.New("invalid sources config")

func LoadSources(path string) ([]SourceConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(b)
}

func ParseSources(b []byte) ([]SourceConfig, error) {
	var f sourcesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSources, err)
	}

	seen := map[string]struct{}{}
	out := make([]SourceConfig, 0, len(f.Sources))
	for i, s := range f.Sources {
		s.Source = strings.TrimSpace(s.Source)
		s.URL = strings.TrimSpace(s.URL)
		s.ListingURL = strings.TrimSpace(s.ListingURL)
		s.Kind = SourceKind(strings.ToLower(strings.TrimSpace(string(s.Kind))))
		s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
		if s.Currency == "" {
			s.Currency = DefaultCurrency
		}

		if s.Source == "" {
			return nil, fmt.Errorf("%w: entry %d has no source", ErrInvalidSources, i)
		}
		if s.Kind != SourceKindHTML && s.Kind != SourceKindPDF {
			return nil, fmt.Errorf("%w: source %s has unknown kind %q", ErrInvalidSources, s.Source, s.Kind)
		}
		if s.URL == "" {
			return nil, fmt.Errorf("%w: source %s has no url", ErrInvalidSources, s.Source)
		}
		if _, ok := seen[s.Source]; ok {
			return nil, fmt.Errorf("%w: duplicate source %s", ErrInvalidSources, s.Source)
		}
		seen[s.Source] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// DefaultSources builds the two built-in competitors from plain env values.
// A source without a URL is left out.
func DefaultSources(siteACatalogURL, siteBPDFURL, siteBListingURL string) []SourceConfig {
	out := make([]SourceConfig, 0, 2)
	if u := strings.TrimSpace(siteACatalogURL); u != "" {
		out = append(out, SourceConfig{Source: "siteA", Kind: SourceKindHTML, URL: u, Currency: DefaultCurrency})
	}
	if u := strings.TrimSpace(siteBPDFURL); u != "" {
		out = append(out, SourceConfig{
			Source:     "siteB",
			Kind:       SourceKindPDF,
			URL:        u,
			ListingURL: strings.TrimSpace(siteBListingURL),
			Currency:   DefaultCurrency,
		})
	}
	return out
}
