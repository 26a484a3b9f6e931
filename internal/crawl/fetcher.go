// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl fetches conference paper listings and merges them into the
// (conference, year) record collection.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-trends/internal/httputil"
)

// ErrUnsupportedConference is returned for a conference with no fetcher.
var ErrUnsupportedConference = errors.New("unsupported conference")

// Fetcher lists the papers a conference published in a year.
type Fetcher interface {
	// Name is the lowercase conference key, e.g. "neurips".
	Name() string
	Fetch(ctx context.Context, year int) ([]Paper, error)
}

// Paper is one listing entry as scraped, before it becomes a record.
type Paper struct {
	Title       string
	Authors     []string
	PaperURL    string
	AbstractURL string
	Abstract    string
}

// Registry maps conference keys to fetchers.
type Registry map[string]Fetcher

// NewRegistry indexes fetchers by name.
func NewRegistry(fetchers ...Fetcher) Registry {
	r := make(Registry, len(fetchers))
	for _, f := range fetchers {
		r[strings.ToLower(f.Name())] = f
	}
	return r
}

// Names returns the supported conference keys in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the fetcher for conference. Unknown names yield an error
// wrapping ErrUnsupportedConference that lists the supported names.
func (r Registry) Lookup(conference string) (Fetcher, error) {
	key := strings.ToLower(strings.TrimSpace(conference))
	if f, ok := r[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w %q: supported conferences are %s",
		ErrUnsupportedConference, conference, strings.Join(r.Names(), ", "))
}

func checkYear(year int) error {
	if year < 1900 || year > 2100 {
		return fmt.Errorf("year %d out of range 1900-2100", year)
	}
	return nil
}

// PageClient fetches and parses HTML pages from conference sites.
type PageClient struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
	Limiter    *httputil.RateLimiter
}

// Get fetches rawURL and parses it as HTML.
func (c *PageClient) Get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "text/html")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
	}
	return doc, nil
}

// GetJSON fetches rawURL and decodes the JSON body into dst.
func (c *PageClient) GetJSON(ctx context.Context, rawURL string, dst any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return nil
}

// splitAuthors splits a comma-separated author line.
func splitAuthors(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.Join(strings.Fields(a), " "); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// cleanText collapses whitespace in scraped text.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
