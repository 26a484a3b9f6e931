// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

// Params selects what to crawl.
type Params struct {
	Conference string
	Year       int

	// MaxPapers caps how many fetched papers are merged. Zero means all.
	MaxPapers int
}

// Output reports the crawl outcome.
type Output struct {
	Collection string `json:"collection" yaml:"collection"`
	Fetched    int    `json:"fetched" yaml:"fetched"`
	Added      int    `json:"added" yaml:"added"`
	Total      int    `json:"total" yaml:"total"`
}

// Tool is the crawl stage.
type Tool struct {
	Fetchers Registry
	Store    store.RecordStore
	Logger   zerolog.Logger
	Metrics  *observability.Metrics

	// Progress receives one human-readable line per crawl. Nil discards.
	Progress io.Writer
}

// Execute fetches the listing and merges it into the (conference, year)
// collection. A single fetch failure fails the stage; an empty listing is
// a warning.
func (t *Tool) Execute(ctx context.Context, p Params) types.Result[Output] {
	return types.Guard(types.StepCrawlPapers, func() types.Result[Output] {
		return t.execute(ctx, p)
	})
}

func (t *Tool) execute(ctx context.Context, p Params) types.Result[Output] {
	conf := strings.ToLower(strings.TrimSpace(p.Conference))
	logger := observability.WithStage(t.Logger, types.StepCrawlPapers).With().
		Str("conference", conf).Int("year", p.Year).Logger()

	fetcher, err := t.Fetchers.Lookup(conf)
	if err != nil {
		logger.Error().Err(err).Msg("crawl rejected")
		return types.Failure[Output]("%v", err)
	}

	key := types.CollectionKey{Conference: conf, Year: p.Year}
	out := Output{Collection: t.Store.Handle(key)}

	logger.Info().Msg("fetching paper listing")
	papers, err := fetcher.Fetch(ctx, p.Year)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		return types.Failure[Output]("fetching %s %d: %v", conf, p.Year, err)
	}
	out.Fetched = len(papers)
	t.Metrics.AddPapers(types.StepCrawlPapers, "fetched", len(papers))

	if p.MaxPapers > 0 && len(papers) > p.MaxPapers {
		logger.Info().Int("fetched", len(papers)).Int("max_papers", p.MaxPapers).Msg("capping crawl")
		papers = papers[:p.MaxPapers]
	}

	records := make([]types.Record, 0, len(papers))
	for _, paper := range papers {
		records = append(records, toRecord(paper, conf, p.Year))
	}

	added, err := t.Store.Merge(ctx, key, records)
	if err != nil {
		return types.Failure[Output]("saving %s: %v", key, err)
	}
	out.Added = added
	t.Metrics.AddPapers(types.StepCrawlPapers, "added", added)

	all, err := t.Store.Load(ctx, key)
	if err != nil {
		return types.Failure[Output]("reloading %s: %v", key, err)
	}
	out.Total = len(all)

	t.progress("crawled: %s (%d fetched, %d new, %d total)\n", key, out.Fetched, out.Added, out.Total)
	logger.Info().Int("fetched", out.Fetched).Int("added", added).Int("total", out.Total).Msg("crawl complete")

	if out.Fetched == 0 {
		return types.Warning(out, "no papers found for %s %d", conf, p.Year)
	}
	return types.Success(out, "crawled %d papers from %s %d (%d new)", out.Fetched, conf, p.Year, added)
}

func (t *Tool) progress(format string, args ...any) {
	if t.Progress != nil {
		fmt.Fprintf(t.Progress, format, args...)
	}
}

func toRecord(p Paper, conf string, year int) types.Record {
	r := types.Record{
		Title:      strings.TrimSpace(p.Title),
		Authors:    p.Authors,
		PaperURL:   strings.TrimSpace(p.PaperURL),
		Abstract:   p.Abstract,
		Conference: conf,
		Year:       year,
	}
	if p.AbstractURL != "" && p.AbstractURL != r.PaperURL {
		r.Meta = map[string]string{"abstract_url": p.AbstractURL}
	}
	return r
}

// DefaultRegistry returns the built-in conference fetchers sharing pages:
// the NeurIPS and AAAI scrapers plus an OpenAlex fetcher per entry of
// OpenAlexVenues.
func DefaultRegistry(pages *PageClient, logger zerolog.Logger) Registry {
	fetchers := []Fetcher{
		&NeurIPS{Pages: pages},
		&AAAI{Pages: pages, Logger: logger},
	}
	for key, venue := range OpenAlexVenues {
		fetchers = append(fetchers, &OpenAlex{Key: key, Venue: venue, Pages: pages, Logger: logger})
	}
	return NewRegistry(fetchers...)
}
