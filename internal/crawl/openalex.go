// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// openAlexBaseURL is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexBaseURL = "https://api.openalex.org"

// openAlexPageSize is the largest page the works endpoint serves.
const openAlexPageSize = 200

// openAlexMaxPages bounds cursor paging for one venue-year.
const openAlexMaxPages = 100

// OpenAlexVenues maps conference keys to the OpenAlex source name searched
// for that venue.
var OpenAlexVenues = map[string]string{
	"icml": "International Conference on Machine Learning",
	"iclr": "International Conference on Learning Representations",
}

// OpenAlex lists a venue's papers for a year from the OpenAlex works API.
// The venue is resolved to an OpenAlex source ID by name on every fetch.
type OpenAlex struct {
	// Key is the conference key reported by Name.
	Key string
	// Venue is the source display name to search for.
	Venue string
	Pages *PageClient
	// Email is sent as the mailto parameter for polite pool access.
	Email  string
	Logger zerolog.Logger
}

// Name implements Fetcher.
func (o *OpenAlex) Name() string { return o.Key }

// Fetch implements Fetcher.
func (o *OpenAlex) Fetch(ctx context.Context, year int) ([]Paper, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	source, err := o.source(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var papers []Paper
	cursor := "*"
	for page := 0; page < openAlexMaxPages && cursor != ""; page++ {
		params := url.Values{
			"filter":   {fmt.Sprintf("primary_location.source.id:%s,publication_year:%d", source, year)},
			"per-page": {fmt.Sprint(openAlexPageSize)},
			"cursor":   {cursor},
		}
		o.polite(params)

		var resp openAlexWorks
		if err := o.Pages.GetJSON(ctx, openAlexBaseURL+"/works?"+params.Encode(), &resp); err != nil {
			return nil, err
		}
		for _, w := range resp.Results {
			p := w.paper()
			key := strings.ToLower(p.Title)
			if p.Title == "" || seen[key] {
				continue
			}
			seen[key] = true
			papers = append(papers, p)
		}
		if len(resp.Results) == 0 {
			break
		}
		cursor = resp.Meta.NextCursor
	}

	o.Logger.Debug().Str("venue", o.Venue).Str("source", source).Int("year", year).
		Int("papers", len(papers)).Msg("openalex listing fetched")
	return papers, nil
}

// source returns the short OpenAlex ID (e.g. "S4306419644") of the best
// match for the venue name.
func (o *OpenAlex) source(ctx context.Context) (string, error) {
	params := url.Values{"search": {o.Venue}, "per-page": {"1"}}
	o.polite(params)

	var resp openAlexSources
	if err := o.Pages.GetJSON(ctx, openAlexBaseURL+"/sources?"+params.Encode(), &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 || resp.Results[0].ID == "" {
		return "", fmt.Errorf("no OpenAlex source matches %q", o.Venue)
	}
	return path.Base(resp.Results[0].ID), nil
}

func (o *OpenAlex) polite(params url.Values) {
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index (word to
// positions) back to plain text.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range index {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos, word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexSources struct {
	Results []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"results"`
}

type openAlexWorks struct {
	Meta struct {
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	DisplayName string `json:"display_name"`
}

type openAlexLocation struct {
	LandingPageURL string `json:"landing_page_url"`
	PDFURL         string `json:"pdf_url"`
}

type openAlexOpenAccess struct {
	OAURL string `json:"oa_url"`
}

// paper converts a work to a listing entry. The PDF link prefers the
// primary location, then the open access copy, then the landing page.
func (w openAlexWork) paper() Paper {
	p := Paper{
		Title:       cleanText(w.Title),
		AbstractURL: w.PrimaryLocation.LandingPageURL,
		Abstract:    reconstructAbstract(w.AbstractInvertedIndex),
	}
	for _, a := range w.Authorships {
		if name := cleanText(a.Author.DisplayName); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, u := range []string{w.PrimaryLocation.PDFURL, w.OpenAccess.OAURL, w.PrimaryLocation.LandingPageURL, w.DOI} {
		if u != "" {
			p.PaperURL = u
			break
		}
	}
	return p
}
