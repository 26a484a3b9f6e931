// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/acquire"
)

// aaaiProceedingsURL formats the proceedings page for edition and year.
// Package-level var for test substitution.
var aaaiProceedingsURL = "https://aaai.org/proceeding/aaai-%d-%d/"

// aaaiIssuePath marks links from the proceedings page to OJS issue pages.
const aaaiIssuePath = "/index.php/AAAI/issue/view/"

// aaaiEditionOffset converts a year to the proceedings edition number
// (AAAI-38 is 2024).
const aaaiEditionOffset = 1986

// AAAI scrapes the aaai.org proceedings page and the OJS issue pages it
// links to.
type AAAI struct {
	Pages  *PageClient
	Logger zerolog.Logger
}

// Name implements Fetcher.
func (a *AAAI) Name() string { return "aaai" }

// Fetch implements Fetcher. A proceedings page that links no issue pages
// is parsed as an issue page itself.
func (a *AAAI) Fetch(ctx context.Context, year int) ([]Paper, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	if year <= aaaiEditionOffset {
		return nil, fmt.Errorf("no AAAI proceedings for %d", year)
	}
	proceedings := fmt.Sprintf(aaaiProceedingsURL, year-aaaiEditionOffset, year)
	base, err := url.Parse(proceedings)
	if err != nil {
		return nil, fmt.Errorf("parsing proceedings url: %w", err)
	}

	doc, err := a.Pages.Get(ctx, proceedings)
	if err != nil {
		return nil, err
	}

	var issues []string
	seenIssue := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, aaaiIssuePath) {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seenIssue[abs] {
			seenIssue[abs] = true
			issues = append(issues, abs)
		}
	})

	seen := make(map[string]bool)
	var papers []Paper
	collect := func(page *goquery.Document, pageURL *url.URL) {
		for _, p := range parseOJSIssue(page, pageURL) {
			key := strings.ToLower(p.Title)
			if !seen[key] {
				seen[key] = true
				papers = append(papers, p)
			}
		}
	}

	if len(issues) == 0 {
		collect(doc, base)
		return papers, nil
	}

	for _, issue := range issues {
		issueURL, _ := url.Parse(issue)
		page, err := a.Pages.Get(ctx, issue)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.Logger.Warn().Str("issue", issue).Err(err).Msg("skipping unreachable AAAI issue page")
			continue
		}
		collect(page, issueURL)
	}
	if len(papers) == 0 && len(issues) > 0 {
		return nil, fmt.Errorf("no AAAI papers found across %d issue pages", len(issues))
	}
	return papers, nil
}

func parseOJSIssue(doc *goquery.Document, pageURL *url.URL) []Paper {
	var papers []Paper
	doc.Find(".obj_article_summary").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("h3.title a").First()
		title := cleanText(link.Text())
		if title == "" {
			return
		}
		p := Paper{
			Title:   title,
			Authors: splitAuthors(s.Find("div.authors").First().Text()),
		}
		if href, ok := link.Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				p.AbstractURL = pageURL.ResolveReference(ref).String()
				p.PaperURL = p.AbstractURL
			}
		}
		if href, ok := s.Find("a.obj_galley_link.pdf").First().Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				p.PaperURL = acquire.PDFURL(pageURL.ResolveReference(ref).String())
			}
		}
		papers = append(papers, p)
	})
	return papers
}
