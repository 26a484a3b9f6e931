// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-trends/internal/acquire"
)

// neuripsBaseURL is the proceedings listing root. Package-level var for
// test substitution.
var neuripsBaseURL = "https://papers.nips.cc/paper_files/paper/"

// NeurIPS scrapes the papers.nips.cc listing for one year.
type NeurIPS struct {
	Pages *PageClient
}

// Name implements Fetcher.
func (n *NeurIPS) Name() string { return "neurips" }

// Fetch implements Fetcher. Every list item holding a link and an italic
// author line is a paper; duplicates by title are dropped.
func (n *NeurIPS) Fetch(ctx context.Context, year int) ([]Paper, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	listing := fmt.Sprintf("%s%d", neuripsBaseURL, year)
	base, err := url.Parse(listing)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url: %w", err)
	}

	doc, err := n.Pages.Get(ctx, listing)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var papers []Paper
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a[href]").First()
		authors := li.Find("i").First()
		if a.Length() == 0 || authors.Length() == 0 {
			return
		}
		title := cleanText(a.Text())
		href, _ := a.Attr("href")
		if title == "" || href == "" {
			return
		}
		key := strings.ToLower(title)
		if seen[key] {
			return
		}
		seen[key] = true

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abstract := base.ResolveReference(ref).String()
		papers = append(papers, Paper{
			Title:       title,
			Authors:     splitAuthors(authors.Text()),
			PaperURL:    acquire.PDFURL(abstract),
			AbstractURL: abstract,
		})
	})
	return papers, nil
}
