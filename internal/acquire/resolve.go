// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-trends/pkg/types"
)

// maxSlugLen bounds slug length so paths stay well under filesystem limits.
const maxSlugLen = 120

// slugHashLen is the number of hash bytes appended to lossy slugs.
const slugHashLen = 8

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// ojsGalleyView matches /article/view/{id}/{galley} on OJS sites.
var ojsGalleyView = regexp.MustCompile(`^(.*/article/)view/(\d+/\d+)$`)

// Slug returns a filesystem-safe filename stem for a paper title. Titles
// with the same record identity share a slug. When the mapping drops
// characters or is truncated, a short hash of the identity is appended so
// distinct papers never share a path. Titles with no usable characters
// fall back to the hash alone.
func Slug(title string) string {
	id := types.NormalizeIdentity(title)
	s := strings.Trim(slugUnsafe.ReplaceAllString(id, "_"), "_")
	if s == "" {
		return titleHashSlug(id)
	}
	if s == strings.ReplaceAll(id, " ", "_") && len(s) <= maxSlugLen {
		return s
	}

	suffix := fmt.Sprintf("_%x", identityHash(id))
	if len(s) > maxSlugLen-len(suffix) {
		s = strings.TrimRight(s[:maxSlugLen-len(suffix)], "_")
	}
	return s + suffix
}

func titleHashSlug(id string) string {
	return fmt.Sprintf("paper-%x", identityHash(id))
}

func identityHash(id string) []byte {
	h := sha256.Sum256([]byte(id))
	return h[:slugHashLen]
}

// PDFURL rewrites known landing-page URLs to their direct PDF link. URLs
// that are already PDFs, or that are not recognized, are returned as-is.
func PDFURL(paperURL string) string {
	u, err := url.Parse(strings.TrimSpace(paperURL))
	if err != nil || u.Host == "" {
		return paperURL
	}

	switch {
	case strings.HasSuffix(strings.ToLower(u.Path), ".pdf"):
	case strings.HasSuffix(u.Host, "arxiv.org") && strings.HasPrefix(u.Path, "/abs/"):
		u.Path = "/pdf/" + strings.TrimPrefix(u.Path, "/abs/")
	case strings.Contains(u.Path, "/hash/") && strings.Contains(u.Path, "-Abstract"):
		u.Path = strings.Replace(u.Path, "/hash/", "/file/", 1)
		u.Path = strings.Replace(u.Path, "-Abstract-Conference.html", "-Paper-Conference.pdf", 1)
		u.Path = strings.Replace(u.Path, "-Abstract.html", "-Paper.pdf", 1)
	case ojsGalleyView.MatchString(u.Path):
		// OJS galley pages embed the PDF served from the download route.
		u.Path = ojsGalleyView.ReplaceAllString(u.Path, "${1}download/${2}")
	}
	return u.String()
}

// FindPDFLink scans an HTML landing page for the most likely PDF link and
// resolves it against base. It returns "" when no candidate is found.
func FindPDFLink(body io.Reader, base string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing landing page: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", base, err)
	}

	selectors := []struct {
		sel  string
		attr string
	}{
		{`meta[name="citation_pdf_url"]`, "content"},
		{`a.obj_galley_link.pdf`, "href"},
		{`iframe[src]`, "src"},
		{`a[href$=".pdf"]`, "href"},
	}
	for _, s := range selectors {
		if v, ok := doc.Find(s.sel).First().Attr(s.attr); ok && strings.TrimSpace(v) != "" {
			ref, err := url.Parse(strings.TrimSpace(v))
			if err != nil {
				continue
			}
			return PDFURL(baseURL.ResolveReference(ref).String()), nil
		}
	}
	return "", nil
}
