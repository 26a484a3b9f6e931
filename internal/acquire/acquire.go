// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs for summarization.
//
// Downloads go to a temporary file that is renamed into place only after
// the body passes the PDF magic-number and size checks, so a destination
// path either holds a complete PDF or does not exist.
package acquire

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/httputil"
)

// Download failure kinds.
var (
	ErrNotPDF         = errors.New("response is not a PDF")
	ErrTooLarge       = errors.New("PDF exceeds size limit")
	ErrDownloadFailed = errors.New("download failed")
)

var pdfMagic = []byte("%PDF-")

// Downloader fetches PDFs over HTTP.
type Downloader struct {
	Client     *http.Client
	UserAgent  string
	MaxSize    int64
	MaxRetries int
	Limiter    *httputil.RateLimiter
	Logger     zerolog.Logger
}

// Download fetches rawURL to dest. An existing dest is reused without a
// request. When the URL serves an HTML landing page, the first PDF link on
// that page is followed once.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) error {
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		d.Logger.Debug().Str("path", dest).Msg("pdf already present")
		return nil
	}
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: no paper url", ErrDownloadFailed)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(dest), err)
	}

	target := PDFURL(rawURL)
	err := d.fetch(ctx, target, dest)
	var landing *landingPage
	if errors.As(err, &landing) {
		link, findErr := FindPDFLink(bytes.NewReader(landing.body), target)
		if findErr != nil || link == "" || link == target {
			return fmt.Errorf("%w: %s", ErrNotPDF, target)
		}
		d.Logger.Debug().Str("landing", target).Str("pdf", link).Msg("following pdf link from landing page")
		err = d.fetch(ctx, link, dest)
		if errors.As(err, &landing) {
			return fmt.Errorf("%w: %s", ErrNotPDF, link)
		}
	}
	return err
}

// landingPage carries an HTML body returned where a PDF was expected.
type landingPage struct {
	body []byte
}

func (l *landingPage) Error() string { return "html landing page" }

// maxLandingPage caps how much of an HTML response is kept for link discovery.
const maxLandingPage = 2 << 20

func (d *Downloader) fetch(ctx context.Context, rawURL, dest string) error {
	if err := d.Limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request for %s: %v", ErrDownloadFailed, rawURL, err)
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf,text/html;q=0.5")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, d.MaxRetries)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d from %s", ErrDownloadFailed, resp.StatusCode, rawURL)
	}
	if d.MaxSize > 0 && resp.ContentLength > d.MaxSize {
		return fmt.Errorf("%w: %d bytes from %s", ErrTooLarge, resp.ContentLength, rawURL)
	}

	br := bufio.NewReader(resp.Body)
	head, _ := br.Peek(len(pdfMagic))
	if !bytes.Equal(head, pdfMagic) {
		if strings.Contains(resp.Header.Get("Content-Type"), "html") || looksLikeHTML(head) {
			body, _ := io.ReadAll(io.LimitReader(br, maxLandingPage))
			return &landingPage{body: body}
		}
		return fmt.Errorf("%w: %s", ErrNotPDF, rawURL)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	var src io.Reader = br
	if d.MaxSize > 0 {
		src = io.LimitReader(br, d.MaxSize+1)
	}
	n, copyErr := io.Copy(tmpFile, src)
	closeErr := tmpFile.Close()
	switch {
	case copyErr != nil:
		os.Remove(tmpPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: writing %s: %v", ErrDownloadFailed, rawURL, copyErr)
	case closeErr != nil:
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	case d.MaxSize > 0 && n > d.MaxSize:
		os.Remove(tmpPath)
		return fmt.Errorf("%w: more than %d bytes from %s", ErrTooLarge, d.MaxSize, rawURL)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func looksLikeHTML(head []byte) bool {
	h := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(h, "<")
}
