// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// ErrNoText is returned when a PDF yields no extractable text, as with
// scanned documents.
var ErrNoText = errors.New("no extractable text in PDF")

// PDFText extracts plain text page by page and stops at the first page
// containing a back-matter heading.
type PDFText struct {
	// Timeout bounds a single extraction. Zero means no bound beyond ctx.
	Timeout time.Duration
	Logger  zerolog.Logger
}

type extraction struct {
	text string
	err  error
}

// Convert implements Converter. The parser does not observe ctx, so it runs
// in its own goroutine and Convert returns as soon as ctx is done.
func (p *PDFText) Convert(ctx context.Context, pdfPath string) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: fmt.Errorf("parsing %s: malformed PDF: %v", pdfPath, r)}
			}
		}()
		text, err := p.extract(pdfPath)
		done <- extraction{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("parsing %s: %w", pdfPath, ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

func (p *PDFText) extract(pdfPath string) (string, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var sb strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.Logger.Debug().Str("pdf", pdfPath).Int("page", i).Err(err).Msg("skipping unreadable page")
			continue
		}
		if trimmed, cut := TrimBackMatter(text); cut {
			sb.WriteString(trimmed)
			p.Logger.Debug().Str("pdf", pdfPath).Int("page", i).Int("pages", pages).Msg("stopped at back matter")
			break
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("%s: %w", pdfPath, ErrNoText)
	}
	return out, nil
}
