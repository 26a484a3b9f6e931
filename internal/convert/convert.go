// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts the body text of a paper PDF for summarization.
//
// Two backends implement Converter: PDFText parses the PDF in-process and
// Markitdown pipes it through the markitdown container image. Both stop at
// the acknowledgements or references heading, since back matter adds
// tokens without adding content to a summary.
package convert

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/container"
	"github.com/pdiddy/research-trends/pkg/types"
)

// Converter extracts text from the PDF at pdfPath.
type Converter interface {
	Convert(ctx context.Context, pdfPath string) (string, error)
}

var (
	ackHeading = regexp.MustCompile(`(?i)^\s*#*\s*(\d+\.?\s*)?acknowledg(e)?ment(s)?\s*$`)
	refHeading = regexp.MustCompile(`(?i)^\s*#*\s*(\d+\.?\s*)?(references?|bibliography|works\s+cited)\s*$`)
)

// IsBackMatterHeading reports whether line starts the acknowledgements or
// references section.
func IsBackMatterHeading(line string) bool {
	return ackHeading.MatchString(line) || refHeading.MatchString(line)
}

// TrimBackMatter cuts text at the first back-matter heading line. The
// second return value reports whether a cut was made.
func TrimBackMatter(text string) (string, bool) {
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if IsBackMatterHeading(strings.TrimRight(line, "\r\n")) {
			return strings.TrimRight(text[:offset], " \t\r\n"), true
		}
		offset += len(line)
	}
	return text, false
}

// Truncate limits text to maxRunes runes without splitting a character.
// A non-positive bound returns text unchanged.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// New returns the converter selected by cfg.Parser. The markitdown backend
// requires a container runtime with the markitdown image present.
func New(ctx context.Context, cfg types.PDFConfig, logger zerolog.Logger) (Converter, error) {
	switch cfg.Parser {
	case types.ParserText, "":
		return &PDFText{Timeout: cfg.ParseTimeout, Logger: logger}, nil
	case types.ParserMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdown(ctx, rt, cfg.ParseTimeout)
	default:
		return nil, fmt.Errorf("unknown pdf parser %q", cfg.Parser)
	}
}
