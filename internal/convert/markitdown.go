// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pdiddy/research-trends/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// Markitdown converts PDFs to Markdown by piping them through the
// markitdown container image, with networking disabled.
type Markitdown struct {
	runtime container.Runtime
	timeout time.Duration
}

// NewMarkitdown verifies that the markitdown image exists in rt.
func NewMarkitdown(ctx context.Context, rt container.Runtime, timeout time.Duration) (*Markitdown, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &Markitdown{runtime: rt, timeout: timeout}, nil
}

// Convert implements Converter.
func (m *Markitdown) Convert(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var out bytes.Buffer
	spec := container.RunSpec{Image: imageMarkitdown, NoNetwork: true}
	if err := m.runtime.Run(ctx, spec, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}

	text, _ := TrimBackMatter(out.String())
	if len(bytes.TrimSpace([]byte(text))) == 0 {
		return "", fmt.Errorf("%s: %w", pdfPath, ErrNoText)
	}
	return text, nil
}
