// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/container"
)

// writeTestPDF builds a minimal PDF with one text line per page and
// returns its path. Object offsets are computed so the xref table is exact.
func writeTestPDF(t *testing.T, pages ...string) string {
	t.Helper()

	var objs []string
	n := len(pages)
	// 1: catalog, 2: pages, 3: font, then page/content pairs.
	kids := make([]string, n)
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPDFTextConvert(t *testing.T) {
	path := writeTestPDF(t, "Introduction body", "More method text", "References", "Smith et al. 2020")

	text, err := (&PDFText{Logger: zerolog.Nop()}).Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(text, "Introduction body") || !strings.Contains(text, "More method text") {
		t.Errorf("missing body text: %q", text)
	}
	if strings.Contains(text, "Smith") || strings.Contains(text, "References") {
		t.Errorf("back matter not trimmed: %q", text)
	}
}

func TestPDFTextConvertErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pdf")
	if err := os.WriteFile(garbage, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &PDFText{Logger: zerolog.Nop()}
	for _, path := range []string{filepath.Join(dir, "missing.pdf"), garbage} {
		if _, err := c.Convert(context.Background(), path); err == nil {
			t.Errorf("Convert(%s): expected error", filepath.Base(path))
		}
	}
}

func TestPDFTextConvertCancelled(t *testing.T) {
	path := writeTestPDF(t, "body")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&PDFText{Logger: zerolog.Nop()}).Convert(ctx, path)
	// Either the parse won the race or cancellation was observed; a
	// cancelled error must wrap context.Canceled.
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want nil or context.Canceled", err)
	}
}

func TestTrimBackMatter(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantCut bool
	}{
		{"references", "Intro\nBody\nReferences\n[1] A", "Intro\nBody", true},
		{"acknowledgement variants", "Body\n  Acknowledgments  \nThanks", "Body", true},
		{"acknowledgement singular", "Body\nAcknowledgement\nThanks", "Body", true},
		{"bibliography", "Body\nBIBLIOGRAPHY\nx", "Body", true},
		{"works cited", "Body\nWorks  Cited\nx", "Body", true},
		{"markdown heading", "# Title\n\ntext\n\n## 7. References\n\n- a", "# Title\n\ntext", true},
		{"numbered heading", "text\n6 Acknowledgements\nfunding", "text", true},
		{"inline mention kept", "We list references in the appendix.\nMore", "We list references in the appendix.\nMore", false},
		{"no heading", "just text", "just text", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cut := TrimBackMatter(tt.in)
			if got != tt.want || cut != tt.wantCut {
				t.Errorf("TrimBackMatter = (%q, %v), want (%q, %v)", got, cut, tt.want, tt.wantCut)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abcdef", 3, "abc"},
		{"abc", 3, "abc"},
		{"abc", 10, "abc"},
		{"abc", 0, "abc"},
		{"摘要内容", 2, "摘要"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

// fakeRuntime implements container.Runtime for markitdown tests.
type fakeRuntime struct {
	imageErr error
	output   string
	runErr   error
	gotSpec  container.RunSpec
}

func (f *fakeRuntime) Name() string                              { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool            { return true }
func (f *fakeRuntime) ImageExists(context.Context, string) error { return f.imageErr }

func (f *fakeRuntime) Run(_ context.Context, spec container.RunSpec, stdin io.Reader, stdout io.Writer) error {
	f.gotSpec = spec
	if f.runErr != nil {
		return f.runErr
	}
	_, _ = io.Copy(io.Discard, stdin)
	_, err := stdout.Write([]byte(f.output))
	return err
}

func TestMarkitdown(t *testing.T) {
	pdfPath := filepath.Join(t.TempDir(), "p.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := NewMarkitdown(ctx, &fakeRuntime{imageErr: errors.New("no image")}, 0); err == nil {
		t.Error("expected error when image is missing")
	}

	rt := &fakeRuntime{output: "# Paper\n\nBody text\n\n## References\n\n1. x"}
	m, err := NewMarkitdown(ctx, rt, time.Minute)
	if err != nil {
		t.Fatalf("NewMarkitdown: %v", err)
	}
	text, err := m.Convert(ctx, pdfPath)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if text != "# Paper\n\nBody text" {
		t.Errorf("text = %q", text)
	}
	if rt.gotSpec.Image != imageMarkitdown || !rt.gotSpec.NoNetwork {
		t.Errorf("spec = %+v", rt.gotSpec)
	}

	empty, _ := NewMarkitdown(ctx, &fakeRuntime{output: "  \n"}, 0)
	if _, err := empty.Convert(ctx, pdfPath); !errors.Is(err, ErrNoText) {
		t.Errorf("empty output error = %v, want ErrNoText", err)
	}

	failing, _ := NewMarkitdown(ctx, &fakeRuntime{runErr: errors.New("exit 1")}, 0)
	if _, err := failing.Convert(ctx, pdfPath); err == nil {
		t.Error("expected run error")
	}
}
