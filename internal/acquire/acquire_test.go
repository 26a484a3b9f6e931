// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

var fakePDF = []byte("%PDF-1.4\n% fake test content\n%%EOF\n")

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Attention Is All You Need", "attention_is_all_you_need"},
		{"spacing and case", "  attention IS all   you need ", "attention_is_all_you_need"},
		{"punctuation", "  GPT-4: A (Very) Large Model?! ", "gpt_4_a_very_large_model_" + hashHex("gpt-4: a (very) large model?!")},
		{"unicode only", "深度学习", titleHashSlug("深度学习")},
		{"empty", "", titleHashSlug("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.title); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func hashHex(id string) string {
	return fmt.Sprintf("%x", identityHash(id))
}

func TestSlugDistinctIdentities(t *testing.T) {
	prefix := strings.Repeat("word ", 30)
	pairs := [][2]string{
		{"Foo: Bar", "Foo Bar"},
		{"Foo: Bar", "Foo Bar?"},
		{"C++ Tricks", "C Tricks"},
		{prefix + "alpha", prefix + "beta"},
	}
	for _, p := range pairs {
		a, b := Slug(p[0]), Slug(p[1])
		if a == b {
			t.Errorf("Slug(%q) and Slug(%q) both = %q", p[0], p[1], a)
		}
	}

	for _, title := range []string{prefix + "alpha", strings.Repeat("x", 500), strings.Repeat("a-", 200)} {
		s := Slug(title)
		if len(s) > maxSlugLen {
			t.Errorf("Slug length = %d, want <= %d", len(s), maxSlugLen)
		}
		if strings.Contains(s, "__") || strings.HasPrefix(s, "_") {
			t.Errorf("Slug(%.20q...) = %q has stray separators", title, s)
		}
	}
}

func TestPDFURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already pdf", "https://example.com/a/paper.PDF", "https://example.com/a/paper.PDF"},
		{"arxiv abs", "https://arxiv.org/abs/2301.07041", "https://arxiv.org/pdf/2301.07041"},
		{
			"neurips conference",
			"https://papers.nips.cc/paper_files/paper/2023/hash/abc123-Abstract-Conference.html",
			"https://papers.nips.cc/paper_files/paper/2023/file/abc123-Paper-Conference.pdf",
		},
		{
			"neurips legacy",
			"https://papers.nips.cc/paper_files/paper/2019/hash/def456-Abstract.html",
			"https://papers.nips.cc/paper_files/paper/2019/file/def456-Paper.pdf",
		},
		{
			"ojs galley",
			"https://ojs.aaai.org/index.php/AAAI/article/view/25001/24773",
			"https://ojs.aaai.org/index.php/AAAI/article/download/25001/24773",
		},
		{
			"ojs article page untouched",
			"https://ojs.aaai.org/index.php/AAAI/article/view/25001",
			"https://ojs.aaai.org/index.php/AAAI/article/view/25001",
		},
		{"not a url", "not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PDFURL(tt.in); got != tt.want {
				t.Errorf("PDFURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFindPDFLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"citation meta",
			`<html><head><meta name="citation_pdf_url" content="https://x.org/p.pdf"></head></html>`,
			"https://x.org/p.pdf",
		},
		{
			"ojs galley",
			`<a class="obj_galley_link pdf" href="/index.php/AAAI/article/view/1/2">PDF</a>`,
			"https://ojs.example/index.php/AAAI/article/download/1/2",
		},
		{
			"iframe",
			`<iframe src="viewer/file.pdf"></iframe>`,
			"https://ojs.example/index.php/AAAI/article/viewer/file.pdf",
		},
		{"none", `<p>nothing here</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindPDFLink(strings.NewReader(tt.html), "https://ojs.example/index.php/AAAI/article/view/1")
			if err != nil {
				t.Fatalf("FindPDFLink: %v", err)
			}
			if got != tt.want {
				t.Errorf("FindPDFLink = %q, want %q", got, tt.want)
			}
		})
	}
}

func newDownloader(max int64) *Downloader {
	return &Downloader{UserAgent: "research-trends-test", MaxSize: max, MaxRetries: 1, Logger: zerolog.Nop()}
}

func TestDownload(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(fakePDF)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "nested", "paper.pdf")
	if err := newDownloader(0).Download(context.Background(), ts.URL+"/paper.pdf", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}
	if !bytes.Equal(data, fakePDF) {
		t.Errorf("content = %q, want %q", data, fakePDF)
	}
	if gotUA != "research-trends-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("expected only the PDF in dest dir, found %d entries", len(entries))
	}
}

func TestDownloadSkipsExisting(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(fakePDF)
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(dest, []byte("%PDF-existing"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := newDownloader(0).Download(context.Background(), ts.URL, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "%PDF-existing" {
		t.Errorf("existing file was overwritten: %q", data)
	}
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		max     int64
		want    error
	}{
		{
			"http error",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			0, ErrDownloadFailed,
		},
		{
			"not a pdf",
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Write([]byte("plain bytes"))
			},
			0, ErrNotPDF,
		},
		{
			"landing page without link",
			func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html><body>no pdf</body></html>"))
			},
			0, ErrNotPDF,
		},
		{
			"too large by body",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write(append(append([]byte{}, fakePDF...), bytes.Repeat([]byte("x"), 100)...))
			},
			20, ErrTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			dest := filepath.Join(t.TempDir(), "paper.pdf")
			err := newDownloader(tt.max).Download(context.Background(), ts.URL+"/x", dest)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Download error = %v, want %v", err, tt.want)
			}
			if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
				t.Errorf("dest should not exist after failure")
			}
			entries, _ := os.ReadDir(filepath.Dir(dest))
			if len(entries) != 0 {
				t.Errorf("temp files left behind: %d", len(entries))
			}
		})
	}
}

func TestDownloadFollowsLandingPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/article/view/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><a class="obj_galley_link pdf" href="/article/view/7/9">PDF</a></body></html>`))
	})
	mux.HandleFunc("/article/download/7/9", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(fakePDF)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "paper.pdf")
	if err := newDownloader(0).Download(context.Background(), ts.URL+"/article/view/7", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if !bytes.Equal(data, fakePDF) {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadEmptyURL(t *testing.T) {
	err := newDownloader(0).Download(context.Background(), "", filepath.Join(t.TempDir(), "p.pdf"))
	if !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("error = %v, want ErrDownloadFailed", err)
	}
}
