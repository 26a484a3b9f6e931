// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

type fakeDownloader struct {
	fail  map[string]error
	calls []string
}

func (f *fakeDownloader) Download(_ context.Context, url, dest string) error {
	f.calls = append(f.calls, url)
	if err := f.fail[url]; err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("%PDF-1.4 "+url), 0o644)
}

type fakeConverter struct {
	text string
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, pdfPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := os.Stat(pdfPath); err != nil {
		return "", err
	}
	return f.text, nil
}

type fakeLLM struct {
	prompts []string
	fail    func(prompt string) error
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.fail != nil {
		if err := f.fail(prompt); err != nil {
			return "", err
		}
	}
	return "# Paper Info\n\n## Title\nSummary\n", nil
}

type fixture struct {
	tool      *Tool
	records   store.RecordStore
	artifacts *ArtifactStore
	llm       *fakeLLM
	dl        *fakeDownloader
	pdfRoot   string
	progress  *bytes.Buffer
	key       types.CollectionKey
}

func newFixture(t *testing.T, recs ...types.Record) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		records:   store.NewJSONLStore(filepath.Join(dir, "paper_list"), zerolog.Nop()),
		artifacts: NewArtifactStore(filepath.Join(dir, "paper_summary")),
		llm:       &fakeLLM{},
		dl:        &fakeDownloader{},
		pdfRoot:   filepath.Join(dir, "pdfs"),
		progress:  &bytes.Buffer{},
		key:       types.CollectionKey{Conference: "neurips", Year: 2020, Topic: "privacy"},
	}
	if len(recs) > 0 {
		_, err := f.records.Merge(context.Background(), f.key, recs)
		require.NoError(t, err)
	}
	f.tool = &Tool{
		LLM:          f.llm,
		Records:      f.records,
		Artifacts:    f.artifacts,
		Downloader:   f.dl,
		Converter:    &fakeConverter{text: strings.Repeat("paper body ", 10)},
		PDFRoot:      f.pdfRoot,
		MaxTextChars: 40,
		Logger:       zerolog.Nop(),
		Progress:     f.progress,
	}
	return f
}

func params() Params {
	return Params{Conference: "neurips", Year: 2020, Topic: "privacy", Languages: []string{"EN", "CH"}}
}

func TestExecuteSummarizesAndReuses(t *testing.T) {
	f := newFixture(t,
		types.Record{Title: "Private Learning via X", PaperURL: "https://p/a.pdf"},
		types.Record{Title: "Secure Aggregation", PaperURL: "https://p/b.pdf"},
	)
	ctx := context.Background()

	res := f.tool.Execute(ctx, params())
	require.Equal(t, types.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, 2, res.Data.Considered)
	assert.Equal(t, 2, res.Data.Generated)
	assert.Equal(t, 2, res.Data.Summarized)
	assert.Equal(t, []string{"EN", "CH"}, res.Data.Languages)
	assert.Len(t, f.llm.prompts, 4)

	path := f.artifacts.Path(f.key, "EN", "Private Learning via X")
	assert.Equal(t, filepath.Join(res.Data.SummaryDir, "EN", "private_learning_via_x.md"), path)
	text, err := f.artifacts.Read(f.key, "CH", "Private Learning via X")
	require.NoError(t, err)
	assert.Contains(t, text, "# Paper Info")

	// Prompts carry the truncated text.
	assert.Contains(t, f.llm.prompts[0], "Title: Private Learning via X")
	assert.NotContains(t, f.llm.prompts[0], strings.Repeat("paper body ", 5))

	// PDFs are removed after summarization.
	entries, _ := os.ReadDir(f.pdfRoot)
	assert.Empty(t, entries)

	// A second run reuses every artifact without downloading.
	f.dl.calls = nil
	res = f.tool.Execute(ctx, params())
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Data.Reused)
	assert.Equal(t, 0, res.Data.Generated)
	assert.Equal(t, 2, res.Data.Summarized)
	assert.Empty(t, f.dl.calls)
	assert.Len(t, f.llm.prompts, 4)
}

func TestExecuteOverwrite(t *testing.T) {
	f := newFixture(t, types.Record{Title: "A", PaperURL: "https://p/a.pdf"})
	_, err := f.artifacts.Write(f.key, "EN", "A", "old")
	require.NoError(t, err)

	p := params()
	p.Languages = []string{"EN"}
	res := f.tool.Execute(context.Background(), p)
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Data.Reused)
	assert.Empty(t, f.llm.prompts)

	p.Overwrite = true
	res = f.tool.Execute(context.Background(), p)
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Data.Generated)
	text, err := f.artifacts.Read(f.key, "EN", "A")
	require.NoError(t, err)
	assert.NotEqual(t, "old", text)
}

func TestExecutePartialFailures(t *testing.T) {
	f := newFixture(t,
		types.Record{Title: "Good Paper", PaperURL: "https://p/good.pdf"},
		types.Record{Title: "Broken Download", PaperURL: "https://p/broken.pdf"},
		types.Record{Title: "No URL"},
		types.Record{Title: "Half Done", PaperURL: "https://p/half.pdf"},
	)
	f.dl.fail = map[string]error{"https://p/broken.pdf": errors.New("HTTP 404")}
	f.llm.fail = func(prompt string) error {
		if strings.Contains(prompt, "Title: Half Done") && strings.Contains(prompt, "中文") {
			return errors.New("quota exceeded")
		}
		return nil
	}
	f.tool.KeepPDFs = true

	res := f.tool.Execute(context.Background(), params())
	require.Equal(t, types.StatusWarning, res.Status, res.Message)
	assert.Equal(t, 4, res.Data.Considered)
	assert.Equal(t, 3, res.Data.Failed)
	assert.Equal(t, 1, res.Data.Summarized)
	assert.True(t, f.artifacts.Exists(f.key, "EN", "Half Done"))
	assert.False(t, f.artifacts.Exists(f.key, "CH", "Half Done"))
	assert.Contains(t, f.progress.String(), "failed    Broken Download")

	_, err := os.Stat(filepath.Join(f.pdfRoot, "good_paper.pdf"))
	assert.NoError(t, err, "kept pdf")
}

func TestExecuteConverterFailure(t *testing.T) {
	f := newFixture(t, types.Record{Title: "A", PaperURL: "https://p/a.pdf"})
	f.tool.Converter = &fakeConverter{err: errors.New("no text")}

	res := f.tool.Execute(context.Background(), params())
	assert.Equal(t, types.StatusWarning, res.Status)
	assert.Equal(t, 1, res.Data.Failed)
	assert.Equal(t, 0, res.Data.Summarized)
}

func TestExecuteEmptyCollection(t *testing.T) {
	f := newFixture(t)
	res := f.tool.Execute(context.Background(), params())
	assert.Equal(t, types.StatusWarning, res.Status)
	assert.Contains(t, res.Message, "no papers")
}

func TestExecuteMaxPapers(t *testing.T) {
	f := newFixture(t,
		types.Record{Title: "A", PaperURL: "https://p/a.pdf"},
		types.Record{Title: "B", PaperURL: "https://p/b.pdf"},
	)
	p := params()
	p.MaxPapers = 1
	res := f.tool.Execute(context.Background(), p)
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Data.Considered)
	assert.Equal(t, []string{"https://p/a.pdf"}, f.dl.calls)
}

func TestPrompt(t *testing.T) {
	for _, lang := range []string{"EN", "ch"} {
		p, err := Prompt(lang, "T", "body")
		require.NoError(t, err)
		assert.Contains(t, p, "## 5. Limitations and Future Work")
		assert.Contains(t, p, "body")
	}
	_, err := Prompt("FR", "T", "body")
	assert.Error(t, err)
}

func TestArtifactStoreLayout(t *testing.T) {
	s := NewArtifactStore("/data/summary")
	key := types.CollectionKey{Conference: "NeurIPS", Year: 2020, Topic: "Data Privacy"}
	assert.Equal(t, filepath.FromSlash("/data/summary/neurips_2020/data_privacy"), s.Root(key))
	assert.Equal(t, filepath.FromSlash("/data/summary/neurips_2020/data_privacy/CH/a_b.md"), s.Path(key, "ch", "A B"))
	assert.Equal(t, filepath.FromSlash("/data/summary/neurips_2020/EN"), s.Dir(key.Base(), "EN"))
}
