// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize produces one structured Markdown summary per paper and
// language. Existing summaries are reused unless overwrite is requested.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/acquire"
	"github.com/pdiddy/research-trends/internal/convert"
	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

// DefaultMaxTextChars bounds the paper text sent to the LLM.
const DefaultMaxTextChars = 100000

// Downloader fetches a paper PDF to dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Params selects the collection to summarize.
type Params struct {
	Conference string
	Year       int

	// Topic selects the filtered sub-collection. Empty summarizes the
	// whole (conference, year) collection.
	Topic string

	// Languages to produce. Empty means types.DefaultLanguages.
	Languages []string

	Overwrite bool
	MaxPapers int
}

// Output reports the summarize outcome. Summarized counts papers that have
// an artifact for every language after the run, new or reused.
type Output struct {
	Collection string   `json:"collection" yaml:"collection"`
	SummaryDir string   `json:"summary_dir" yaml:"summary_dir"`
	Languages  []string `json:"languages" yaml:"languages"`
	Considered int      `json:"considered" yaml:"considered"`
	Summarized int      `json:"summarized" yaml:"summarized"`
	Generated  int      `json:"generated" yaml:"generated"`
	Reused     int      `json:"reused" yaml:"reused"`
	Failed     int      `json:"failed" yaml:"failed"`
}

// Tool is the summarize stage.
type Tool struct {
	LLM        llm.Client
	Records    store.RecordStore
	Artifacts  *ArtifactStore
	Downloader Downloader
	Converter  convert.Converter

	// PDFRoot holds downloaded PDFs, named by title slug.
	PDFRoot      string
	MaxTextChars int
	KeepPDFs     bool

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Progress receives one line per paper. Nil discards.
	Progress io.Writer
}

// Execute summarizes every paper in the collection. Per-paper failures are
// counted and turn the result into a warning; only a collection that cannot
// be loaded fails the stage.
func (t *Tool) Execute(ctx context.Context, p Params) types.Result[Output] {
	return types.Guard(types.StepSummarizePapers, func() types.Result[Output] {
		return t.execute(ctx, p)
	})
}

func (t *Tool) execute(ctx context.Context, p Params) types.Result[Output] {
	key := types.CollectionKey{
		Conference: strings.ToLower(strings.TrimSpace(p.Conference)),
		Year:       p.Year,
		Topic:      store.NormalizeKeyword(p.Topic),
	}
	langs := languages(p.Languages)
	logger := observability.WithStage(t.Logger, types.StepSummarizePapers).With().
		Str("collection", key.String()).Strs("languages", langs).Logger()

	out := Output{
		Collection: t.Records.Handle(key),
		SummaryDir: t.Artifacts.Root(key),
		Languages:  langs,
	}

	records, err := t.Records.Load(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("loading collection failed")
		return types.Failure[Output]("loading %s: %v", key, err)
	}
	if len(records) == 0 {
		logger.Warn().Msg("nothing to summarize")
		return types.Warning(out, "no papers in %s to summarize", key)
	}
	if p.MaxPapers > 0 && len(records) > p.MaxPapers {
		records = records[:p.MaxPapers]
	}
	out.Considered = len(records)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			out.Failed += len(records) - i
			logger.Warn().Err(err).Msg("summarization interrupted")
			break
		}
		outcome := t.summarizePaper(ctx, logger, key, langs, rec, p.Overwrite)
		switch {
		case outcome.err != nil:
			out.Failed++
			t.Metrics.AddPapers(types.StepSummarizePapers, "failed", 1)
			t.progress("failed    %s: %v\n", rec.Title, outcome.err)
		case outcome.generated == 0:
			out.Reused++
			t.Metrics.AddPapers(types.StepSummarizePapers, "reused", 1)
			t.progress("reused    %s\n", rec.Title)
		default:
			out.Generated++
			t.Metrics.AddPapers(types.StepSummarizePapers, "summarized", 1)
			t.progress("summarized %s\n", rec.Title)
		}
		if t.complete(key, langs, rec.Title) {
			out.Summarized++
		}
	}

	logger.Info().Int("considered", out.Considered).Int("generated", out.Generated).
		Int("reused", out.Reused).Int("failed", out.Failed).Msg("summarization complete")

	if out.Failed > 0 {
		return types.Warning(out, "summarized %d of %d papers (%d new, %d reused, %d failed)",
			out.Summarized, out.Considered, out.Generated, out.Reused, out.Failed)
	}
	return types.Success(out, "summarized %d papers (%d new, %d reused)", out.Summarized, out.Generated, out.Reused)
}

type paperOutcome struct {
	generated int
	err       error
}

// summarizePaper writes the missing language artifacts of one record. The
// PDF is fetched and parsed at most once, and only when a language is
// missing.
func (t *Tool) summarizePaper(ctx context.Context, logger zerolog.Logger, key types.CollectionKey, langs []string, rec types.Record, overwrite bool) paperOutcome {
	title := strings.TrimSpace(rec.Title)
	plog := logger.With().Str("title", title).Logger()
	if title == "" {
		return paperOutcome{err: errors.New("record has no title")}
	}

	var missing []string
	for _, lang := range langs {
		if overwrite || !t.Artifacts.Exists(key, lang, title) {
			missing = append(missing, lang)
		}
	}
	if len(missing) == 0 {
		plog.Debug().Msg("summaries exist, reusing")
		return paperOutcome{}
	}

	text, err := t.paperText(ctx, rec)
	if err != nil {
		plog.Warn().Err(err).Msg("paper text unavailable")
		return paperOutcome{err: err}
	}

	var res paperOutcome
	var errs []error
	for _, lang := range missing {
		path, err := t.summarizeLanguage(ctx, key, lang, title, text)
		if err != nil {
			plog.Warn().Err(err).Str("language", lang).Msg("summary failed")
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			continue
		}
		res.generated++
		plog.Info().Str("language", lang).Str("path", path).Msg("summary saved")
	}
	res.err = errors.Join(errs...)
	return res
}

func (t *Tool) summarizeLanguage(ctx context.Context, key types.CollectionKey, lang, title, text string) (string, error) {
	prompt, err := Prompt(lang, title, text)
	if err != nil {
		return "", err
	}
	reply, err := t.LLM.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", llm.ErrEmptyResponse
	}
	return t.Artifacts.Write(key, lang, title, reply)
}

// paperText downloads the record's PDF, extracts and truncates its text,
// and removes the PDF unless KeepPDFs is set.
func (t *Tool) paperText(ctx context.Context, rec types.Record) (string, error) {
	if strings.TrimSpace(rec.PaperURL) == "" {
		return "", fmt.Errorf("%w: record has no paper url", acquire.ErrDownloadFailed)
	}
	pdfPath := filepath.Join(t.PDFRoot, acquire.Slug(rec.Title)+".pdf")
	if err := t.Downloader.Download(ctx, rec.PaperURL, pdfPath); err != nil {
		return "", fmt.Errorf("downloading pdf: %w", err)
	}
	if !t.KeepPDFs {
		defer os.Remove(pdfPath)
	}

	text, err := t.Converter.Convert(ctx, pdfPath)
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}
	limit := t.MaxTextChars
	if limit <= 0 {
		limit = DefaultMaxTextChars
	}
	return convert.Truncate(text, limit), nil
}

func (t *Tool) complete(key types.CollectionKey, langs []string, title string) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	for _, lang := range langs {
		if !t.Artifacts.Exists(key, lang, title) {
			return false
		}
	}
	return true
}

func (t *Tool) progress(format string, args ...any) {
	if t.Progress != nil {
		fmt.Fprintf(t.Progress, format, args...)
	}
}

func languages(in []string) []string {
	if len(in) == 0 {
		return append([]string(nil), types.DefaultLanguages...)
	}
	return types.RunConfig{Languages: in}.Normalized().Languages
}
