// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate turns per-paper summary artifacts into one report per
// language and picks the preferred language's report.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/internal/summarize"
	"github.com/pdiddy/research-trends/pkg/types"
)

// ErrMissingSummary is returned when a paper in scope has no artifact.
var ErrMissingSummary = errors.New("missing summary")

// reportBase is the file name, without extension, of every report.
const reportBase = "summary"

// Params selects the collection and languages to aggregate.
type Params struct {
	Conference string
	Year       int
	Topic      string

	// Languages in preference order. Empty means types.DefaultLanguages.
	Languages []string

	// MaxPapers limits the report to the first MaxPapers records, the same
	// prefix the summarize stage covers. Zero means all.
	MaxPapers int
}

// Tool is the aggregate stage. Writers default to Excel plus Markdown.
type Tool struct {
	Records    store.RecordStore
	Artifacts  *summarize.ArtifactStore
	ReportRoot string
	Writers    []Writer
	Logger     zerolog.Logger
	Metrics    *observability.Metrics

	// Progress receives one line per language. Nil discards.
	Progress io.Writer
}

// Execute aggregates every language independently. It fails when no
// language succeeds and warns when only some do.
func (t *Tool) Execute(ctx context.Context, p Params) types.Result[types.AggregatedSummary] {
	return types.Guard(types.StepAggregateSummary, func() types.Result[types.AggregatedSummary] {
		return t.execute(ctx, p)
	})
}

func (t *Tool) execute(ctx context.Context, p Params) types.Result[types.AggregatedSummary] {
	key := types.CollectionKey{
		Conference: strings.ToLower(strings.TrimSpace(p.Conference)),
		Year:       p.Year,
		Topic:      store.NormalizeKeyword(p.Topic),
	}
	langs := p.Languages
	if len(langs) == 0 {
		langs = types.DefaultLanguages
	}
	langs = types.RunConfig{Languages: langs}.Normalized().Languages
	logger := observability.WithStage(t.Logger, types.StepAggregateSummary).With().
		Str("collection", key.String()).Logger()

	records, err := t.Records.Load(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg("loading collection failed")
		return types.Failure[types.AggregatedSummary]("loading %s: %v", key, err)
	}
	if p.MaxPapers > 0 && len(records) > p.MaxPapers {
		records = records[:p.MaxPapers]
	}

	var out types.AggregatedSummary
	var failures []string
	for _, lang := range langs {
		report := t.aggregateLanguage(key, lang, records)
		out.Languages = append(out.Languages, report)

		llog := logger.With().Str("language", lang).Logger()
		if report.Status == types.StatusSuccess {
			llog.Info().Int("rows", report.Rows).Str("path", report.ExcelPath).Msg("report written")
			t.progress("report %s: %s (%d rows)\n", lang, report.ExcelPath, report.Rows)
			t.Metrics.AddPapers(types.StepAggregateSummary, "aggregated", report.Rows)
		} else {
			llog.Error().Str("error", report.Message).Msg("aggregation failed")
			t.progress("report %s failed: %s\n", lang, report.Message)
			failures = append(failures, fmt.Sprintf("%s: %s", lang, report.Message))
		}
	}

	if pref, ok := SelectPreferred(out.Languages, langs); ok {
		out.Preferred = pref.Language
		out.ReportPath = pref.ExcelPath
	}

	switch {
	case out.Preferred == "":
		res := types.Failure[types.AggregatedSummary]("aggregating %s: %s", key, strings.Join(failures, "; "))
		res.Data = out
		return res
	case len(failures) > 0:
		return types.Warning(out, "aggregated %s in %s; %s", key, out.Preferred, strings.Join(failures, "; "))
	}
	return types.Success(out, "aggregated %d papers for %s (preferred %s)", len(records), key, out.Preferred)
}

// aggregateLanguage builds and writes the report for one language. Every
// record must have a parsable artifact; the first one that does not fails
// the language.
func (t *Tool) aggregateLanguage(key types.CollectionKey, lang string, records []types.Record) types.LanguageReport {
	report := types.LanguageReport{Language: lang}
	fail := func(err error) types.LanguageReport {
		report.Status = types.StatusError
		report.Message = err.Error()
		return report
	}

	if len(records) == 0 {
		return fail(fmt.Errorf("no papers in %s", key))
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row, err := t.buildRow(key, lang, rec)
		if err != nil {
			return fail(err)
		}
		rows = append(rows, row)
	}

	dir := t.reportDir(key, lang)
	for _, w := range t.writers() {
		path := filepath.Join(dir, reportBase+w.Ext())
		if err := w.Write(path, rows); err != nil {
			return fail(err)
		}
		switch w.(type) {
		case ExcelWriter, *ExcelWriter:
			report.ExcelPath = path
		case MarkdownWriter, *MarkdownWriter:
			report.MarkdownPath = path
		}
	}
	report.Status = types.StatusSuccess
	report.Rows = len(rows)
	return report
}

func (t *Tool) buildRow(key types.CollectionKey, lang string, rec types.Record) (Row, error) {
	title := strings.TrimSpace(rec.Title)
	text, err := t.Artifacts.Read(key, lang, title)
	if err != nil {
		if os.IsNotExist(err) {
			return Row{}, fmt.Errorf("%w for %q (%s)", ErrMissingSummary, title, t.Artifacts.Path(key, lang, title))
		}
		return Row{}, fmt.Errorf("reading summary for %q: %w", title, err)
	}
	sum, err := ParseSummary(text)
	if err != nil {
		return Row{}, fmt.Errorf("summary for %q: %w", title, err)
	}

	authors := listText(sum[FieldAuthors])
	if authors == "" {
		authors = strings.Join(rec.Authors, ", ")
	}
	return Row{
		Title:        title,
		Authors:      authors,
		Affiliations: listText(sum[FieldAffiliations]),
		Keywords:     listText(sum[FieldKeywords]),
		Highlights:   paragraph(sum[FieldHighlight]),
	}, nil
}

func (t *Tool) reportDir(key types.CollectionKey, lang string) string {
	dir := filepath.Join(t.ReportRoot, fmt.Sprintf("%s_%d", key.Conference, key.Year))
	if key.Topic != "" {
		dir = filepath.Join(dir, store.SanitizeTopic(key.Topic))
	}
	return filepath.Join(dir, strings.ToUpper(lang))
}

func (t *Tool) writers() []Writer {
	if len(t.Writers) > 0 {
		return t.Writers
	}
	return []Writer{ExcelWriter{}, MarkdownWriter{}}
}

func (t *Tool) progress(format string, args ...any) {
	if t.Progress != nil {
		fmt.Fprintf(t.Progress, format, args...)
	}
}

// SelectPreferred returns the report of the first language in prefs that
// succeeded. Languages missing from prefs are never chosen.
func SelectPreferred(reports []types.LanguageReport, prefs []string) (types.LanguageReport, bool) {
	for _, lang := range prefs {
		for _, r := range reports {
			if strings.EqualFold(r.Language, lang) && r.Status == types.StatusSuccess {
				return r, true
			}
		}
	}
	return types.LanguageReport{}, false
}
