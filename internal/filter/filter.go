// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package filter selects the papers of a (conference, year) collection that
// are relevant to a topic and merges them into the topic sub-collection.
package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

var promptTmpl = template.Must(template.New("relevance").Parse(`You classify academic papers by topical relevance.

Topic: {{.Topic}}
{{- if .Keywords}}
Related keywords: {{.Keywords}}
{{- end}}

Decide whether the paper below is about the topic. Judge by the title alone.
Respond with a JSON object and nothing else: {"decision": 1} if relevant, {"decision": 0} if not.

Title: {{.Title}}`))

// Params selects the collection and relevance method.
type Params struct {
	Conference string
	Year       int
	Topic      string
	Method     types.Method

	// MaxPapers caps how many base records are considered. Zero means all.
	MaxPapers int
}

// Output reports the filter outcome. Total is the size of the topic
// collection after the merge.
type Output struct {
	Collection string `json:"collection" yaml:"collection"`
	Considered int    `json:"considered" yaml:"considered"`
	Matched    int    `json:"matched" yaml:"matched"`
	Added      int    `json:"added" yaml:"added"`
	Total      int    `json:"total" yaml:"total"`
	Undecided  int    `json:"undecided,omitempty" yaml:"undecided,omitempty"`
	Failed     int    `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Tool is the filter stage. LLM is only required for the llm method.
type Tool struct {
	LLM      llm.Client
	Records  store.RecordStore
	Keywords *store.KeywordStore
	Logger   zerolog.Logger
	Metrics  *observability.Metrics

	// Progress receives one line per filtered collection. Nil discards.
	Progress io.Writer
}

// Execute filters the base collection. Zero matches is still a success;
// per-record LLM failures are counted and skipped.
func (t *Tool) Execute(ctx context.Context, p Params) types.Result[Output] {
	return types.Guard(types.StepFilterPapers, func() types.Result[Output] {
		return t.execute(ctx, p)
	})
}

func (t *Tool) execute(ctx context.Context, p Params) types.Result[Output] {
	conf := strings.ToLower(strings.TrimSpace(p.Conference))
	topic := store.NormalizeKeyword(p.Topic)
	method := p.Method
	if method == "" {
		method = types.MethodKeyword
	}
	logger := observability.WithStage(t.Logger, types.StepFilterPapers).With().
		Str("conference", conf).Int("year", p.Year).Str("topic", topic).Str("method", string(method)).Logger()

	if topic == "" {
		return types.Failure[Output]("topic is required")
	}

	base := types.CollectionKey{Conference: conf, Year: p.Year}
	target := base.WithTopic(topic)
	out := Output{Collection: t.Records.Handle(target)}

	records, err := t.Records.Load(ctx, base)
	if err != nil {
		logger.Error().Err(err).Msg("loading base collection failed")
		return types.Failure[Output]("loading %s: %v", base, err)
	}
	if len(records) == 0 {
		return types.Failure[Output]("no papers in %s; crawl it first", base)
	}
	if p.MaxPapers > 0 && len(records) > p.MaxPapers {
		records = records[:p.MaxPapers]
	}
	out.Considered = len(records)

	keywords, err := t.Keywords.Load(topic)
	if err != nil {
		return types.Failure[Output]("loading keywords: %v", err)
	}

	var selected []types.Record
	switch method {
	case types.MethodKeyword:
		if len(keywords) == 0 {
			return types.Failure[Output]("no keywords for topic %q in %s", topic, t.Keywords.Path())
		}
		selected = byKeyword(records, keywords, topic)
	case types.MethodLLM:
		if t.LLM == nil {
			return types.Failure[Output]("llm method requires an LLM client")
		}
		var undecided, failed int
		selected, undecided, failed = t.byLLM(ctx, logger, records, topic, keywords)
		out.Undecided = undecided
		out.Failed = failed
		if err := ctx.Err(); err != nil {
			return types.Failure[Output]("filtering %s: %v", base, err)
		}
	default:
		return types.Failure[Output]("unknown filter method %q", method)
	}
	out.Matched = len(selected)
	t.Metrics.AddPapers(types.StepFilterPapers, "matched", len(selected))
	t.Metrics.AddPapers(types.StepFilterPapers, "rejected", out.Considered-len(selected)-out.Undecided-out.Failed)

	added, err := t.Records.Merge(ctx, target, selected)
	if err != nil {
		return types.Failure[Output]("saving %s: %v", target, err)
	}
	out.Added = added

	all, err := t.Records.Load(ctx, target)
	if err != nil {
		return types.Failure[Output]("reloading %s: %v", target, err)
	}
	out.Total = len(all)

	if t.Progress != nil {
		fmt.Fprintf(t.Progress, "filtered: %s (%d of %d matched, %d new, %d total)\n",
			target, out.Matched, out.Considered, out.Added, out.Total)
	}
	logger.Info().Int("considered", out.Considered).Int("matched", out.Matched).
		Int("added", added).Int("total", out.Total).Msg("filter complete")
	return types.Success(out, "%d of %d papers match %q (%d new, %d total)", out.Matched, out.Considered, topic, added, out.Total)
}

func byKeyword(records []types.Record, keywords []string, topic string) []types.Record {
	var selected []types.Record
	for _, r := range records {
		matched := Match(r.Title, keywords)
		if len(matched) == 0 {
			continue
		}
		selected = append(selected, tag(r, topic, matched))
	}
	return selected
}

func (t *Tool) byLLM(ctx context.Context, logger zerolog.Logger, records []types.Record, topic string, keywords []string) (selected []types.Record, undecided, failed int) {
	for _, r := range records {
		if ctx.Err() != nil {
			return selected, undecided, failed
		}
		title := strings.TrimSpace(r.Title)
		rlog := logger.With().Str("title", title).Logger()
		if title == "" {
			failed++
			continue
		}

		var prompt bytes.Buffer
		err := promptTmpl.Execute(&prompt, struct {
			Topic, Keywords, Title string
		}{topic, strings.Join(keywords, ", "), title})
		if err != nil {
			failed++
			rlog.Warn().Err(err).Msg("rendering prompt failed")
			continue
		}

		reply, err := t.LLM.Invoke(ctx, prompt.String())
		if err != nil {
			failed++
			t.Metrics.AddPapers(types.StepFilterPapers, "failed", 1)
			rlog.Warn().Err(err).Msg("relevance query failed")
			continue
		}
		decision := ParseDecision(reply)
		if decision == nil {
			undecided++
			t.Metrics.AddPapers(types.StepFilterPapers, "undecided", 1)
			rlog.Warn().Str("response", reply).Msg("unparsable relevance decision")
			continue
		}
		if *decision {
			selected = append(selected, tag(r, topic, Match(title, keywords)))
		}
	}
	return selected, undecided, failed
}

// tag returns a copy of r labeled with topic and the matched keywords.
func tag(r types.Record, topic string, matched []string) types.Record {
	if !r.HasTopic(topic) {
		r.Topics = append(append([]string(nil), r.Topics...), topic)
	}
	for _, k := range matched {
		if !r.HasKeyword(k) {
			r.Keywords = append(append([]string(nil), r.Keywords...), k)
		}
	}
	return r
}
