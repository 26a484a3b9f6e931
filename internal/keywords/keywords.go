// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package keywords generates topical keyword lists with an LLM and merges
// them into the keyword scope file.
package keywords

import (
	"bytes"
	"context"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

var promptTmpl = template.Must(template.New("keywords").Parse(`You generate keyword lists for academic research topics.

Given a topic, return a JSON array of strings.

Requirements:
- At least 10 unique, relevant keywords.
- Mostly single words; include common multi-word technical phrases where needed.
- Cover core terms, word-form variants (noun, verb, adjective, abbreviations, synonyms),
  subfields, and related methods and concepts.
- Output only the array. No explanations, no code fences.

Examples:
Topic: privacy
Output: ["privacy", "private", "anonymity", "anonymous", "data protection", "federated learning"]

Topic: attack
Output: ["attack", "membership inference", "model inversion", "backdoor", "jailbreak", "poison"]

Topic: {{.Topic}}
Output:`))

// Params selects the topic to generate keywords for.
type Params struct {
	Topic string

	// Reuse returns the stored keywords without calling the LLM when the
	// topic already has entries.
	Reuse bool
}

// Output reports the keywords now stored for the topic.
type Output struct {
	Topic     string   `json:"topic" yaml:"topic"`
	Keywords  []string `json:"keywords" yaml:"keywords"`
	Generated int      `json:"generated" yaml:"generated"`
	Added     int      `json:"added" yaml:"added"`
	Reused    bool     `json:"reused" yaml:"reused"`
	Path      string   `json:"path" yaml:"path"`
}

// Tool is the keyword generation stage.
type Tool struct {
	LLM     llm.Client
	Store   *store.KeywordStore
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Execute generates keywords for p.Topic and merges them into the scope
// file. The stored list is the sorted union of old and new keywords.
func (t *Tool) Execute(ctx context.Context, p Params) types.Result[Output] {
	return types.Guard(types.StepGenerateKeywords, func() types.Result[Output] {
		return t.execute(ctx, p)
	})
}

func (t *Tool) execute(ctx context.Context, p Params) types.Result[Output] {
	topic := store.NormalizeKeyword(p.Topic)
	logger := observability.WithStage(t.Logger, types.StepGenerateKeywords).With().Str("topic", topic).Logger()
	out := Output{Topic: topic, Path: t.Store.Path()}

	if topic == "" {
		return types.Failure[Output]("topic is required")
	}

	existing, err := t.Store.Load(topic)
	if err != nil {
		return types.Failure[Output]("loading keywords: %v", err)
	}
	if p.Reuse && len(existing) > 0 {
		out.Keywords = existing
		out.Reused = true
		logger.Info().Int("keywords", len(existing)).Msg("reusing stored keywords")
		return types.Success(out, "reused %d keywords for %q", len(existing), topic)
	}

	var prompt bytes.Buffer
	if err := promptTmpl.Execute(&prompt, struct{ Topic string }{topic}); err != nil {
		return types.Failure[Output]("rendering prompt: %v", err)
	}

	logger.Info().Msg("generating keywords")
	text, err := t.LLM.Invoke(ctx, prompt.String())
	if err != nil {
		logger.Error().Err(err).Msg("keyword generation failed")
		return types.Failure[Output]("generating keywords for %q: %v", topic, err)
	}

	generated := ParseList(text)
	out.Generated = len(generated)
	if len(generated) == 0 {
		logger.Warn().Str("response", truncate(text, 200)).Msg("no keywords parsed from response")
		out.Keywords = existing
		return types.Warning(out, "no keywords parsed for %q", topic)
	}

	added, all, err := t.Store.Merge(topic, generated)
	if err != nil {
		return types.Failure[Output]("saving keywords: %v", err)
	}
	out.Added = added
	out.Keywords = all
	t.Metrics.AddPapers(types.StepGenerateKeywords, "keywords", added)

	logger.Info().Int("generated", len(generated)).Int("added", added).Int("total", len(all)).Msg("keywords saved")
	return types.Success(out, "generated %d keywords for %q (%d new, %d total)", len(generated), topic, added, len(all))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
