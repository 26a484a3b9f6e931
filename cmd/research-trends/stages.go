// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-trends/internal/aggregate"
	"github.com/pdiddy/research-trends/internal/crawl"
	"github.com/pdiddy/research-trends/internal/filter"
	"github.com/pdiddy/research-trends/internal/keywords"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/internal/summarize"
)

// --- keywords ---

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Generate keywords for a topic and merge them into the scope file",
	Long: `Keywords asks the LLM for a keyword list for --topic and merges it into
the scope file. Existing keywords are kept; the stored list is the sorted
union. With --reuse, a topic that already has keywords is left untouched.
With --list, the stored topics and their keywords are printed and no LLM
call is made.`,
	RunE: runKeywords,
}

func runKeywords(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	reuse, _ := cmd.Flags().GetBool("reuse")
	if list, _ := cmd.Flags().GetBool("list"); list {
		return printKeywordScope(cmd.OutOrStdout(), format, store.NewKeywordStore(cfg.Paths.ScopeFile))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	tool, err := a.keywordTool()
	if err != nil {
		return err
	}
	res := tool.Execute(cmd.Context(), keywords.Params{Topic: cfg.Run.Topic, Reuse: reuse})
	return printResult(cmd.OutOrStdout(), format, res)
}

// topicKeywords is one entry of the keyword scope listing.
type topicKeywords struct {
	Topic    string   `json:"topic" yaml:"topic"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// printKeywordScope lists every stored topic with its keywords.
func printKeywordScope(w io.Writer, format string, ks *store.KeywordStore) error {
	topics, err := ks.Topics()
	if err != nil {
		return err
	}
	scope := make([]topicKeywords, 0, len(topics))
	for _, topic := range topics {
		kws, err := ks.Load(topic)
		if err != nil {
			return err
		}
		scope = append(scope, topicKeywords{Topic: topic, Keywords: kws})
	}

	if format != formatTable {
		return encode(w, format, scope)
	}
	if len(scope) == 0 {
		fmt.Fprintf(w, "No topics in %s.\n", ks.Path())
		return nil
	}
	for _, tk := range scope {
		fmt.Fprintf(w, "%-24s %s\n", tk.Topic, strings.Join(tk.Keywords, ", "))
	}
	return nil
}

// --- crawl ---

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Fetch a conference's paper listing into the record store",
	Long: `Crawl scrapes the paper listing of --conference for --year and merges it
into the (conference, year) collection. Papers already stored are not
duplicated, so crawling again is safe.`,
	Example: `  research-trends crawl --conference neurips --year 2020`,
	RunE:    runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.crawlTool().Execute(cmd.Context(), crawl.Params{
		Conference: cfg.Run.Conference,
		Year:       cfg.Run.Year,
		MaxPapers:  cfg.Run.MaxPapers,
	})
	return printResult(cmd.OutOrStdout(), format, res)
}

// --- filter ---

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Select the crawled papers relevant to a topic",
	Long: `Filter reads the (conference, year) collection and writes the papers
relevant to --topic into the topic collection. The keyword method matches
titles against the stored keywords; the llm method asks the LLM per title.`,
	RunE: runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run := cfg.Run
	tool, err := a.filterTool(run.Method)
	if err != nil {
		return err
	}
	res := tool.Execute(cmd.Context(), filter.Params{
		Conference: run.Conference,
		Year:       run.Year,
		Topic:      run.Topic,
		Method:     run.Method,
		MaxPapers:  run.MaxPapers,
	})
	return printResult(cmd.OutOrStdout(), format, res)
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize every paper in a collection with the LLM",
	Long: `Summarize downloads each paper's PDF, extracts its text, and writes one
structured summary per language. Papers that already have a summary are
reused unless --overwrite is set. Without --topic the whole
(conference, year) collection is summarized.`,
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run := cfg.Run
	tool, err := a.summarizeTool(cmd.Context())
	if err != nil {
		return err
	}
	res := tool.Execute(cmd.Context(), summarize.Params{
		Conference: run.Conference,
		Year:       run.Year,
		Topic:      run.Topic,
		Languages:  run.Languages,
		Overwrite:  run.Overwrite,
		MaxPapers:  run.MaxPapers,
	})
	return printResult(cmd.OutOrStdout(), format, res)
}

// --- aggregate ---

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Build the per-language summary reports",
	Long: `Aggregate collects the stored summaries of a collection into one Excel
and one Markdown report per language. A language fails if any paper lacks
its summary; the first language in --languages that succeeds is reported as
preferred.`,
	RunE: runAggregate,
}

func runAggregate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	run := cfg.Run
	res := a.aggregateTool().Execute(cmd.Context(), aggregate.Params{
		Conference: run.Conference,
		Year:       run.Year,
		Topic:      run.Topic,
		Languages:  run.Languages,
		MaxPapers:  run.MaxPapers,
	})
	return printResult(cmd.OutOrStdout(), format, res)
}

func init() {
	keywordsCmd.Flags().String("topic", "", "research topic")
	keywordsCmd.Flags().Bool("reuse", false, "keep stored keywords when the topic has any")
	keywordsCmd.Flags().Bool("list", false, "print the stored topics and keywords instead of generating")
	keywordsCmd.Flags().String("provider", "", "LLM provider: openai or claude")
	keywordsCmd.Flags().String("model", "", "LLM model identifier")

	addKeyFlags(crawlCmd)
	crawlCmd.Flags().Int("max-papers", 0, "cap the papers merged (0 means all)")
	crawlCmd.Flags().String("store", "", "record store backend: jsonl or sqlite")

	addKeyFlags(filterCmd)
	filterCmd.Flags().String("topic", "", "research topic")
	filterCmd.Flags().String("method", "", "filter method: keyword or llm (default keyword)")
	filterCmd.Flags().Int("max-papers", 0, "cap the papers considered (0 means all)")
	addProviderFlags(filterCmd)

	addKeyFlags(summarizeCmd)
	summarizeCmd.Flags().String("topic", "", "topic collection to summarize (default: whole listing)")
	summarizeCmd.Flags().StringSlice("languages", nil, "summary languages (default CH,EN)")
	summarizeCmd.Flags().Bool("overwrite", false, "regenerate summaries that already exist")
	summarizeCmd.Flags().Int("max-papers", 0, "cap the papers summarized (0 means all)")
	addProviderFlags(summarizeCmd)

	addKeyFlags(aggregateCmd)
	aggregateCmd.Flags().String("topic", "", "topic collection to aggregate")
	aggregateCmd.Flags().StringSlice("languages", nil, "report languages in preference order (default CH,EN)")
	aggregateCmd.Flags().Int("max-papers", 0, "report only the first N papers, matching summarize (0 means all)")
	aggregateCmd.Flags().String("store", "", "record store backend: jsonl or sqlite")

	for _, c := range []*cobra.Command{keywordsCmd, crawlCmd, filterCmd, summarizeCmd, aggregateCmd} {
		addFormatFlag(c)
		rootCmd.AddCommand(c)
	}
}
