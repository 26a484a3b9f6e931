// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-trends/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline for a conference, year, and topic",
	Long: `Run generates keywords for the topic, crawls the conference listing,
filters it to the topic, summarizes each paper, and aggregates the summaries
into per-language reports.

Stages already done can be skipped with --skip-keyword-generation and
--skip-crawling; the stored keywords and paper list are used instead. A
failing stage stops the run and the summary names the failing step.`,
	Example: `  research-trends run --conference neurips --year 2020 --topic privacy
  research-trends run --conference aaai --year 2024 --topic safety --method llm --languages EN
  research-trends run --conference neurips --year 2020 --topic privacy --skip-crawling --format json`,
	RunE: runRun,
}

func init() {
	addKeyFlags(runCmd)
	runCmd.Flags().String("topic", "", "research topic")
	runCmd.Flags().String("method", "", "filter method: keyword or llm (default keyword)")
	runCmd.Flags().StringSlice("languages", nil, "summary languages in preference order (default CH,EN)")
	runCmd.Flags().Bool("skip-keyword-generation", false, "reuse the stored keywords for the topic")
	runCmd.Flags().Bool("skip-crawling", false, "reuse the stored paper list")
	runCmd.Flags().Int("max-papers", 0, "cap the papers each stage handles (0 means all)")
	runCmd.Flags().Bool("overwrite", false, "regenerate summaries that already exist")
	addProviderFlags(runCmd)
	addFormatFlag(runCmd)

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	run := cfg.Run
	if err := run.Validate(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if format != formatTable {
		// Keep stdout parseable.
		a.progress = os.Stderr
	}

	ctx := cmd.Context()
	orch, err := a.orchestrator(ctx, run)
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, run)
	if err != nil {
		return err
	}
	if err := printSummary(cmd.OutOrStdout(), format, summary); err != nil {
		return err
	}
	if summary.Status == types.RunError {
		return fmt.Errorf("workflow failed at %s", summary.CurrentStep)
	}
	return nil
}

// addKeyFlags registers the collection key flags.
func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("conference", "", "conference key (neurips, aaai)")
	cmd.Flags().Int("year", 0, "conference year")
}

// addProviderFlags registers overrides for the LLM and PDF settings.
func addProviderFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "LLM provider: openai or claude")
	cmd.Flags().String("model", "", "LLM model identifier")
	cmd.Flags().String("store", "", "record store backend: jsonl or sqlite")
	cmd.Flags().String("parser", "", "PDF parser: text or markitdown")
}
