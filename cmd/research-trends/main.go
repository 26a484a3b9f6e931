// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-trends CLI.
//
// The run command drives the whole pipeline (keywords, crawl, filter,
// summarize, aggregate) through the workflow orchestrator. Each stage is also
// exposed as its own subcommand for reruns and debugging.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/research-trends/internal/config"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	v       = config.New()
	cfg     *config.Config
	logger  = zerolog.Nop()
	metrics = observability.NewMetrics()
)

// flagKeys maps CLI flag names to config keys. Commands register only the
// flags they need; BindFlags skips the rest.
var flagKeys = map[string]string{
	"conference":              "run.conference",
	"year":                    "run.year",
	"topic":                   "run.topic",
	"method":                  "run.method",
	"languages":               "run.languages",
	"skip-keyword-generation": "run.skip_keyword_generation",
	"skip-crawling":           "run.skip_crawling",
	"max-papers":              "run.max_papers",
	"overwrite":               "run.overwrite",
	"provider":                "llm.provider",
	"model":                   "llm.model",
	"store":                   "store.backend",
	"parser":                  "pdf.parser",
	"log-level":               "logging.level",
	"metrics-textfile":        "metrics.textfile",
}

// rootCmd is the base command for the research-trends CLI.
var rootCmd = &cobra.Command{
	Use:   "research-trends",
	Short: "Track research trends in conference proceedings",
	Long: `research-trends crawls a conference's paper listing for a year, filters it
to a research topic, summarizes each relevant paper with an LLM, and
aggregates the summaries into a spreadsheet report.

Use "run" for the whole pipeline, or a stage subcommand (keywords, crawl,
filter, summarize, aggregate) to rerun a single stage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
			return err
		}
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		logger = observability.NewLogger(cfg.Logging)
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug().Str("path", used).Msg("using config file")
		}

		s, err := secrets.Load(cfg.SecretsDir, logger)
		if err != nil {
			return err
		}
		if names := s.Names(); len(names) > 0 {
			logger.Debug().Strs("secrets", names).Msg("loaded secrets")
		}
		cfg.ResolveSecrets(s)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-trends.yaml or ~/.config/research-trends/research-trends.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("metrics-textfile", "", "write Prometheus metrics to this file on exit")
}

// flushMetrics writes the metrics textfile when one is configured.
func flushMetrics() {
	if cfg == nil || cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("writing metrics textfile")
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	flushMetrics()
	if err != nil {
		os.Exit(1)
	}
}
