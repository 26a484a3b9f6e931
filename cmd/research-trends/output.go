// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-trends/pkg/types"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", formatTable, "output format: table, json, or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	f, _ := cmd.Flags().GetString("format")
	f = strings.ToLower(strings.TrimSpace(f))
	switch f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, or yaml)", f)
	}
}

// encode writes v as JSON or YAML.
func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints a stage Result and turns an error status into a
// command error so the process exits non-zero.
func printResult[T any](w io.Writer, format string, res types.Result[T]) error {
	if format == formatTable {
		fmt.Fprintf(w, "%-8s %s\n", res.Status, res.Message)
	} else if err := encode(w, format, res); err != nil {
		return err
	}
	if res.Failed() {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

// printSummary prints the final workflow summary.
func printSummary(w io.Writer, format string, s types.WorkflowSummary) error {
	if format != formatTable {
		return encode(w, format, s)
	}

	row := func(label string, value any) {
		fmt.Fprintf(w, "%-18s %v\n", label, value)
	}
	row("Run", s.RunID)
	row("Status", s.Status)
	row("Conference", fmt.Sprintf("%s %d", s.Conference, s.Year))
	row("Topic", s.Topic)
	row("Current step", s.CurrentStep)
	row("Papers crawled", s.PapersProcessed.Crawled)
	row("Papers filtered", s.PapersProcessed.Filtered)
	row("Papers summarized", s.PapersProcessed.Summarized)
	row("Processing time", fmt.Sprintf("%.1fs", s.ProcessingTime))

	files := []struct{ label, path string }{
		{"Keywords", s.OutputFiles.Keywords},
		{"Paper list", s.OutputFiles.PaperList},
		{"Filtered papers", s.OutputFiles.FilteredPapers},
		{"Summaries", s.OutputFiles.Summaries},
		{"Excel report", s.OutputFiles.ExcelReport},
	}
	for _, f := range files {
		if f.path != "" {
			row(f.label, f.path)
		}
	}

	if s.Aggregation != nil {
		for _, r := range s.Aggregation.Languages {
			row("Report "+r.Language, fmt.Sprintf("%s (%d rows) %s", r.Status, r.Rows, r.Message))
		}
	}
	if s.ErrorMessage != "" {
		fmt.Fprintln(w, strings.Repeat("-", 40))
		row("Error", s.ErrorMessage)
	}
	return nil
}
