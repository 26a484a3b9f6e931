// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-trends/internal/convert"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and prune stored paper collections",
	Long: `Records lists or deletes the papers stored for a (conference, year)
collection. Use --collection-topic to address a filtered topic collection
instead of the full listing.`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records of a collection",
	RunE:  runRecordsList,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete records matching a selector",
	Long: `Delete removes records from a collection. Exactly one selector is
required: --title (normalized title match), --topic or --keyword (records
tagged with that label), or --all to empty the collection.`,
	Example: `  research-trends records delete --conference neurips --year 2020 --title "Private Learning via X"
  research-trends records delete --conference neurips --year 2020 --collection-topic privacy --all`,
	RunE: runRecordsDelete,
}

func init() {
	for _, c := range []*cobra.Command{recordsListCmd, recordsDeleteCmd} {
		addKeyFlags(c)
		c.Flags().String("collection-topic", "", "address the filtered collection of this topic")
		c.Flags().String("store", "", "record store backend: jsonl or sqlite")
	}
	addFormatFlag(recordsListCmd)

	recordsDeleteCmd.Flags().String("title", "", "delete the record with this title")
	recordsDeleteCmd.Flags().String("topic", "", "delete records tagged with this topic")
	recordsDeleteCmd.Flags().String("keyword", "", "delete records tagged with this keyword")
	recordsDeleteCmd.Flags().Bool("all", false, "delete every record in the collection")

	recordsCmd.AddCommand(recordsListCmd, recordsDeleteCmd)
	rootCmd.AddCommand(recordsCmd)
}

// recordsKey builds the collection key from the bound key flags.
func recordsKey(cmd *cobra.Command) types.CollectionKey {
	topic, _ := cmd.Flags().GetString("collection-topic")
	return types.CollectionKey{
		Conference: cfg.Run.Conference,
		Year:       cfg.Run.Year,
		Topic:      strings.TrimSpace(topic),
	}
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	key := recordsKey(cmd)
	recs, err := a.records.Load(cmd.Context(), key)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format != formatTable {
		return encode(w, format, recs)
	}
	if len(recs) == 0 {
		fmt.Fprintf(w, "No records in %s.\n", a.records.Handle(key))
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-60s  %s\n", "#", "Title", "Authors")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for i, r := range recs {
		fmt.Fprintf(w, "%-4d  %-60s  %s\n", i+1, shortTitle(r.Title, 60), strings.Join(r.Authors, ", "))
	}
	fmt.Fprintf(w, "\n%d record(s) in %s\n", len(recs), a.records.Handle(key))
	return nil
}

// shortTitle cuts title to at most width characters, marking the cut with
// an ellipsis.
func shortTitle(title string, width int) string {
	if utf8.RuneCountInString(title) <= width {
		return title
	}
	return convert.Truncate(title, width-3) + "..."
}

func runRecordsDelete(cmd *cobra.Command, args []string) error {
	pred, desc, err := deletePredicate(cmd)
	if err != nil {
		return err
	}
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	key := recordsKey(cmd)
	n, err := a.records.Delete(cmd.Context(), key, pred)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d record(s) matching %s from %s\n", n, desc, a.records.Handle(key))
	return nil
}

// deletePredicate returns the predicate chosen by the selector flags.
func deletePredicate(cmd *cobra.Command) (store.Predicate, string, error) {
	title, _ := cmd.Flags().GetString("title")
	topic, _ := cmd.Flags().GetString("topic")
	keyword, _ := cmd.Flags().GetString("keyword")
	all, _ := cmd.Flags().GetBool("all")

	var (
		pred  store.Predicate
		desc  string
		count int
	)
	if title != "" {
		pred, desc = store.ByTitle(title), fmt.Sprintf("title %q", title)
		count++
	}
	if topic != "" {
		pred, desc = store.ByTopic(topic), fmt.Sprintf("topic %q", topic)
		count++
	}
	if keyword != "" {
		pred, desc = store.ByKeyword(keyword), fmt.Sprintf("keyword %q", keyword)
		count++
	}
	if all {
		pred, desc = store.All(), "all"
		count++
	}

	switch count {
	case 0:
		return nil, "", fmt.Errorf("a selector is required: --title, --topic, --keyword, or --all")
	case 1:
		return pred, desc, nil
	default:
		return nil, "", fmt.Errorf("--title, --topic, --keyword, and --all are mutually exclusive")
	}
}
