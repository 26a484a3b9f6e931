// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"errors"
	"strings"

	"github.com/pdiddy/research-trends/internal/llm"
)

// ErrMalformedSummary is returned when an artifact carries none of the
// schema headings.
var ErrMalformedSummary = errors.New("summary does not follow the heading schema")

// Field binds a logical summary field to its heading path. Path[i] is the
// title of the level i+1 heading, so {"Paper Info", "Authors"} is the
// "## Authors" section under "# Paper Info".
type Field struct {
	Name string
	Path []string
}

// Logical field names.
const (
	FieldTitle          = "title"
	FieldAuthors        = "authors"
	FieldAffiliations   = "affiliations"
	FieldHighlight      = "highlight"
	FieldKeywords       = "keywords"
	FieldMotivation     = "motivation"
	FieldStateOfTheArt  = "state_of_the_art"
	FieldProposedMethod = "proposed_method"
	FieldExperiments    = "experiments"
	FieldLimitations    = "limitations"
)

// Schema is the heading layout every summary artifact follows.
var Schema = []Field{
	{FieldTitle, []string{"Paper Info", "Title"}},
	{FieldAuthors, []string{"Paper Info", "Authors"}},
	{FieldAffiliations, []string{"Paper Info", "Affiliations"}},
	{FieldHighlight, []string{"Brief Summary", "Highlight"}},
	{FieldKeywords, []string{"Brief Summary", "Keywords"}},
	{FieldMotivation, []string{"Detailed Summary", "1. Motivation"}},
	{FieldStateOfTheArt, []string{"Detailed Summary", "2. State-of-the-Art Methods"}},
	{FieldProposedMethod, []string{"Detailed Summary", "3. Proposed Method"}},
	{FieldExperiments, []string{"Detailed Summary", "4. Experiment Results"}},
	{FieldLimitations, []string{"Detailed Summary", "5. Limitations and Future Work"}},
}

// section is one heading and the lines beneath it up to the next heading
// of the same or a shallower level. Sub-headings are part of the body.
type section struct {
	level int
	path  []string
	body  []string
}

// parseSections walks the Markdown headings and records every section with
// its full heading path. Lines inside fenced code blocks are never headings.
func parseSections(md string) []*section {
	var (
		all    []*section
		open   []*section
		inCode bool
	)
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
		}
		level, title, ok := heading(line)
		if ok && !inCode {
			for len(open) > 0 && open[len(open)-1].level >= level {
				open = open[:len(open)-1]
			}
			var path []string
			if len(open) > 0 {
				path = append(path, open[len(open)-1].path...)
			}
			// Skipped levels leave empty path entries so that
			// path length always equals level.
			for len(path) < level-1 {
				path = append(path, "")
			}
			s := &section{level: level, path: append(path, title)}
			for _, o := range open {
				o.body = append(o.body, line)
			}
			open = append(open, s)
			all = append(all, s)
			continue
		}
		for _, o := range open {
			o.body = append(o.body, line)
		}
	}
	return all
}

// heading reports the level and title of an ATX heading line.
func heading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return 0, "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	return level, title, true
}

// Extract returns the body of the section at path, trimmed. Titles match
// case-insensitively. The first matching section wins.
func Extract(md string, path ...string) (string, bool) {
	return lookup(parseSections(md), path)
}

func lookup(sections []*section, path []string) (string, bool) {
	for _, s := range sections {
		if samePath(s.path, path) {
			return strings.TrimSpace(strings.Join(s.body, "\n")), true
		}
	}
	return "", false
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), strings.TrimSpace(b[i])) {
			return false
		}
	}
	return true
}

// Summary holds the schema fields of one artifact, keyed by field name.
type Summary map[string]string

// ParseSummary extracts every schema field from a summary artifact. A reply
// wrapped in a code fence is unwrapped first. Missing fields are empty; an
// artifact with no schema field at all is malformed.
func ParseSummary(md string) (Summary, error) {
	sections := parseSections(llm.StripCodeFence(md))
	out := make(Summary, len(Schema))
	found := 0
	for _, f := range Schema {
		body, ok := lookup(sections, f.Path)
		if ok {
			found++
		}
		out[f.Name] = body
	}
	if found == 0 {
		return nil, ErrMalformedSummary
	}
	return out, nil
}

// listText flattens a "[a, b, c]" list or a bulleted list into "a, b, c".
func listText(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	var items []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•"))
		if line != "" {
			items = append(items, line)
		}
	}
	return strings.Join(items, ", ")
}

// paragraph joins a multi-line body into one line.
func paragraph(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
