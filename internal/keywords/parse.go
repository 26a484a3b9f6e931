// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package keywords

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/store"
)

// quotedItem matches one single- or double-quoted list element.
var quotedItem = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)"`)

// ParseList extracts keywords from an LLM reply. It accepts a JSON array,
// a list literal with single-quoted strings, or newline or comma separated
// text (with optional bullets or numbering). Results are lowercased,
// trimmed, and deduplicated in first-seen order.
func ParseList(text string) []string {
	s := llm.StripCodeFence(text)
	if s == "" {
		return nil
	}
	if i := strings.Index(s, "["); i >= 0 {
		if j := strings.LastIndex(s, "]"); j > i {
			if items, ok := parseBracketed(s[i : j+1]); ok {
				return dedupe(items)
			}
		}
	}
	return dedupe(splitPlain(s))
}

func parseBracketed(s string) ([]string, bool) {
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		var out []string
		for _, v := range arr {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	}

	matches := quotedItem.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		v := m[1]
		if v == "" {
			v = m[2]
		}
		out = append(out, strings.ReplaceAll(strings.ReplaceAll(v, `\'`, `'`), `\"`, `"`))
	}
	return out, true
}

var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

func splitPlain(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		for _, part := range strings.Split(line, ",") {
			out = append(out, strings.Trim(part, " \t\r\"'`"))
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		k := store.NormalizeKeyword(it)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
