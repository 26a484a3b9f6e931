// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/pdiddy/research-trends/internal/llm"
)

// Suffixes stripped by stem, longest first.
var stemSuffixes = []string{"ation", "acy", "ate", "ity", "ive", "ing", "es", "ed", "al", "ly", "s"}

const minStemLen = 4

// stem strips at most one suffix, keeping at least minStemLen characters.
func stem(w string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= minStemLen {
			return w[:len(w)-len(suf)]
		}
	}
	return w
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Match returns the keywords that select title. A keyword selects a title
// when it is a case-insensitive substring of it, or when every keyword
// token shares a stem with some title token ("privacy" and "Private").
func Match(title string, keywords []string) []string {
	lower := strings.ToLower(title)
	stems := make(map[string]bool)
	for _, tok := range tokenize(title) {
		stems[stem(tok)] = true
	}

	var matched []string
	for _, kw := range keywords {
		k := strings.ToLower(strings.TrimSpace(kw))
		if k == "" {
			continue
		}
		if strings.Contains(lower, k) || allStemsPresent(k, stems) {
			matched = append(matched, k)
		}
	}
	return matched
}

func allStemsPresent(keyword string, stems map[string]bool) bool {
	toks := tokenize(keyword)
	if len(toks) == 0 {
		return false
	}
	for _, tok := range toks {
		if !stems[stem(tok)] {
			return false
		}
	}
	return true
}

// ParseDecision reads a binary relevance decision from an LLM reply. It
// accepts a bare "1" or "0", or a JSON object whose "decision" field is
// 0, 1, "0" or "1". Any other shape yields nil.
func ParseDecision(text string) *bool {
	s := strings.TrimSpace(llm.StripCodeFence(text))
	switch s {
	case "1":
		return boolPtr(true)
	case "0":
		return boolPtr(false)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil
	}
	raw, ok := obj["decision"]
	if !ok {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch d := v.(type) {
	case float64:
		if d == 1 {
			return boolPtr(true)
		}
		if d == 0 {
			return boolPtr(false)
		}
	case string:
		switch strings.TrimSpace(d) {
		case "1":
			return boolPtr(true)
		case "0":
			return boolPtr(false)
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
