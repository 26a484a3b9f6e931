// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// Record is one paper entry in a RecordCollection. Title is the canonical
// identity; PaperURL stands in when a listing yields no title.
type Record struct {
	Title      string            `json:"title" yaml:"title"`
	Authors    []string          `json:"authors,omitempty" yaml:"authors,omitempty"`
	PaperURL   string            `json:"paper_url,omitempty" yaml:"paper_url,omitempty"`
	Conference string            `json:"conference,omitempty" yaml:"conference,omitempty"`
	Year       int               `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract   string            `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Topics     []string          `json:"topics,omitempty" yaml:"topics,omitempty"`
	Keywords   []string          `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Meta       map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// NormalizeIdentity lowercases s and collapses runs of whitespace so that
// "Foo  Bar" and "  foo bar " compare equal.
func NormalizeIdentity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Identity returns the normalized title, or the normalized URL when the
// title is empty. An empty identity marks a malformed record.
func (r Record) Identity() string {
	if id := NormalizeIdentity(r.Title); id != "" {
		return id
	}
	return NormalizeIdentity(r.PaperURL)
}

// HasTopic reports whether label appears in Topics, ignoring case.
func (r Record) HasTopic(label string) bool {
	return containsFold(r.Topics, label)
}

// HasKeyword reports whether label appears in Keywords, ignoring case.
func (r Record) HasKeyword(label string) bool {
	return containsFold(r.Keywords, label)
}

func containsFold(list []string, label string) bool {
	want := NormalizeIdentity(label)
	for _, v := range list {
		if NormalizeIdentity(v) == want {
			return true
		}
	}
	return false
}

// CollectionKey scopes a RecordCollection. Conference and Year are always
// set; Topic and Language narrow the collection to a sub-collection.
type CollectionKey struct {
	Conference string `json:"conference" yaml:"conference"`
	Year       int    `json:"year" yaml:"year"`
	Topic      string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Language   string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Base drops Topic and Language, returning the (conference, year) key.
func (k CollectionKey) Base() CollectionKey {
	return CollectionKey{Conference: k.Conference, Year: k.Year}
}

// WithTopic returns a copy of k scoped to topic.
func (k CollectionKey) WithTopic(topic string) CollectionKey {
	k.Topic = topic
	return k
}

// String renders the key as conference_year[/topic][/language].
func (k CollectionKey) String() string {
	s := fmt.Sprintf("%s_%d", strings.ToLower(k.Conference), k.Year)
	if k.Topic != "" {
		s += "/" + strings.ToLower(k.Topic)
	}
	if k.Language != "" {
		s += "/" + strings.ToUpper(k.Language)
	}
	return s
}
