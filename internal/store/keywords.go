// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

// KeywordStore persists the topic-to-keywords mapping as one YAML file.
// Topics are stored lowercased; keyword lists are kept as a sorted union.
type KeywordStore struct {
	path string
	mu   sync.Mutex
}

// NewKeywordStore returns a store backed by the YAML file at path.
func NewKeywordStore(path string) *KeywordStore {
	return &KeywordStore{path: path}
}

// Path returns the backing file.
func (s *KeywordStore) Path() string {
	return s.path
}

// Load returns the keywords recorded for topic, or nil if none are.
func (s *KeywordStore) Load(topic string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope, err := s.read()
	if err != nil {
		return nil, err
	}
	return scope[topicKey(topic)], nil
}

// Topics returns every topic in the mapping, sorted.
func (s *KeywordStore) Topics() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope, err := s.read()
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, len(scope))
	for t := range scope {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics, nil
}

// Merge adds keywords to topic. It returns the number of new keywords and
// the full sorted list now recorded.
func (s *KeywordStore) Merge(topic string, keywords []string) (int, []string, error) {
	key := topicKey(topic)
	if key == "" {
		return 0, nil, fmt.Errorf("merging keywords: empty topic")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scope, err := s.read()
	if err != nil {
		return 0, nil, err
	}

	set := make(map[string]bool)
	for _, k := range scope[key] {
		set[k] = true
	}
	added := 0
	for _, k := range keywords {
		k = NormalizeKeyword(k)
		if k == "" || set[k] {
			continue
		}
		set[k] = true
		added++
	}

	merged := make([]string, 0, len(set))
	for k := range set {
		merged = append(merged, k)
	}
	sort.Strings(merged)

	if _, statErr := os.Stat(s.path); added == 0 && statErr == nil {
		return 0, merged, nil
	}

	scope[key] = merged
	data, err := yaml.Marshal(scope)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding keyword scope: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return 0, nil, err
	}
	return added, merged, nil
}

func (s *KeywordStore) read() (map[string][]string, error) {
	scope := map[string][]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return scope, nil
		}
		return nil, fmt.Errorf("reading keyword scope %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &scope); err != nil {
		return nil, fmt.Errorf("parsing keyword scope %s: %w", s.path, err)
	}
	if scope == nil {
		scope = map[string][]string{}
	}
	return scope, nil
}

// NormalizeKeyword lowercases a keyword and collapses its whitespace.
func NormalizeKeyword(k string) string {
	return strings.Join(strings.Fields(strings.ToLower(k)), " ")
}

func topicKey(topic string) string {
	return NormalizeKeyword(topic)
}
