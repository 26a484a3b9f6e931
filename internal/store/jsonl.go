// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/pkg/types"
)

const (
	fullListFile   = "full_list.jsonl"
	filteredPrefix = "filtered_"
	jsonlExt       = ".jsonl"
	maxLineBytes   = 4 << 20
)

// JSONLStore keeps one line-delimited JSON file per collection under root:
//
//	root/{conference}_{year}/full_list.jsonl
//	root/{conference}_{year}/filtered_{topic}.jsonl
//
// A language suffix (_EN, _CH) is added before the extension for
// language-scoped collections.
type JSONLStore struct {
	root   string
	logger zerolog.Logger
	locks  keyedMutex
}

// NewJSONLStore returns a store rooted at root. The directory is created on
// first write.
func NewJSONLStore(root string, logger zerolog.Logger) *JSONLStore {
	return &JSONLStore{root: root, logger: logger}
}

// Path returns the file backing key.
func (s *JSONLStore) Path(key types.CollectionKey) string {
	dir := filepath.Join(s.root, fmt.Sprintf("%s_%d", strings.ToLower(key.Conference), key.Year))
	name := strings.TrimSuffix(fullListFile, jsonlExt)
	if key.Topic != "" {
		name = filteredPrefix + SanitizeTopic(key.Topic)
	}
	if key.Language != "" {
		name += "_" + strings.ToUpper(key.Language)
	}
	return filepath.Join(dir, name+jsonlExt)
}

// Handle implements RecordStore.
func (s *JSONLStore) Handle(key types.CollectionKey) string {
	return s.Path(key)
}

// Load implements RecordStore. Lines that fail to decode are skipped with a
// warning.
func (s *JSONLStore) Load(ctx context.Context, key types.CollectionKey) ([]types.Record, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(key.String())
	defer unlock()
	return s.read(key)
}

// Merge implements RecordStore.
func (s *JSONLStore) Merge(ctx context.Context, key types.CollectionKey, records []types.Record) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(key.String())
	defer unlock()

	existing, err := s.read(key)
	if err != nil {
		return 0, err
	}
	merged, added := mergeInto(existing, records, key, s.logger)

	_, statErr := os.Stat(s.Path(key))
	if added == 0 && statErr == nil {
		return 0, nil
	}
	if err := s.write(key, merged); err != nil {
		return 0, err
	}
	return added, nil
}

// Delete implements RecordStore.
func (s *JSONLStore) Delete(ctx context.Context, key types.CollectionKey, pred Predicate) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(key.String())
	defer unlock()

	existing, err := s.read(key)
	if err != nil {
		return 0, err
	}
	kept := existing[:0:0]
	for _, r := range existing {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	removed := len(existing) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.write(key, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *JSONLStore) read(key types.CollectionKey) ([]types.Record, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []types.Record{}, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	records := []types.Record{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var r types.Record
		if err := json.Unmarshal(text, &r); err != nil {
			s.logger.Warn().Str("path", path).Int("line", line).Err(err).Msg("skipping invalid record line")
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

func (s *JSONLStore) write(key types.CollectionKey, records []types.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record %q: %w", r.Title, err)
		}
	}
	return writeFileAtomic(s.Path(key), buf.Bytes())
}

// SanitizeTopic maps a topic to a filesystem-safe name: lowercase letters,
// digits, '-' and '_' are kept, everything else becomes '_'.
func SanitizeTopic(topic string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(topic)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "topic"
	}
	return out
}
