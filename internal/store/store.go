// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists record collections with at-most-one-copy-per-identity
// semantics. Every write is a merge keyed by the normalized title (or URL), so
// re-running a stage converges on the same collection contents.
//
// Two backends share the merge rules: JSONLStore keeps one line-delimited file
// per collection and SQLiteStore keeps one row per record. Writes to the same
// collection key are serialized; different keys proceed independently.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/pkg/types"
)

// ErrInvalidKey is returned when a collection key lacks a conference or year.
var ErrInvalidKey = errors.New("invalid collection key")

// RecordStore loads, merges, and deletes record collections.
type RecordStore interface {
	// Load returns the collection in insertion order. A collection that was
	// never written yields an empty slice and no error.
	Load(ctx context.Context, key types.CollectionKey) ([]types.Record, error)

	// Merge appends records whose identity is not yet present and returns
	// how many were added. Records without an identity are dropped.
	Merge(ctx context.Context, key types.CollectionKey, records []types.Record) (int, error)

	// Delete removes records matching pred and returns how many were removed.
	Delete(ctx context.Context, key types.CollectionKey, pred Predicate) (int, error)

	// Handle names the collection for output summaries (a path or store URI).
	Handle(key types.CollectionKey) string
}

// Predicate selects records for deletion.
type Predicate func(types.Record) bool

// All selects every record; deleting with it truncates the collection.
func All() Predicate {
	return func(types.Record) bool { return true }
}

// ByTitle selects the record whose normalized title equals title.
func ByTitle(title string) Predicate {
	want := types.NormalizeIdentity(title)
	return func(r types.Record) bool { return types.NormalizeIdentity(r.Title) == want }
}

// ByTopic selects records tagged with the topic label.
func ByTopic(label string) Predicate {
	return func(r types.Record) bool { return r.HasTopic(label) }
}

// ByKeyword selects records tagged with the keyword label.
func ByKeyword(label string) Predicate {
	return func(r types.Record) bool { return r.HasKeyword(label) }
}

func validateKey(key types.CollectionKey) error {
	if strings.TrimSpace(key.Conference) == "" || key.Year <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidKey, key)
	}
	return nil
}

// mergeInto appends the incoming records whose identity is absent from
// existing. It returns the merged slice and the number added.
func mergeInto(existing, incoming []types.Record, key types.CollectionKey, logger zerolog.Logger) ([]types.Record, int) {
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Identity()] = true
	}

	added := 0
	for _, r := range incoming {
		id := r.Identity()
		if id == "" {
			logger.Warn().Str("collection", key.String()).Msg("dropping record without title or url")
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		existing = append(existing, r)
		added++
	}
	return existing, added
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
