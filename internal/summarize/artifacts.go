// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/research-trends/internal/acquire"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

const artifactExt = ".md"

// ArtifactStore keeps one Markdown summary per paper and language under
// root/{conference}_{year}/{topic}/{LANG}/{slug}.md. Artifacts are written
// whole and never edited in place.
type ArtifactStore struct {
	root string
}

// NewArtifactStore returns a store rooted at root.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

// Root returns the directory holding every language of key. key.Topic may
// be empty, in which case it is the (conference, year) directory.
func (s *ArtifactStore) Root(key types.CollectionKey) string {
	dir := filepath.Join(s.root, fmt.Sprintf("%s_%d", strings.ToLower(key.Conference), key.Year))
	if key.Topic != "" {
		dir = filepath.Join(dir, store.SanitizeTopic(key.Topic))
	}
	return dir
}

// Dir returns the directory holding the lang artifacts of key.
func (s *ArtifactStore) Dir(key types.CollectionKey, lang string) string {
	return filepath.Join(s.Root(key), strings.ToUpper(lang))
}

// Path returns the artifact path for the paper titled title.
func (s *ArtifactStore) Path(key types.CollectionKey, lang, title string) string {
	return filepath.Join(s.Dir(key, lang), acquire.Slug(title)+artifactExt)
}

// Exists reports whether a non-empty artifact is present.
func (s *ArtifactStore) Exists(key types.CollectionKey, lang, title string) bool {
	info, err := os.Stat(s.Path(key, lang, title))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Read returns the artifact text. A missing artifact yields an error
// satisfying os.IsNotExist.
func (s *ArtifactStore) Read(key types.CollectionKey, lang, title string) (string, error) {
	data, err := os.ReadFile(s.Path(key, lang, title))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Write replaces the artifact with text through a temp file and rename.
func (s *ArtifactStore) Write(key types.CollectionKey, lang, title, text string) (string, error) {
	path := s.Path(key, lang, title)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".summary-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return path, nil
}
