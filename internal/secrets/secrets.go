// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files. Each
// file is one secret: the filename is the key name and the trimmed contents
// are the value.
//
// Recognized key files: openai-api-key, anthropic-api-key, gemini-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Well-known key file names.
const (
	OpenAIKey    = "openai-api-key"
	AnthropicKey = "anthropic-api-key"
	GeminiKey    = "gemini-api-key"
)

// Secrets maps key file names to their values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory yields an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Str("secret", name).Err(err).Msg("could not read secret")
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// Resolve returns the value of the environment variable env when set, and
// otherwise the first of names present in s.
func (s Secrets) Resolve(env string, names ...string) string {
	if env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	for _, n := range names {
		if v, ok := s[n]; ok {
			return v
		}
	}
	return ""
}

// Names returns the loaded key names in sorted order, for startup logging.
func (s Secrets) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
