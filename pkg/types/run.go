// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is wrapped by every run configuration validation failure.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Method selects how the filter stage decides relevance.
type Method string

const (
	MethodKeyword Method = "keyword"
	MethodLLM     Method = "llm"
)

// Summary languages.
const (
	LangEN = "EN"
	LangCH = "CH"
)

// DefaultLanguages is the preference order used when a run names none.
var DefaultLanguages = []string{LangCH, LangEN}

// RunConfig holds the parameters of one workflow run.
type RunConfig struct {
	Conference            string   `json:"conference" yaml:"conference" mapstructure:"conference" validate:"required"`
	Year                  int      `json:"year" yaml:"year" mapstructure:"year" validate:"min=1900,max=2100"`
	Topic                 string   `json:"topic" yaml:"topic" mapstructure:"topic" validate:"required"`
	Method                Method   `json:"method" yaml:"method" mapstructure:"method" validate:"oneof=keyword llm"`
	Languages             []string `json:"languages" yaml:"languages" mapstructure:"languages" validate:"min=1,dive,oneof=EN CH"`
	SkipKeywordGeneration bool     `json:"skip_keyword_generation" yaml:"skip_keyword_generation" mapstructure:"skip_keyword_generation"`
	SkipCrawling          bool     `json:"skip_crawling" yaml:"skip_crawling" mapstructure:"skip_crawling"`

	// MaxPapers caps how many papers each stage handles. Zero means no cap.
	MaxPapers int `json:"max_papers,omitempty" yaml:"max_papers,omitempty" mapstructure:"max_papers" validate:"min=0"`

	// Overwrite forces re-summarization of papers that already have artifacts.
	Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty" mapstructure:"overwrite"`
}

// Normalized returns a copy with defaults applied: lowercase conference,
// trimmed topic, keyword method, and deduplicated uppercase languages.
func (c RunConfig) Normalized() RunConfig {
	c.Conference = strings.ToLower(strings.TrimSpace(c.Conference))
	c.Topic = strings.TrimSpace(c.Topic)
	if c.Method == "" {
		c.Method = MethodKeyword
	}
	c.Method = Method(strings.ToLower(string(c.Method)))

	langs := c.Languages
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.ToUpper(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	c.Languages = out
	return c
}

// Key returns the (conference, year) collection key for the run.
func (c RunConfig) Key() CollectionKey {
	return CollectionKey{Conference: c.Conference, Year: c.Year}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration before any stage runs. Failures wrap
// ErrInvalidConfig and name every offending field.
func (c RunConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s %q must be one of [%s]", field, fmt.Sprint(fe.Value()), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s %v out of range (%s=%s)", field, fe.Value(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
