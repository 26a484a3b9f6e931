// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads pipeline configuration from defaults, an optional
// research-trends.yaml, RESEARCH_TRENDS_* environment variables, and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/secrets"
	"github.com/pdiddy/research-trends/pkg/types"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "RESEARCH_TRENDS"

// APIKeyEnv overrides the LLM API key from .secrets/.
const APIKeyEnv = EnvPrefix + "_LLM_API_KEY"

// Config holds all configuration for a research-trends invocation.
type Config struct {
	Run        types.RunConfig             `mapstructure:"run"`
	LLM        types.LLMConfig             `mapstructure:"llm"`
	HTTP       types.HTTPConfig            `mapstructure:"http"`
	Paths      types.PathsConfig           `mapstructure:"paths"`
	Store      types.StoreConfig           `mapstructure:"store"`
	PDF        types.PDFConfig             `mapstructure:"pdf"`
	Logging    observability.LoggingConfig `mapstructure:"logging"`
	Metrics    MetricsConfig               `mapstructure:"metrics"`
	SecretsDir string                      `mapstructure:"secrets_dir"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics registry after each command.
	Textfile string `mapstructure:"textfile"`
}

// New returns a viper instance with defaults and environment binding set.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (cfgFile, or research-trends.yaml in the
// working directory or ~/.config/research-trends) into v and unmarshals the
// result. A missing config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("research-trends")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "research-trends"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Run = cfg.Run.Normalized()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// BindFlags binds each flag named in keys (flag name to config key) so that
// an explicitly set flag overrides file and environment values.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", flag, err)
		}
	}
	return nil
}

// ResolveSecrets fills the LLM API key from the environment or .secrets/.
func (c *Config) ResolveSecrets(s secrets.Secrets) {
	switch c.LLM.Provider {
	case types.ProviderClaude:
		c.LLM.APIKey = s.Resolve(APIKeyEnv, secrets.AnthropicKey)
	default:
		c.LLM.APIKey = s.Resolve(APIKeyEnv, secrets.OpenAIKey, secrets.GeminiKey)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.conference", "")
	v.SetDefault("run.year", 0)
	v.SetDefault("run.topic", "")
	v.SetDefault("run.method", string(types.MethodKeyword))
	v.SetDefault("run.languages", types.DefaultLanguages)
	v.SetDefault("run.skip_keyword_generation", false)
	v.SetDefault("run.skip_crawling", false)
	v.SetDefault("run.max_papers", 0)
	v.SetDefault("run.overwrite", false)

	v.SetDefault("llm.provider", string(types.ProviderOpenAI))
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.requests_per_second", 1.0)

	v.SetDefault("http.timeout", "60s")
	v.SetDefault("http.user_agent", "research-trends/0.1")
	v.SetDefault("http.requests_per_second", 2.0)
	v.SetDefault("http.max_retries", 3)

	v.SetDefault("paths.scope_file", "configs/analysis_scope.yaml")
	v.SetDefault("paths.paper_list_root", "papers/paper_list")
	v.SetDefault("paths.summary_root", "papers/paper_summary")
	v.SetDefault("paths.report_root", "papers/reports")
	v.SetDefault("paths.pdf_root", "papers/tmp_pdf")

	v.SetDefault("store.backend", string(types.StoreJSONL))
	v.SetDefault("store.sqlite_path", "papers/index/records.db")

	v.SetDefault("pdf.parser", string(types.ParserText))
	v.SetDefault("pdf.max_text_chars", 100000)
	v.SetDefault("pdf.max_size_bytes", 50<<20)
	v.SetDefault("pdf.keep_pdfs", false)
	v.SetDefault("pdf.parse_timeout", "2m")

	logging := observability.DefaultLoggingConfig()
	v.SetDefault("logging.level", logging.Level)
	v.SetDefault("logging.format", logging.Format)
	v.SetDefault("logging.output", logging.Output)
	v.SetDefault("logging.add_source", logging.AddSource)
	v.SetDefault("logging.time_format", logging.TimeFormat)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("secrets_dir", ".secrets")
}

// Validate checks every section except Run, which is validated by the
// commands that need a complete run.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case types.ProviderOpenAI, types.ProviderClaude:
	default:
		return fmt.Errorf("invalid llm provider %q (want openai or claude)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got %v", c.LLM.Timeout)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http timeout must be positive, got %v", c.HTTP.Timeout)
	}

	switch c.Store.Backend {
	case types.StoreJSONL:
	case types.StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("invalid store backend %q (want jsonl or sqlite)", c.Store.Backend)
	}

	switch c.PDF.Parser {
	case types.ParserText, types.ParserMarkitdown:
	default:
		return fmt.Errorf("invalid pdf parser %q (want text or markitdown)", c.PDF.Parser)
	}
	if c.PDF.MaxTextChars <= 0 {
		return fmt.Errorf("pdf max_text_chars must be positive, got %d", c.PDF.MaxTextChars)
	}
	if c.PDF.ParseTimeout <= 0 {
		c.PDF.ParseTimeout = 2 * time.Minute
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
		"error": true, "disabled": true, "off": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
