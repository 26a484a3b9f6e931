// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for stages that fetch listings or PDFs.
type HTTPConfig struct {
	// Timeout bounds every request.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every request (e.g. "research-trends/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond throttles requests to conference sites. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries is the retry budget for HTTP 429/503 responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LLMProvider identifies the LLM vendor client.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderClaude LLMProvider = "claude"
)

// LLMConfig holds settings for the LLM collaborator.
type LLMConfig struct {
	Provider LLMProvider `json:"provider" yaml:"provider" mapstructure:"provider"`

	// Model is the model identifier (e.g. "gpt-4o-mini", "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is never read from the config file; it comes from .secrets/ or the environment.
	APIKey string `json:"-" yaml:"-" mapstructure:"-"`

	// BaseURL points the OpenAI client at a compatible gateway.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	Timeout           time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	MaxTokens         int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// PathsConfig locates the persisted artifacts.
type PathsConfig struct {
	// ScopeFile is the topic-to-keywords mapping file.
	ScopeFile string `json:"scope_file" yaml:"scope_file" mapstructure:"scope_file"`

	// PaperListRoot holds the JSONL record collections.
	PaperListRoot string `json:"paper_list_root" yaml:"paper_list_root" mapstructure:"paper_list_root"`

	// SummaryRoot holds the per-paper summary artifacts.
	SummaryRoot string `json:"summary_root" yaml:"summary_root" mapstructure:"summary_root"`

	// ReportRoot holds the aggregated spreadsheets.
	ReportRoot string `json:"report_root" yaml:"report_root" mapstructure:"report_root"`

	// PDFRoot holds PDFs while they are being summarized.
	PDFRoot string `json:"pdf_root" yaml:"pdf_root" mapstructure:"pdf_root"`
}

// StoreBackend selects the RecordStore implementation.
type StoreBackend string

const (
	StoreJSONL  StoreBackend = "jsonl"
	StoreSQLite StoreBackend = "sqlite"
)

// StoreConfig selects and configures the RecordStore.
type StoreConfig struct {
	Backend    StoreBackend `json:"backend" yaml:"backend" mapstructure:"backend"`
	SQLitePath string       `json:"sqlite_path" yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// PDFParser selects the PDF text extraction backend.
type PDFParser string

const (
	ParserText       PDFParser = "text"
	ParserMarkitdown PDFParser = "markitdown"
)

// PDFConfig holds settings for PDF download and text extraction.
type PDFConfig struct {
	Parser PDFParser `json:"parser" yaml:"parser" mapstructure:"parser"`

	// MaxTextChars truncates extracted text before it is sent to the LLM.
	MaxTextChars int `json:"max_text_chars" yaml:"max_text_chars" mapstructure:"max_text_chars"`

	// MaxSizeBytes rejects downloads larger than this.
	MaxSizeBytes int64 `json:"max_size_bytes" yaml:"max_size_bytes" mapstructure:"max_size_bytes"`

	// KeepPDFs leaves downloaded PDFs in place after summarization.
	KeepPDFs bool `json:"keep_pdfs" yaml:"keep_pdfs" mapstructure:"keep_pdfs"`

	// ParseTimeout bounds text extraction of a single PDF.
	ParseTimeout time.Duration `json:"parse_timeout" yaml:"parse_timeout" mapstructure:"parse_timeout"`
}
