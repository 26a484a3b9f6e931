// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunError      RunStatus = "error"
)

// Workflow step names recorded in WorkflowState.CurrentStep.
const (
	StepInitialize       = "initialize"
	StepGenerateKeywords = "generate_keywords"
	StepCrawlPapers      = "crawl_papers"
	StepFilterPapers     = "filter_papers"
	StepSummarizePapers  = "summarize_papers"
	StepAggregateSummary = "aggregate_summary"
	StepFinalize         = "finalize"
)

// WorkflowState is the mutable record threaded through one run. Only the
// workflow orchestrator writes to it.
type WorkflowState struct {
	RunID string

	Conference            string
	Year                  int
	Topic                 string
	Method                Method
	Languages             []string
	SkipKeywordGeneration bool
	SkipCrawling          bool
	MaxPapers             int
	Overwrite             bool

	CurrentStep  string
	Status       RunStatus
	ErrorMessage string

	GeneratedKeywords  []string
	KeywordsSavePath   string
	PaperListPath      string
	FilteredPapersPath string
	SummaryDirectory   string
	ExcelOutputPath    string

	PapersCrawledCount    int
	PapersFilteredCount   int
	PapersSummarizedCount int

	AggregatedSummary *AggregatedSummary
	ErrorSummary      *ErrorSummary

	StartTime      time.Time
	CompletionTime time.Time
	ProcessingTime time.Duration
}

// NewWorkflowState creates the initial state for a validated configuration.
func NewWorkflowState(cfg RunConfig, runID string, start time.Time) *WorkflowState {
	return &WorkflowState{
		RunID:                 runID,
		Conference:            cfg.Conference,
		Year:                  cfg.Year,
		Topic:                 cfg.Topic,
		Method:                cfg.Method,
		Languages:             append([]string(nil), cfg.Languages...),
		SkipKeywordGeneration: cfg.SkipKeywordGeneration,
		SkipCrawling:          cfg.SkipCrawling,
		MaxPapers:             cfg.MaxPapers,
		Overwrite:             cfg.Overwrite,
		CurrentStep:           StepInitialize,
		Status:                RunPending,
		StartTime:             start,
	}
}

// Key returns the (conference, year) collection key of the run.
func (s *WorkflowState) Key() CollectionKey {
	return CollectionKey{Conference: s.Conference, Year: s.Year}
}

// Failed reports whether the run has entered the error status.
func (s *WorkflowState) Failed() bool {
	return s.Status == RunError
}

// Begin records step as the current step. It is a no-op once the run has
// failed so that the failing step stays visible.
func (s *WorkflowState) Begin(step string) bool {
	if s.Failed() {
		return false
	}
	s.CurrentStep = step
	s.Status = RunInProgress
	return true
}

// Fail moves the run into the error status with msg.
func (s *WorkflowState) Fail(msg string) {
	s.Status = RunError
	s.ErrorMessage = msg
}

// ErrorSummary is the compact record stamped by the terminal error handler.
type ErrorSummary struct {
	Status         RunStatus `json:"status" yaml:"status"`
	Conference     string    `json:"conference" yaml:"conference"`
	Year           int       `json:"year" yaml:"year"`
	Topic          string    `json:"topic" yaml:"topic"`
	CurrentStep    string    `json:"current_step" yaml:"current_step"`
	ErrorMessage   string    `json:"error_message" yaml:"error_message"`
	ErrorTimestamp time.Time `json:"error_timestamp" yaml:"error_timestamp"`
}

// PapersProcessed groups the per-stage paper counts of a summary.
type PapersProcessed struct {
	Crawled    int `json:"crawled" yaml:"crawled"`
	Filtered   int `json:"filtered" yaml:"filtered"`
	Summarized int `json:"summarized" yaml:"summarized"`
}

// OutputFiles groups the output handles of a summary.
type OutputFiles struct {
	Keywords       string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	PaperList      string `json:"paper_list,omitempty" yaml:"paper_list,omitempty"`
	FilteredPapers string `json:"filtered_papers,omitempty" yaml:"filtered_papers,omitempty"`
	Summaries      string `json:"summaries,omitempty" yaml:"summaries,omitempty"`
	ExcelReport    string `json:"excel_report,omitempty" yaml:"excel_report,omitempty"`
}

// WorkflowSummary is returned to the caller at the end of a run.
type WorkflowSummary struct {
	RunID           string             `json:"run_id" yaml:"run_id"`
	Status          RunStatus          `json:"status" yaml:"status"`
	Conference      string             `json:"conference" yaml:"conference"`
	Year            int                `json:"year" yaml:"year"`
	Topic           string             `json:"topic" yaml:"topic"`
	CurrentStep     string             `json:"current_step" yaml:"current_step"`
	PapersProcessed PapersProcessed    `json:"papers_processed" yaml:"papers_processed"`
	OutputFiles     OutputFiles        `json:"output_files" yaml:"output_files"`
	ErrorMessage    string             `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	ProcessingTime  float64            `json:"processing_time" yaml:"processing_time"`
	Aggregation     *AggregatedSummary `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Error           *ErrorSummary      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary assembles the caller-facing summary. ProcessingTime is in seconds.
func (s *WorkflowState) Summary() WorkflowSummary {
	return WorkflowSummary{
		RunID:       s.RunID,
		Status:      s.Status,
		Conference:  s.Conference,
		Year:        s.Year,
		Topic:       s.Topic,
		CurrentStep: s.CurrentStep,
		PapersProcessed: PapersProcessed{
			Crawled:    s.PapersCrawledCount,
			Filtered:   s.PapersFilteredCount,
			Summarized: s.PapersSummarizedCount,
		},
		OutputFiles: OutputFiles{
			Keywords:       s.KeywordsSavePath,
			PaperList:      s.PaperListPath,
			FilteredPapers: s.FilteredPapersPath,
			Summaries:      s.SummaryDirectory,
			ExcelReport:    s.ExcelOutputPath,
		},
		ErrorMessage:   s.ErrorMessage,
		ProcessingTime: s.ProcessingTime.Seconds(),
		Aggregation:    s.AggregatedSummary,
		Error:          s.ErrorSummary,
	}
}
