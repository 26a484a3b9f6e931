// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow runs the pipeline stages as a state graph:
//
//	check_keyword_generation -> generate_keywords | check_crawling
//	check_crawling           -> crawl_papers | filter_papers
//	filter_papers -> summarize_papers -> aggregate_summary -> finalize -> END
//
// The two checkpoints are routers, not nodes. After every stage a guard
// sends a failed run to the error handler, which stamps an ErrorSummary and
// ends the run.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/research-trends/internal/aggregate"
	"github.com/pdiddy/research-trends/internal/crawl"
	"github.com/pdiddy/research-trends/internal/filter"
	"github.com/pdiddy/research-trends/internal/keywords"
	"github.com/pdiddy/research-trends/internal/observability"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/internal/summarize"
	"github.com/pdiddy/research-trends/pkg/types"
)

// Node names not shared with stage steps.
const (
	NodeError    = "error"
	NodeFinalize = types.StepFinalize
)

// Stage interfaces satisfied by the StageTools.
type (
	KeywordStage interface {
		Execute(ctx context.Context, p keywords.Params) types.Result[keywords.Output]
	}
	CrawlStage interface {
		Execute(ctx context.Context, p crawl.Params) types.Result[crawl.Output]
	}
	FilterStage interface {
		Execute(ctx context.Context, p filter.Params) types.Result[filter.Output]
	}
	SummarizeStage interface {
		Execute(ctx context.Context, p summarize.Params) types.Result[summarize.Output]
	}
	AggregateStage interface {
		Execute(ctx context.Context, p aggregate.Params) types.Result[types.AggregatedSummary]
	}
)

// Deps wires the Orchestrator. Records and Keywords are read on skip paths
// to fill the counts and handles the skipped stage would have reported.
type Deps struct {
	Keywords  KeywordStage
	Crawl     CrawlStage
	Filter    FilterStage
	Summarize SummarizeStage
	Aggregate AggregateStage

	Records      store.RecordStore
	KeywordStore *store.KeywordStore

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string

	// Trace, when set, observes every node visit.
	Trace func(node string)
}

// Orchestrator runs one workflow per Run call. It holds no per-run state.
type Orchestrator struct {
	deps Deps
}

// New returns an Orchestrator using deps.
func New(deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &Orchestrator{deps: deps}
}

// Run validates cfg, runs the graph, and returns the final summary. A
// configuration error is returned before any stage runs. Stage failures are
// reported in the summary, not as an error.
func (o *Orchestrator) Run(ctx context.Context, cfg types.RunConfig) (types.WorkflowSummary, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return types.WorkflowSummary{}, err
	}

	state := types.NewWorkflowState(cfg, o.deps.NewRunID(), o.deps.Now())
	logger := observability.WithRunContext(o.deps.Logger, state.RunID, state.Conference, state.Year, state.Topic)
	logger.Info().Str("method", string(state.Method)).Strs("languages", state.Languages).
		Bool("skip_keyword_generation", state.SkipKeywordGeneration).Bool("skip_crawling", state.SkipCrawling).
		Msg("workflow started")

	o.prepareSkips(ctx, logger, state)

	runnable, err := o.build(logger).Compile()
	if err != nil {
		return types.WorkflowSummary{}, fmt.Errorf("compiling workflow: %w", err)
	}

	final, err := runnable.Invoke(ctx, state)
	if err != nil {
		// A structural failure still ends in the error handler so the
		// caller gets a complete summary.
		final.Fail(err.Error())
		final, _ = o.handleError(ctx, final)
	}
	final.ProcessingTime = o.deps.Now().Sub(final.StartTime)

	summary := final.Summary()
	o.deps.Metrics.ObserveWorkflow(string(summary.Status))
	ev := logger.Info()
	if final.Failed() {
		ev = logger.Error().Str("current_step", final.CurrentStep).Str("error", final.ErrorMessage)
	}
	ev.Str("status", string(summary.Status)).Float64("processing_time", summary.ProcessingTime).Msg("workflow finished")
	return summary, nil
}

// build assembles the graph for one run.
func (o *Orchestrator) build(logger zerolog.Logger) *Graph[*types.WorkflowState] {
	g := NewGraph[*types.WorkflowState]()

	g.AddNode(types.StepGenerateKeywords, o.generateKeywords)
	g.AddNode(types.StepCrawlPapers, o.crawlPapers)
	g.AddNode(types.StepFilterPapers, o.filterPapers)
	g.AddNode(types.StepSummarizePapers, o.summarizePapers)
	g.AddNode(types.StepAggregateSummary, o.aggregateSummary)
	g.AddNode(NodeFinalize, o.finalize)
	g.AddNode(NodeError, o.handleError)

	g.SetConditionalEntryPoint(checkKeywordGeneration)
	g.AddConditionalEdge(types.StepGenerateKeywords, guard(checkCrawling))
	g.AddConditionalEdge(types.StepCrawlPapers, guard(next(types.StepFilterPapers)))
	g.AddConditionalEdge(types.StepFilterPapers, guard(next(types.StepSummarizePapers)))
	g.AddConditionalEdge(types.StepSummarizePapers, guard(next(types.StepAggregateSummary)))
	g.AddConditionalEdge(types.StepAggregateSummary, guard(next(NodeFinalize)))
	g.AddEdge(NodeFinalize, END)
	g.AddEdge(NodeError, END)

	g.AddListener(func(_ context.Context, node string, _ *types.WorkflowState) {
		logger.Debug().Str("node", node).Msg("entering node")
		if o.deps.Trace != nil {
			o.deps.Trace(node)
		}
	})
	return g
}

func checkKeywordGeneration(ctx context.Context, s *types.WorkflowState) string {
	if s.SkipKeywordGeneration {
		return checkCrawling(ctx, s)
	}
	return types.StepGenerateKeywords
}

func checkCrawling(_ context.Context, s *types.WorkflowState) string {
	if s.SkipCrawling {
		return types.StepFilterPapers
	}
	return types.StepCrawlPapers
}

func next(node string) Router[*types.WorkflowState] {
	return func(context.Context, *types.WorkflowState) string { return node }
}

// guard sends a failed run to the error handler and otherwise defers to
// route.
func guard(route Router[*types.WorkflowState]) Router[*types.WorkflowState] {
	return func(ctx context.Context, s *types.WorkflowState) string {
		if s.Failed() {
			return NodeError
		}
		return route(ctx, s)
	}
}

// prepareSkips fills what a skipped stage would have reported from the
// data it would have produced.
func (o *Orchestrator) prepareSkips(ctx context.Context, logger zerolog.Logger, s *types.WorkflowState) {
	if s.SkipKeywordGeneration && o.deps.KeywordStore != nil {
		s.KeywordsSavePath = o.deps.KeywordStore.Path()
		kws, err := o.deps.KeywordStore.Load(s.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("loading stored keywords")
		}
		s.GeneratedKeywords = kws
		logger.Info().Int("keywords", len(kws)).Msg("skipping keyword generation")
	}
	if s.SkipCrawling && o.deps.Records != nil {
		s.PaperListPath = o.deps.Records.Handle(s.Key())
		recs, err := o.deps.Records.Load(ctx, s.Key())
		if err != nil {
			logger.Warn().Err(err).Msg("loading crawled papers")
		}
		s.PapersCrawledCount = len(recs)
		logger.Info().Int("papers", len(recs)).Msg("skipping crawl")
	}
}

// runStage records step, runs fn under the panic guard, and marks the run
// failed when the stage reports an error.
func runStage[T any](o *Orchestrator, s *types.WorkflowState, step string, fn func() types.Result[T]) types.Result[T] {
	s.Begin(step)
	start := o.deps.Now()
	res := types.Guard(step, fn)
	o.deps.Metrics.ObserveStage(step, string(res.Status), o.deps.Now().Sub(start))
	if res.Failed() {
		s.Fail(res.Message)
	}
	return res
}

func (o *Orchestrator) generateKeywords(ctx context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	res := runStage(o, s, types.StepGenerateKeywords, func() types.Result[keywords.Output] {
		return o.deps.Keywords.Execute(ctx, keywords.Params{Topic: s.Topic})
	})
	if !res.Failed() {
		s.GeneratedKeywords = res.Data.Keywords
		s.KeywordsSavePath = res.Data.Path
	}
	return s, nil
}

func (o *Orchestrator) crawlPapers(ctx context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	res := runStage(o, s, types.StepCrawlPapers, func() types.Result[crawl.Output] {
		return o.deps.Crawl.Execute(ctx, crawl.Params{Conference: s.Conference, Year: s.Year, MaxPapers: s.MaxPapers})
	})
	if !res.Failed() {
		s.PaperListPath = res.Data.Collection
		s.PapersCrawledCount = res.Data.Total
	}
	return s, nil
}

func (o *Orchestrator) filterPapers(ctx context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	res := runStage(o, s, types.StepFilterPapers, func() types.Result[filter.Output] {
		return o.deps.Filter.Execute(ctx, filter.Params{
			Conference: s.Conference,
			Year:       s.Year,
			Topic:      s.Topic,
			Method:     s.Method,
			MaxPapers:  s.MaxPapers,
		})
	})
	if !res.Failed() {
		s.FilteredPapersPath = res.Data.Collection
		s.PapersFilteredCount = res.Data.Total
	}
	return s, nil
}

func (o *Orchestrator) summarizePapers(ctx context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	res := runStage(o, s, types.StepSummarizePapers, func() types.Result[summarize.Output] {
		return o.deps.Summarize.Execute(ctx, summarize.Params{
			Conference: s.Conference,
			Year:       s.Year,
			Topic:      s.Topic,
			Languages:  s.Languages,
			Overwrite:  s.Overwrite,
			MaxPapers:  s.MaxPapers,
		})
	})
	if !res.Failed() {
		s.SummaryDirectory = res.Data.SummaryDir
		s.PapersSummarizedCount = res.Data.Summarized
	}
	return s, nil
}

func (o *Orchestrator) aggregateSummary(ctx context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	res := runStage(o, s, types.StepAggregateSummary, func() types.Result[types.AggregatedSummary] {
		return o.deps.Aggregate.Execute(ctx, aggregate.Params{
			Conference: s.Conference,
			Year:       s.Year,
			Topic:      s.Topic,
			Languages:  s.Languages,
			MaxPapers:  s.MaxPapers,
		})
	})
	if len(res.Data.Languages) > 0 {
		agg := res.Data
		s.AggregatedSummary = &agg
	}
	if !res.Failed() {
		s.ExcelOutputPath = res.Data.ReportPath
	}
	return s, nil
}

// finalize stamps completion on the all-success path.
func (o *Orchestrator) finalize(_ context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	s.Begin(types.StepFinalize)
	s.Status = types.RunCompleted
	s.CompletionTime = o.deps.Now()
	s.ProcessingTime = s.CompletionTime.Sub(s.StartTime)
	return s, nil
}

// handleError records the compact error summary. CurrentStep is left
// pointing at the stage that failed.
func (o *Orchestrator) handleError(_ context.Context, s *types.WorkflowState) (*types.WorkflowState, error) {
	now := o.deps.Now()
	s.Status = types.RunError
	s.CompletionTime = now
	s.ErrorSummary = &types.ErrorSummary{
		Status:         types.RunError,
		Conference:     s.Conference,
		Year:           s.Year,
		Topic:          s.Topic,
		CurrentStep:    s.CurrentStep,
		ErrorMessage:   s.ErrorMessage,
		ErrorTimestamp: now,
	}
	return s, nil
}
