// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pdiddy/research-trends/internal/acquire"
	"github.com/pdiddy/research-trends/internal/aggregate"
	"github.com/pdiddy/research-trends/internal/convert"
	"github.com/pdiddy/research-trends/internal/crawl"
	"github.com/pdiddy/research-trends/internal/filter"
	"github.com/pdiddy/research-trends/internal/httputil"
	"github.com/pdiddy/research-trends/internal/keywords"
	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/internal/summarize"
	"github.com/pdiddy/research-trends/internal/workflow"
	"github.com/pdiddy/research-trends/pkg/types"
)

// app holds the collaborators built from the loaded configuration. Clients
// are created on first use so that commands which never call the LLM do not
// require an API key.
type app struct {
	records  store.RecordStore
	close    func() error
	progress io.Writer

	client  llm.Client
	limiter *httputil.RateLimiter
}

// newApp opens the configured record store.
func newApp() (*app, error) {
	a := &app{close: func() error { return nil }, progress: os.Stdout}

	switch cfg.Store.Backend {
	case types.StoreSQLite:
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		a.records = s
		a.close = s.Close
	default:
		a.records = store.NewJSONLStore(cfg.Paths.PaperListRoot, logger)
	}

	a.limiter = httputil.NewRateLimiter(cfg.HTTP.RequestsPerSecond, 1)
	return a, nil
}

// Close releases the record store.
func (a *app) Close() error {
	return a.close()
}

func (a *app) llmClient() (llm.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	c, err := llm.New(cfg.LLM, metrics, logger)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: cfg.HTTP.Timeout}
}

func (a *app) keywordStore() *store.KeywordStore {
	return store.NewKeywordStore(cfg.Paths.ScopeFile)
}

func (a *app) artifacts() *summarize.ArtifactStore {
	return summarize.NewArtifactStore(cfg.Paths.SummaryRoot)
}

func (a *app) keywordTool() (*keywords.Tool, error) {
	client, err := a.llmClient()
	if err != nil {
		return nil, err
	}
	return &keywords.Tool{LLM: client, Store: a.keywordStore(), Logger: logger, Metrics: metrics}, nil
}

func (a *app) crawlTool() *crawl.Tool {
	pages := &crawl.PageClient{
		Client:     a.httpClient(),
		UserAgent:  cfg.HTTP.UserAgent,
		MaxRetries: cfg.HTTP.MaxRetries,
		Limiter:    a.limiter,
	}
	return &crawl.Tool{
		Fetchers: crawl.DefaultRegistry(pages, logger),
		Store:    a.records,
		Logger:   logger,
		Metrics:  metrics,
		Progress: a.progress,
	}
}

// filterTool builds the filter stage. The LLM is wired only for the llm
// method.
func (a *app) filterTool(method types.Method) (*filter.Tool, error) {
	t := &filter.Tool{
		Records:  a.records,
		Keywords: a.keywordStore(),
		Logger:   logger,
		Metrics:  metrics,
		Progress: a.progress,
	}
	if method == types.MethodLLM {
		client, err := a.llmClient()
		if err != nil {
			return nil, err
		}
		t.LLM = client
	}
	return t, nil
}

func (a *app) summarizeTool(ctx context.Context) (*summarize.Tool, error) {
	client, err := a.llmClient()
	if err != nil {
		return nil, err
	}
	conv, err := convert.New(ctx, cfg.PDF, logger)
	if err != nil {
		return nil, fmt.Errorf("pdf parser: %w", err)
	}
	return &summarize.Tool{
		LLM:       client,
		Records:   a.records,
		Artifacts: a.artifacts(),
		Downloader: &acquire.Downloader{
			Client:     a.httpClient(),
			UserAgent:  cfg.HTTP.UserAgent,
			MaxSize:    cfg.PDF.MaxSizeBytes,
			MaxRetries: cfg.HTTP.MaxRetries,
			Limiter:    a.limiter,
			Logger:     logger,
		},
		Converter:    conv,
		PDFRoot:      cfg.Paths.PDFRoot,
		MaxTextChars: cfg.PDF.MaxTextChars,
		KeepPDFs:     cfg.PDF.KeepPDFs,
		Logger:       logger,
		Metrics:      metrics,
		Progress:     a.progress,
	}, nil
}

func (a *app) aggregateTool() *aggregate.Tool {
	return &aggregate.Tool{
		Records:    a.records,
		Artifacts:  a.artifacts(),
		ReportRoot: cfg.Paths.ReportRoot,
		Logger:     logger,
		Metrics:    metrics,
		Progress:   a.progress,
	}
}

// orchestrator wires every stage into the workflow graph. The filter LLM
// is wired only when run selects the llm method.
func (a *app) orchestrator(ctx context.Context, run types.RunConfig) (*workflow.Orchestrator, error) {
	deps := workflow.Deps{
		Crawl:        a.crawlTool(),
		Aggregate:    a.aggregateTool(),
		Records:      a.records,
		KeywordStore: a.keywordStore(),
		Logger:       logger,
		Metrics:      metrics,
	}

	kw, err := a.keywordTool()
	if err != nil {
		return nil, err
	}
	deps.Keywords = kw

	ft, err := a.filterTool(run.Method)
	if err != nil {
		return nil, err
	}
	deps.Filter = ft

	st, err := a.summarizeTool(ctx)
	if err != nil {
		return nil, err
	}
	deps.Summarize = st

	return workflow.New(deps), nil
}
