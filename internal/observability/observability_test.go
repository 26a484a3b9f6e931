// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLoggerJSONWithRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger = WithStage(WithRunContext(logger, "run-1", "neurips", 2020, "privacy"), "crawl_papers")

	logger.Debug().Msg("hidden")
	logger.Info().Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "neurips", entry["conference"])
	assert.Equal(t, float64(2020), entry["year"])
	assert.Equal(t, "crawl_papers", entry["stage"])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveStage("crawl_papers", "success", 2*time.Second)
	m.ObserveStage("crawl_papers", "success", time.Second)
	m.ObserveWorkflow("completed")
	m.AddPapers("summarize_papers", "failed", 2)
	m.AddPapers("summarize_papers", "failed", 0)
	m.ObserveLLM("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageRuns.WithLabelValues("crawl_papers", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowRuns.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PapersProcessed.WithLabelValues("summarize_papers", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("success")))

	path := filepath.Join(t.TempDir(), "research_trends.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "research_trends_stage_runs_total")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("x", "success", time.Second)
		m.ObserveWorkflow("error")
		m.AddPapers("x", "y", 1)
		m.ObserveLLM("error")
	})
}
