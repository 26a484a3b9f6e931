// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package keywords

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-trends/internal/llm"
	"github.com/pdiddy/research-trends/internal/store"
	"github.com/pdiddy/research-trends/pkg/types"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"json array", `["Privacy", "differential privacy", "privacy"]`, []string{"privacy", "differential privacy"}},
		{"python literal", `['privacy', 'Anonymity', "k-anonymity"]`, []string{"privacy", "anonymity", "k-anonymity"}},
		{"fenced", "```python\n['a', 'b']\n```", []string{"a", "b"}},
		{"with preamble", "Here you go:\n[\"x\", \"y\"]", []string{"x", "y"}},
		{"escaped quote", `['don\'t panic']`, []string{"don't panic"}},
		{"newline list", "- privacy\n- Anonymity\n3. data protection", []string{"privacy", "anonymity", "data protection"}},
		{"comma list", "privacy, anonymity,  data   protection ", []string{"privacy", "anonymity", "data protection"}},
		{"non-string json items", `["a", 1, null, "b"]`, []string{"a", "b"}},
		{"empty", "   ", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseList(tc.in))
		})
	}
}

type countingLLM struct {
	reply string
	err   error
	calls int
	last  string
}

func (c *countingLLM) Invoke(_ context.Context, prompt string) (string, error) {
	c.calls++
	c.last = prompt
	return c.reply, c.err
}

var _ llm.Client = (*countingLLM)(nil)

func newTool(t *testing.T, client llm.Client) (*Tool, *store.KeywordStore) {
	t.Helper()
	ks := store.NewKeywordStore(filepath.Join(t.TempDir(), "configs", "analysis_scope.yaml"))
	return &Tool{LLM: client, Store: ks, Logger: zerolog.Nop()}, ks
}

func TestExecuteGeneratesAndMerges(t *testing.T) {
	client := &countingLLM{reply: `["Privacy", "anonymity", "privacy"]`}
	tool, ks := newTool(t, client)
	ctx := context.Background()

	res := tool.Execute(ctx, Params{Topic: "  Privacy "})
	require.Equal(t, types.StatusSuccess, res.Status, res.Message)
	assert.Equal(t, "privacy", res.Data.Topic)
	assert.Equal(t, []string{"anonymity", "privacy"}, res.Data.Keywords)
	assert.Equal(t, 2, res.Data.Generated)
	assert.Equal(t, 2, res.Data.Added)
	assert.True(t, strings.Contains(client.last, "Topic: privacy"))

	client.reply = `["federated learning", "anonymity"]`
	res = tool.Execute(ctx, Params{Topic: "privacy"})
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Data.Added)
	assert.Equal(t, []string{"anonymity", "federated learning", "privacy"}, res.Data.Keywords)

	stored, err := ks.Load("PRIVACY")
	require.NoError(t, err)
	assert.Equal(t, res.Data.Keywords, stored)
}

func TestExecuteReuse(t *testing.T) {
	client := &countingLLM{reply: `["new"]`}
	tool, ks := newTool(t, client)
	_, _, err := ks.Merge("privacy", []string{"privacy"})
	require.NoError(t, err)

	res := tool.Execute(context.Background(), Params{Topic: "privacy", Reuse: true})
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.True(t, res.Data.Reused)
	assert.Equal(t, []string{"privacy"}, res.Data.Keywords)
	assert.Zero(t, client.calls)

	// Reuse with no stored entry falls through to generation.
	res = tool.Execute(context.Background(), Params{Topic: "safety", Reuse: true})
	require.Equal(t, types.StatusSuccess, res.Status)
	assert.False(t, res.Data.Reused)
	assert.Equal(t, 1, client.calls)
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		client *countingLLM
		want   types.Status
	}{
		{"empty topic", " ", &countingLLM{}, types.StatusError},
		{"llm error", "privacy", &countingLLM{err: errors.New("quota")}, types.StatusError},
		{"unparsable reply", "privacy", &countingLLM{reply: "```\n```"}, types.StatusWarning},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool, _ := newTool(t, tc.client)
			res := tool.Execute(context.Background(), Params{Topic: tc.topic})
			assert.Equal(t, tc.want, res.Status, res.Message)
		})
	}
}
