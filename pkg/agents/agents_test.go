package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/chains"
)

func TestBuiltinRegistry(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)
	assert.Len(t, r.All(), 10)

	hr, err := r.Get("hragent")
	require.NoError(t, err)
	assert.Equal(t, "HRAgent", hr.Name)
	assert.Equal(t, "hragent", hr.Path())
	assert.Equal(t, "HRAgentCharChunkSize700", hr.Collection())
	assert.Equal(t, 15, hr.HistoryTurns)
	assert.Equal(t, []chains.Route{chains.RouteSimple, chains.RouteRAG, chains.RouteWebSearch}, hr.RouteSet())
	assert.Contains(t, hr.EnterpriseContext(), "Organization context and guidelines:")
	assert.Contains(t, hr.EnterpriseContext(), "You are the HR Agent, part of the AI Agent Platform.")
	assert.Contains(t, hr.EnterpriseContext(), "\t\t- You are not able to send files or information via email.\n")

	analytics, err := r.Get("AnalyticsAgent")
	require.NoError(t, err)
	assert.Equal(t, 5, analytics.HistoryTurns)
	assert.True(t, analytics.Has(chains.RouteSQL))
	assert.False(t, analytics.Has(chains.RouteRAG))

	finance, err := r.Get("FinanceAgent")
	require.NoError(t, err)
	require.NotNil(t, finance.Gather)
	assert.Equal(t, "business cluster", finance.Gather.Field)
	assert.Contains(t, finance.Gather.Choices, "Ports")
	assert.Nil(t, hr.Gather)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - name: HRAgent
    title: People Agent
    purpose: Answer people questions.
    routes: [simple_query]
  - name: LegalAgent
    purpose: Review contracts.
    routes: [simple_query, rag_query]
`), 0o600))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, r.All(), 11)

	hr, err := r.Get("HRAgent")
	require.NoError(t, err)
	assert.Equal(t, []chains.Route{chains.RouteSimple}, hr.RouteSet())
	assert.Contains(t, hr.EnterpriseContext(), "You are the People Agent")
	assert.Contains(t, hr.EnterpriseContext(), "Organization context and guidelines:")

	legal, err := r.Get("legalagent")
	require.NoError(t, err)
	assert.Equal(t, "LegalAgent", legal.Title)
}

func TestParseRejectsUnknownRoute(t *testing.T) {
	_, err := Parse([]byte("agents:\n  - name: X\n    routes: [teleport_query]\n"))
	assert.Error(t, err)
}

func TestParseRejectsGatherWithoutField(t *testing.T) {
	_, err := Parse([]byte("agents:\n  - name: X\n    gather:\n      choices: [a, b]\n"))
	assert.Error(t, err)
}
