package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/agents"
	"github.com/tagus/enterprise-agents/pkg/chains"
	"github.com/tagus/enterprise-agents/pkg/chat"
	"github.com/tagus/enterprise-agents/pkg/events"
	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/sqlanalyst"
	"github.com/tagus/enterprise-agents/pkg/workflow"
)

type stubSearcher struct{}

func (stubSearcher) Documents(context.Context, string) ([]interfaces.Document, error) { return nil, nil }

type stubSQL struct{}

func (stubSQL) Run(context.Context, []interfaces.Message, string) (*sqlanalyst.Result, error) {
	return nil, nil
}

func TestRoutesForDropsUnconfiguredServices(t *testing.T) {
	registry, err := agents.Load()
	require.NoError(t, err)
	finance, err := registry.Get("FinanceAgent")
	require.NoError(t, err)

	a := &app{logger: logging.NewNoop()}

	routes := a.routesFor(finance, workflow.Deps{})
	assert.NotContains(t, routes, chains.RouteWebSearch)
	assert.NotContains(t, routes, chains.RouteSQL)
	assert.Contains(t, routes, chains.RouteRAG)

	routes = a.routesFor(finance, workflow.Deps{Web: stubSearcher{}, SQL: stubSQL{}})
	assert.Contains(t, routes, chains.RouteWebSearch)
	assert.Contains(t, routes, chains.RouteSQL)
}

func TestFileRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("leave policy"), 0o600))

	fileUser, fileDocID, extractType = "jane.doe@example.com", "doc-1", "fast"
	defer func() { fileUser, fileDocID, extractType = "", "", "fast" }()

	req, err := fileRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "policy.txt", req.Filename)
	assert.Equal(t, "doc-1", req.DocID)
	decoded, err := base64.StdEncoding.DecodeString(req.File)
	require.NoError(t, err)
	assert.Equal(t, "leave policy", string(decoded))

	_, err = fileRequest(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestPrintOutput(t *testing.T) {
	var buf bytes.Buffer
	printEvent(&buf, events.Event{Name: events.WebSearchTriggered})
	printEvent(&buf, events.Event{Name: events.FinalAnswer})

	require.NoError(t, printOutput(&buf, &chat.Output{
		Answer:     "Twenty days.",
		Context:    []interfaces.Document{{Content: "policy"}},
		PDFBlobURL: "https://blob/report.pdf",
	}, false))

	out := buf.String()
	assert.Contains(t, out, "» "+events.WebSearchTriggered)
	assert.NotContains(t, out, events.FinalAnswer)
	assert.Contains(t, out, "Twenty days.")
	assert.Contains(t, out, "Sources: 1 documents")
	assert.Contains(t, out, "PDF: https://blob/report.pdf")

	buf.Reset()
	require.NoError(t, printOutput(&buf, &chat.Output{Answer: "ok"}, true))
	assert.Contains(t, buf.String(), `"answer": "ok"`)
}
