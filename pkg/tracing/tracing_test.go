package tracing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/memory"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
)

type recordedSpan struct {
	name  string
	attrs map[string]interface{}
	errs  []error
	ended bool
}

func (s *recordedSpan) End()                                       { s.ended = true }
func (s *recordedSpan) AddEvent(string, map[string]interface{})    {}
func (s *recordedSpan) SetAttribute(key string, value interface{}) { s.attrs[key] = value }
func (s *recordedSpan) RecordError(err error)                      { s.errs = append(s.errs, err) }

type recordingTracer struct {
	mu    sync.Mutex
	spans []*recordedSpan
}

func (t *recordingTracer) StartSpan(ctx context.Context, name string) (context.Context, interfaces.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := &recordedSpan{name: name, attrs: map[string]interface{}{}}
	t.spans = append(t.spans, span)
	return ctx, span
}

func (t *recordingTracer) named(name string) *recordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.spans {
		if s.name == name {
			return s
		}
	}
	return nil
}

type stubLLM struct {
	answer string
	err    error
}

func (l *stubLLM) Generate(ctx context.Context, prompt string, _ ...interfaces.GenerateOption) (string, error) {
	return l.answer, l.err
}

func (l *stubLLM) GenerateDetailed(ctx context.Context, prompt string, _ ...interfaces.GenerateOption) (*interfaces.LLMResponse, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &interfaces.LLMResponse{
		Content: l.answer,
		Usage:   &interfaces.TokenUsage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5},
	}, nil
}

func (l *stubLLM) GenerateStream(ctx context.Context, prompt string, _ ...interfaces.GenerateOption) (<-chan interfaces.StreamEvent, error) {
	ch := make(chan interfaces.StreamEvent, 3)
	ch <- interfaces.StreamEvent{Type: interfaces.StreamEventContentDelta, Content: "Hel"}
	ch <- interfaces.StreamEvent{Type: interfaces.StreamEventContentDelta, Content: "lo"}
	ch <- interfaces.StreamEvent{Type: interfaces.StreamEventMessageStop}
	close(ch)
	return ch, nil
}

func (l *stubLLM) Name() string { return "gpt-4o" }

func TestTracedLLM(t *testing.T) {
	tracer := &recordingTracer{}
	llm := NewTracedLLM(&stubLLM{answer: "Hello"}, tracer)

	out, err := llm.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)

	span := tracer.named("llm.generate")
	require.NotNil(t, span)
	assert.True(t, span.ended)
	assert.Equal(t, "gpt-4o", span.attrs["model"])
	assert.Equal(t, 5, span.attrs["response.length"])

	resp, err := llm.GenerateDetailed(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, 5, tracer.named("llm.generate_detailed").attrs["usage.total_tokens"])

	stream, err := llm.GenerateStream(context.Background(), "hi")
	require.NoError(t, err)
	var text string
	for ev := range stream {
		text += ev.Content
	}
	assert.Equal(t, "Hello", text)
	streamSpan := tracer.named("llm.generate_stream")
	assert.True(t, streamSpan.ended)
	assert.Equal(t, 5, streamSpan.attrs["response.length"])
}

func TestTracedLLMRecordsError(t *testing.T) {
	tracer := &recordingTracer{}
	boom := errors.New("boom")
	llm := NewTracedLLM(&stubLLM{err: boom}, tracer)

	_, err := llm.Generate(context.Background(), "hi")
	require.ErrorIs(t, err, boom)
	span := tracer.named("llm.generate")
	assert.Equal(t, []error{boom}, span.errs)
	assert.True(t, span.ended)
}

func TestTracedHistory(t *testing.T) {
	tracer := &recordingTracer{}
	history := NewTracedHistory(memory.NewConversationBuffer(), tracer)
	s := memory.Session{Agent: "HRAgent", UserID: "jane.doe@example.com", SessionID: "default"}
	ctx := context.Background()

	require.NoError(t, history.AddMessages(ctx, s,
		interfaces.Message{Role: interfaces.MessageRoleUser, Content: "hi"},
		interfaces.Message{Role: interfaces.MessageRoleAssistant, Content: "hello"},
	))
	msgs, err := history.Messages(ctx, s)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	require.NoError(t, history.Clear(ctx, s))

	assert.Equal(t, 2, tracer.named("memory.add_messages").attrs["messages.count"])
	assert.Equal(t, "HRAgent", tracer.named("memory.messages").attrs["agent"])
	assert.NotNil(t, tracer.named("memory.clear"))
}

func TestGraphHooks(t *testing.T) {
	tracer := &recordingTracer{}
	boom := errors.New("boom")
	hooks := GraphHooks(tracer, "HRAgent")
	ctx := context.Background()

	nodeCtx := hooks.BeforeNode(ctx, "route")
	hooks.AfterNode(nodeCtx, "route", nil)
	hooks.OnRoute(ctx, "route", "go", "fail")
	nodeCtx = hooks.BeforeNode(ctx, "fail")
	hooks.AfterNode(nodeCtx, "fail", boom)

	// without a node span there is nothing to end
	hooks.AfterNode(ctx, "orphan", boom)

	routeSpan := tracer.named("node.route")
	require.NotNil(t, routeSpan)
	assert.True(t, routeSpan.ended)
	assert.Empty(t, routeSpan.errs)
	assert.Equal(t, "HRAgent", routeSpan.attrs["agent"])

	failSpan := tracer.named("node.fail")
	require.NotNil(t, failSpan)
	assert.True(t, failSpan.ended)
	assert.Equal(t, []error{boom}, failSpan.errs)

	decision := tracer.named("route.route")
	require.NotNil(t, decision)
	assert.Equal(t, "go", decision.attrs["label"])
	assert.Equal(t, "fail", decision.attrs["to"])
}

func TestOTelTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	tracer, err := NewOTelTracer(context.Background(), OTelConfig{
		Enabled: true,
		Tracer:  provider.Tracer("test"),
	})
	require.NoError(t, err)

	ctx := multitenancy.WithOrgID(context.Background(), "HRAgent")
	_, span := tracer.StartSpan(ctx, "node.retrieve")
	span.SetAttribute("documents", 4)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "enterprise-agents/node.retrieve", ended[0].Name())

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "HRAgent", attrs["org_id"])
	assert.Equal(t, "4", attrs["documents"])
	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestDisabledOTelTracer(t *testing.T) {
	tracer, err := NewOTelTracer(context.Background(), OTelConfig{})
	require.NoError(t, err)
	_, span := tracer.StartSpan(context.Background(), "noop")
	assert.IsType(t, &NoOpSpan{}, span)
	span.End()
}
