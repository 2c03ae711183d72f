package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
)

// TracedLLM wraps a chat model with one span per call
type TracedLLM struct {
	llm    interfaces.LLM
	tracer interfaces.Tracer
}

// NewTracedLLM creates a traced model
func NewTracedLLM(llm interfaces.LLM, tracer interfaces.Tracer) interfaces.LLM {
	return &TracedLLM{
		llm:    llm,
		tracer: tracer,
	}
}

func (m *TracedLLM) start(ctx context.Context, name, prompt string) (context.Context, interfaces.Span) {
	ctx, span := m.tracer.StartSpan(ctx, name)
	span.SetAttribute("model", m.llm.Name())
	span.SetAttribute("prompt.length", len(prompt))
	span.SetAttribute("prompt.hash", hashString(prompt))
	return ctx, span
}

// Generate implements interfaces.LLM
func (m *TracedLLM) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	start := time.Now()
	ctx, span := m.start(ctx, "llm.generate", prompt)
	defer span.End()

	response, err := m.llm.Generate(ctx, prompt, options...)
	if err != nil {
		span.RecordError(err)
		return response, err
	}
	span.SetAttribute("response.length", len(response))
	span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
	return response, nil
}

// GenerateDetailed implements interfaces.LLM
func (m *TracedLLM) GenerateDetailed(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (*interfaces.LLMResponse, error) {
	start := time.Now()
	ctx, span := m.start(ctx, "llm.generate_detailed", prompt)
	defer span.End()

	response, err := m.llm.GenerateDetailed(ctx, prompt, options...)
	if err != nil {
		span.RecordError(err)
		return response, err
	}
	span.SetAttribute("response.length", len(response.Content))
	span.SetAttribute("stop_reason", response.StopReason)
	span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
	if response.Usage != nil {
		span.SetAttribute("usage.input_tokens", response.Usage.InputTokens)
		span.SetAttribute("usage.output_tokens", response.Usage.OutputTokens)
		span.SetAttribute("usage.total_tokens", response.Usage.TotalTokens)
	}
	return response, nil
}

// GenerateStream implements interfaces.LLM. The span stays open until the
// stream is drained.
func (m *TracedLLM) GenerateStream(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (<-chan interfaces.StreamEvent, error) {
	start := time.Now()
	ctx, span := m.start(ctx, "llm.generate_stream", prompt)
	span.SetAttribute("streaming", true)

	upstream, err := m.llm.GenerateStream(ctx, prompt, options...)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}

	out := make(chan interfaces.StreamEvent)
	go func() {
		defer close(out)
		defer span.End()
		length := 0
		for event := range upstream {
			switch event.Type {
			case interfaces.StreamEventContentDelta:
				length += len(event.Content)
			case interfaces.StreamEventError:
				if event.Error != nil {
					span.RecordError(event.Error)
				}
			}
			out <- event
		}
		span.SetAttribute("response.length", length)
		span.SetAttribute("duration_ms", time.Since(start).Milliseconds())
	}()
	return out, nil
}

// Name implements interfaces.LLM
func (m *TracedLLM) Name() string {
	return m.llm.Name()
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
