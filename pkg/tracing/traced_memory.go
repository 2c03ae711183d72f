package tracing

import (
	"context"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/memory"
)

// TracedHistory wraps a chat history store with spans
type TracedHistory struct {
	history memory.History
	tracer  interfaces.Tracer
}

// NewTracedHistory creates a traced history store
func NewTracedHistory(history memory.History, tracer interfaces.Tracer) *TracedHistory {
	return &TracedHistory{
		history: history,
		tracer:  tracer,
	}
}

func (m *TracedHistory) start(ctx context.Context, name string, s memory.Session) (context.Context, interfaces.Span) {
	ctx, span := m.tracer.StartSpan(ctx, name)
	span.SetAttribute("agent", s.Agent)
	span.SetAttribute("session_id", s.SessionID)
	return ctx, span
}

// AddMessages implements memory.History
func (m *TracedHistory) AddMessages(ctx context.Context, s memory.Session, messages ...interfaces.Message) error {
	ctx, span := m.start(ctx, "memory.add_messages", s)
	defer span.End()

	span.SetAttribute("messages.count", len(messages))
	err := m.history.AddMessages(ctx, s, messages...)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Messages implements memory.History
func (m *TracedHistory) Messages(ctx context.Context, s memory.Session) ([]interfaces.Message, error) {
	ctx, span := m.start(ctx, "memory.messages", s)
	defer span.End()

	messages, err := m.history.Messages(ctx, s)
	if err != nil {
		span.RecordError(err)
		return messages, err
	}
	span.SetAttribute("messages.count", len(messages))
	return messages, nil
}

// Clear implements memory.History
func (m *TracedHistory) Clear(ctx context.Context, s memory.Session) error {
	ctx, span := m.start(ctx, "memory.clear", s)
	defer span.End()

	err := m.history.Clear(ctx, s)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
