package tracing

import (
	"context"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/workflow"
)

// NoOpSpan is used when tracing is disabled
type NoOpSpan struct{}

func (s *NoOpSpan) End()                                                    {}
func (s *NoOpSpan) AddEvent(name string, attributes map[string]interface{}) {}
func (s *NoOpSpan) SetAttribute(key string, value interface{})              {}
func (s *NoOpSpan) RecordError(err error)                                   {}

// NoOpTracer starts no-op spans
type NoOpTracer struct{}

// StartSpan implements interfaces.Tracer
func (NoOpTracer) StartSpan(ctx context.Context, _ string) (context.Context, interfaces.Span) {
	return ctx, &NoOpSpan{}
}

type nodeSpanKey struct{}

// GraphHooks opens a span around every node of an agent graph and records
// the routing decisions on the span of the node they follow
func GraphHooks(tracer interfaces.Tracer, agent string) workflow.Hooks {
	if tracer == nil {
		tracer = NoOpTracer{}
	}
	return workflow.Hooks{
		BeforeNode: func(ctx context.Context, node string) context.Context {
			ctx, span := tracer.StartSpan(ctx, "node."+node)
			span.SetAttribute("agent", agent)
			span.SetAttribute("node", node)
			return context.WithValue(ctx, nodeSpanKey{}, span)
		},
		AfterNode: func(ctx context.Context, node string, err error) {
			span, ok := ctx.Value(nodeSpanKey{}).(interfaces.Span)
			if !ok {
				return
			}
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		},
		OnRoute: func(ctx context.Context, from, label, to string) {
			_, span := tracer.StartSpan(ctx, "route."+from)
			span.SetAttribute("agent", agent)
			span.SetAttribute("label", label)
			span.SetAttribute("to", to)
			span.End()
		},
	}
}
