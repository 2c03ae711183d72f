package interfaces

import "context"

// Span is a unit of traced work
type Span interface {
	End()
	AddEvent(name string, attributes map[string]interface{})
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// Tracer starts spans
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}
