// Package tracing records spans for LLM calls, memory access and graph nodes
// with OpenTelemetry.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/multitenancy"
)

const spanPrefix = "enterprise-agents/"

// OTelTracer implements interfaces.Tracer with OpenTelemetry
type OTelTracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	enabled  bool
}

// OTelSpan wraps an OpenTelemetry span
type OTelSpan struct {
	span trace.Span
}

// End implements interfaces.Span
func (s *OTelSpan) End() {
	s.span.End()
}

// AddEvent implements interfaces.Span
func (s *OTelSpan) AddEvent(name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttribute implements interfaces.Span
func (s *OTelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
}

// RecordError implements interfaces.Span
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// OTelConfig contains configuration for OpenTelemetry
type OTelConfig struct {
	Enabled           bool
	ServiceName       string
	CollectorEndpoint string

	// Tracer allows passing a pre-built tracer instead of exporting over OTLP
	Tracer trace.Tracer
}

// NewOTelTracer creates a tracer exporting to an OTLP gRPC collector. A
// disabled config yields a tracer whose spans are no-ops.
func NewOTelTracer(ctx context.Context, config OTelConfig) (*OTelTracer, error) {
	if !config.Enabled {
		return &OTelTracer{}, nil
	}
	if config.Tracer != nil {
		return &OTelTracer{tracer: config.Tracer, enabled: true}, nil
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(config.CollectorEndpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &OTelTracer{
		tracer:   tp.Tracer(config.ServiceName),
		provider: tp,
		enabled:  true,
	}, nil
}

// StartSpan implements interfaces.Tracer. Spans carry the org id of the
// context when there is one.
func (t *OTelTracer) StartSpan(ctx context.Context, name string) (context.Context, interfaces.Span) {
	if !t.enabled {
		return ctx, &NoOpSpan{}
	}

	var attrs []attribute.KeyValue
	if orgID, err := multitenancy.GetOrgID(ctx); err == nil {
		attrs = append(attrs, attribute.String("org_id", orgID))
	}
	ctx, span := t.tracer.Start(ctx, spanPrefix+name, trace.WithAttributes(attrs...))
	return ctx, &OTelSpan{span: span}
}

// Shutdown flushes pending spans
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
