package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating an OpenTelemetry span per
// event. It is wired in alongside the Event Bus (which serves SSE
// subscribers) as a secondary sink for distributed tracing.
//
// Each event becomes a single, immediately-ended span: these are point-in-
// time occurrences, not long-running operations, so there is no matching
// span.End() elsewhere in the engine.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter from tracer, typically obtained via
// otel.Tracer("invoiced").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates a span named after the event type, tagged with the thread
// id and the fields relevant to that event's arm.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, string(event.Type))
	defer span.End()

	o.addAttributes(span, event)

	if event.Type == EventLog && event.Level == LevelError {
		span.SetStatus(codes.Error, event.Message)
		span.RecordError(fmt.Errorf("%s", event.Message))
	}
	if event.Status == StatusFailed {
		span.SetStatus(codes.Error, event.Stage)
	}
}

// EmitBatch creates spans for events in one call, useful when replaying a
// thread's history into a trace backend after the fact.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, string(event.Type))
		o.addAttributes(span, event)
		if event.Type == EventLog && event.Level == LevelError {
			span.SetStatus(codes.Error, event.Message)
			span.RecordError(fmt.Errorf("%s", event.Message))
		}
		span.End()
	}
	return nil
}

// Flush forces the configured tracer provider to export pending spans, if
// it supports it (the SDK provider does; the global no-op provider does
// not).
func (o *OTelEmitter) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) addAttributes(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("invoiced.thread_id", event.ThreadID),
		attribute.String("invoiced.event_type", string(event.Type)),
	)
	if event.Stage != "" {
		span.SetAttributes(attribute.String("invoiced.stage", event.Stage))
	}
	if event.Status != "" {
		span.SetAttributes(attribute.String("invoiced.status", event.Status))
	}
	if event.Level != "" {
		span.SetAttributes(attribute.String("invoiced.log_level", event.Level))
	}
	if event.LogType != "" {
		span.SetAttributes(attribute.String("invoiced.log_type", event.LogType))
	}
	if event.ToolName != "" {
		span.SetAttributes(
			attribute.String("invoiced.tool_name", event.ToolName),
			attribute.String("invoiced.server", event.Server),
		)
	}
	for k, v := range event.Data {
		span.SetAttributes(attribute.String("invoiced.data."+k, fmt.Sprintf("%v", v)))
	}
}
