// Package observability provides OpenTelemetry tracing around dataset I/O
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/sdds"

// Span wraps a trace span and batches attributes until End
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Fail marks the span as failed with err
func (s *Span) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// DatasetTracer opens spans for the operations of one dataset
type DatasetTracer struct {
	dataset string
	tracer  trace.Tracer
}

// NewDatasetTracer returns a tracer using the global provider, which is a
// no-op unless InitStdout or another SDK setup installed one
func NewDatasetTracer(dataset string) *DatasetTracer {
	return &DatasetTracer{
		dataset: dataset,
		tracer:  otel.Tracer(instrumentationName),
	}
}

// NewDatasetTracerWith returns a tracer drawing spans from tp
func NewDatasetTracerWith(dataset string, tp trace.TracerProvider) *DatasetTracer {
	return &DatasetTracer{dataset: dataset, tracer: tp.Tracer(instrumentationName)}
}

// StartSpan starts a span named "sdds.<operation>"
func (dt *DatasetTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := dt.tracer.Start(ctx, "sdds."+operation)
	s := &Span{span: span}
	s.SetAttribute("sdds.dataset", dt.dataset)
	s.SetAttribute("sdds.operation", operation)
	return ctx, s
}

// Trace runs fn inside a span, recording its error. fn may add attributes.
func (dt *DatasetTracer) Trace(ctx context.Context, operation string, fn func(span *Span) error) error {
	_, span := dt.StartSpan(ctx, operation)
	defer span.End()

	err := fn(span)
	if err != nil {
		span.Fail(err)
	} else {
		span.span.SetStatus(codes.Ok, "")
	}
	return err
}
