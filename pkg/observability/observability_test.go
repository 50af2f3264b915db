package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/sdds/pkg/errors"
)

func TestDatasetTracerRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewDatasetTracerWith("beam.sdds", tp)

	err := tracer.Trace(context.Background(), "WritePage", func(span *Span) error {
		span.SetAttribute("sdds.rows", 3)
		return nil
	})
	require.NoError(t, err)

	failure := errors.New(errors.ErrorTypeProtocol, "premature end of data")
	err = tracer.Trace(context.Background(), "ReadPage", func(*Span) error { return failure })
	assert.Equal(t, failure, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "sdds.WritePage", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("sdds.dataset", "beam.sdds"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("sdds.rows", 3))

	assert.Equal(t, "sdds.ReadPage", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestInitStdoutExportsSpans(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Writer = &out
	require.NoError(t, InitStdout(cfg))
	t.Cleanup(func() { _ = Shutdown(context.Background()) })

	tracer := NewDatasetTracer("stdout.sdds")
	require.NoError(t, tracer.Trace(context.Background(), "WriteLayout", func(*Span) error { return nil }))
	require.NoError(t, Shutdown(context.Background()))
	assert.Contains(t, out.String(), "sdds.WriteLayout")
	assert.Contains(t, out.String(), "stdout.sdds")
}
