package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), observability.TracingConfig{}, logging.NewNop())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := observability.StartSpan(context.Background(), "quiz.answer", attribute.String("session_id", "s1"))
	observability.EndSpan(span, errors.New("model down"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "quiz.answer", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("session_id", "s1"))
}
