package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartAgentTurnRecordsSpanWithAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown := NewTracer("agentcore-test", recorder)
	defer shutdown(context.Background())

	_, span := tracer.StartAgentTurn(context.Background(), "top-level", "claude-sonnet-4")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.turn", spans[0].Name())
}

func TestStartToolExecutionRecordsSpanNamedForTool(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown := NewTracer("agentcore-test", recorder)
	defer shutdown(context.Background())

	_, span := tracer.StartToolExecution(context.Background(), "bash")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "tool.bash", spans[0].Name())
}

func TestRecordErrorSetsErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown := NewTracer("agentcore-test", recorder)
	defer shutdown(context.Background())

	_, span := tracer.StartToolExecution(context.Background(), "bash")
	RecordError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTraceAgentTurnEndsSpanAndRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown := NewTracer("agentcore-test", recorder)
	defer shutdown(context.Background())

	_, end := tracer.TraceAgentTurn(context.Background(), "top-level", "claude-sonnet-4")
	end(errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.turn", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTraceAgentTurnOnNilTracerIsNoop(t *testing.T) {
	var tracer *Tracer
	ctx, end := tracer.TraceAgentTurn(context.Background(), "top-level", "model")
	assert.NotPanics(t, func() { end(nil) })
	assert.Equal(t, context.Background(), ctx)
}

func TestTraceToolExecutionOnNilTracerIsNoop(t *testing.T) {
	var tracer *Tracer
	ctx, end := tracer.TraceToolExecution(context.Background(), "bash")
	assert.NotPanics(t, func() { end(errors.New("boom")) })
	assert.Equal(t, context.Background(), ctx)
}

func TestRecordErrorNilIsNoop(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer, shutdown := NewTracer("agentcore-test", recorder)
	defer shutdown(context.Background())

	_, span := tracer.StartToolExecution(context.Background(), "bash")
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
