package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartCheckSpanProducesNonEmptyTraceID(t *testing.T) {
	tracer := New("test-service")
	ctx, span := tracer.StartCheckSpan(context.Background(), "S1-probes")
	defer span.End()

	assert.NotEmpty(t, span.TraceID())
	assert.Equal(t, span.TraceID(), ExtractTraceID(ctx))
}

func TestExtractTraceIDEmptyWithoutActiveSpan(t *testing.T) {
	assert.Empty(t, ExtractTraceID(context.Background()))
}
