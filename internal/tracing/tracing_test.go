package tracing

import (
	"context"
	"testing"

	"github.com/andresuchdata/freshflow-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, tracer, err := InitTracer(ctx, config.TracingConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	assert.Same(t, tp, otel.GetTracerProvider())
	_, span := tracer.Start(ctx, "test")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}
