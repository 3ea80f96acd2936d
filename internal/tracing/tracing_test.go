package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-agents/internal/config"
)

func TestDisabledProvider(t *testing.T) {
	p, err := New(config.TracingConfig{Enabled: false}, "test", nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	_, span := StartAgentSpan(context.Background(), p.Tracer(), "run-1", "forecasting", 1)
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("ignored"))
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	assert.NotNil(t, nilProvider.Tracer())
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestEnabledProviderExportsAgentSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(config.TracingConfig{Enabled: true, ServiceName: "stock-agents-test"}, "1.2.3", &buf)
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, span := StartAgentSpan(context.Background(), p.Tracer(), "run-1", "segmentation", 2)
	assert.True(t, span.SpanContext().IsValid())
	_, child := p.Tracer().Start(ctx, "product")
	EndSpan(child, nil)
	EndSpan(span, errors.New("deadline exceeded"))

	require.NoError(t, p.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name":"agent.segmentation"`)
	assert.Contains(t, out, `"run.id"`)
	assert.Contains(t, out, "deadline exceeded")
	assert.Contains(t, out, "stock-agents-test")
	assert.Contains(t, out, "1.2.3")
}
