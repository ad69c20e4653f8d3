package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderWithoutTrace(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), Config{ServiceName: "test", Writer: &buf})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer)
	require.NotNil(t, p.Meter)

	p.Log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "test")

	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderWithTraceExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), Config{ServiceName: "test", Writer: &buf, Trace: true})
	require.NoError(t, err)

	_, span := p.Tracer.Start(context.Background(), "resolver.resolve")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "resolver.resolve")
}

func TestNewMetricsRegistersInstruments(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{ServiceName: "test"})
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	require.NoError(t, err)
	require.NotNil(t, m.CacheHits)
	require.NotNil(t, m.CacheMisses)
	require.NotNil(t, m.StoreLatency)
}
