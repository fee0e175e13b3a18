// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/config"
)

func TestDisabledTelemetryStillTraces(t *testing.T) {
	tel, err := NewTelemetry(
		context.Background(),
		config.OtelConfig{Enabled: false},
		config.AppConfig{Name: "doc-analyzer"},
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	ctx, span := tel.Tracer.Start(context.Background(), "op")
	defer span.End()

	assert.Len(t, TraceIDFromContext(ctx), 32)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestSampler(t *testing.T) {
	dev := sampler(config.OtelConfig{SampleRate: 0.5}, config.AppConfig{Environment: "development"})
	assert.Equal(t, sdktrace.AlwaysSample().Description(), dev.Description())

	prod := sampler(config.OtelConfig{SampleRate: 7}, config.AppConfig{Environment: "production"})
	assert.Contains(t, prod.Description(), "TraceIDRatioBased{0.1}")
}

func TestSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	AddSpanEvent(ctx, "persisted")
	SetSpanError(ctx, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	require.Len(t, ended[0].Events(), 2)
	assert.Equal(t, "persisted", ended[0].Events()[0].Name)
}

func TestNewExporterInsecure(t *testing.T) {
	exporter, err := newExporter(context.Background(), config.OtelConfig{
		Endpoint: "127.0.0.1:4317",
		Insecure: true,
	})
	require.NoError(t, err)
	require.NotNil(t, exporter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = exporter.Shutdown(ctx)
}
