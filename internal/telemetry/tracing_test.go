package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogExporter_WritesSpans(t *testing.T) {
	var buf bytes.Buffer
	exp := NewLogExporter(debugLogger(&buf))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer tp.Shutdown(context.Background())

	ctx, parent := tp.Tracer("test").Start(context.Background(), "orchestrator.Run")
	_, child := tp.Tracer("test").Start(ctx, "orchestrator.Task")
	child.SetAttributes(attribute.String("kairo.task.id", "task-1"))
	child.SetStatus(codes.Error, "one or more steps failed")
	child.End()
	parent.End()

	out := buf.String()
	assert.Contains(t, out, `"msg":"span"`)
	assert.Contains(t, out, `"name":"orchestrator.Task"`)
	assert.Contains(t, out, `"name":"orchestrator.Run"`)
	assert.Contains(t, out, `"kairo.task.id":"task-1"`)
	assert.Contains(t, out, `"status":"Error"`)
	assert.Contains(t, out, `"status_description":"one or more steps failed"`)
	assert.Contains(t, out, `"parent_span_id"`)
}

func TestLogExporter_StopsAfterShutdown(t *testing.T) {
	var buf bytes.Buffer
	exp := NewLogExporter(debugLogger(&buf))
	require.NoError(t, exp.Shutdown(context.Background()))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer("test").Start(context.Background(), "ignored")
	span.End()

	assert.Empty(t, buf.String())
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{Provider: "bogus"}, nil)
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, Shutdown(context.Background(), tp))
}

func TestInitTracing_LogProvider(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Enabled: true, Provider: "log", SampleRate: 1, ServiceVersion: "test"}

	tp, err := InitTracing(context.Background(), cfg, debugLogger(&buf))
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "executor.Execute")
	span.End()

	// Shutdown flushes the batcher.
	require.NoError(t, Shutdown(context.Background(), tp))
	assert.Contains(t, buf.String(), `"name":"executor.Execute"`)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"log", Config{Provider: "log", SampleRate: 1}, false},
		{"otlp upper case", Config{Provider: "OTLP", SampleRate: 0.5}, false},
		{"unknown provider", Config{Provider: "zipkin", SampleRate: 1}, true},
		{"negative rate", Config{Provider: "log", SampleRate: -0.1}, true},
		{"rate above one", Config{Provider: "log", SampleRate: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := InitTracing(context.Background(), Config{Enabled: true, Provider: "zipkin"}, nil)
	assert.Error(t, err)
}

func TestShutdown_Nil(t *testing.T) {
	assert.NoError(t, Shutdown(context.Background(), nil))
}
