package telemetry

import (
	"context"
	"log/slog"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans as structured log records.
type LogExporter struct {
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

// NewLogExporter creates a LogExporter writing to logger.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans logs each span with its timing, status and attributes.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return nil
	}

	for _, s := range spans {
		sc := s.SpanContext()
		attrs := []slog.Attr{
			slog.String("name", s.Name()),
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
			slog.Int64("duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds()),
			slog.String("status", s.Status().Code.String()),
		}
		if s.Parent().IsValid() {
			attrs = append(attrs, slog.String("parent_span_id", s.Parent().SpanID().String()))
		}
		if d := s.Status().Description; d != "" {
			attrs = append(attrs, slog.String("status_description", d))
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "span", attrs...)
	}
	return nil
}

// Shutdown stops further exports.
func (e *LogExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}
