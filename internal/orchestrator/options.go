package orchestrator

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jimmy24599/kairo-sub000/internal/progress"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*Orchestrator)

// WithLogger sets the logger. It also becomes the package-level logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithHub sets the observer hub. A hub is created when none is given.
func WithHub(h *progress.Hub) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.hub = h
		}
	}
}

// WithAnalyzer sets the project analyzer.
func WithAnalyzer(a ContextAnalyzer) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.analyzer = a
		}
	}
}

// WithSignalDir enables cross-process stop signals under dataDir.
func WithSignalDir(dataDir string) Option {
	return func(o *Orchestrator) { o.dataDir = dataDir }
}

// WithSignalPollInterval sets how often stop signal files are polled.
func WithSignalPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}
