// Package executor runs subtasks against the tool registry with bounded
// retries and exponential backoff.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jimmy24599/kairo-sub000/internal/tools"
	"github.com/jimmy24599/kairo-sub000/pkg/models"
)

const (
	// DefaultMaxAttempts is the number of invocations made before giving up.
	DefaultMaxAttempts = 3
	// DefaultInitialBackoff is the delay after the first failed attempt.
	DefaultInitialBackoff = 500 * time.Millisecond
	// DefaultMaxBackoff caps the delay between attempts.
	DefaultMaxBackoff = 10 * time.Second
)

// Result is the outcome of executing one subtask.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Attempts int
	Class    Class
}

// Executor invokes subtask operations through an Invoker.
type Executor struct {
	invoker        tools.Invoker
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
	tracer         trace.Tracer
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the attempt cap. Values below 1 are treated as 1.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.maxAttempts = n
	}
}

// WithBackoff sets the initial and maximum delay between attempts.
func WithBackoff(initial, max time.Duration) Option {
	return func(e *Executor) {
		if initial >= 0 {
			e.initialBackoff = initial
		}
		if max >= 0 {
			e.maxBackoff = max
		}
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// New creates an Executor.
func New(invoker tools.Invoker, opts ...Option) *Executor {
	e := &Executor{
		invoker:        invoker,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		sleep:          sleepContext,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:         noop.NewTracerProvider().Tracer("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "executor")
	return e
}

// Execute runs the subtask's operation. An unregistered operation fails
// immediately without invoking anything. Otherwise the operation is invoked
// up to the attempt cap, stopping early on success, on a permanent failure,
// or when ctx ends.
func (e *Executor) Execute(ctx context.Context, st models.Subtask) Result {
	ctx, span := e.tracer.Start(ctx, "executor.Execute", trace.WithAttributes(
		attribute.String("kairo.subtask.id", st.ID),
		attribute.String("kairo.subtask.operation", st.Operation),
	))
	defer span.End()

	res := e.execute(ctx, st)

	span.SetAttributes(
		attribute.Int("kairo.subtask.attempts", res.Attempts),
		attribute.String("kairo.subtask.class", string(res.Class)),
	)
	if res.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, res.Error)
	}
	return res
}

func (e *Executor) execute(ctx context.Context, st models.Subtask) Result {
	if !e.invoker.Has(st.Operation) {
		return Result{
			Error: fmt.Sprintf("%s: %s", tools.ErrUnknownOperation, st.Operation),
			Class: ClassUnknownOperation,
		}
	}

	var last tools.Result
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Error: err.Error(), Attempts: attempt - 1, Class: ClassCancelled}
		}

		last = e.invoker.Invoke(ctx, st.Operation, st.Parameters)
		if last.Success {
			return Result{Success: true, Output: last.Output, Attempts: attempt}
		}

		class := Classify(last.Error)
		if class == ClassPermanent {
			e.logger.Debug("permanent failure", "operation", st.Operation, "attempt", attempt, "error", last.Error)
			return Result{Output: last.Output, Error: last.Error, Attempts: attempt, Class: class}
		}
		if attempt == e.maxAttempts {
			break
		}

		delay := e.backoff(attempt)
		e.logger.Debug("transient failure, retrying",
			"operation", st.Operation, "attempt", attempt, "delay", delay, "error", last.Error)
		if err := e.sleep(ctx, delay); err != nil {
			return Result{Output: last.Output, Error: last.Error, Attempts: attempt, Class: ClassCancelled}
		}
	}

	return Result{Output: last.Output, Error: last.Error, Attempts: e.maxAttempts, Class: ClassTransient}
}

// backoff returns the delay after the given failed attempt:
// initial * 2^(attempt-1), capped at the maximum.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.maxBackoff {
			return e.maxBackoff
		}
	}
	if d > e.maxBackoff {
		return e.maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
