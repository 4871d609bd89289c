// Package observability wires the daemon's tracing, logging, and
// metrics using the OpenTelemetry SDK (traces/logs over OTLP-gRPC,
// bridged into log/slog) plus the Prometheus client for the metrics
// exposition endpoint. Every exported function is a safe no-op when
// Setup hasn't been called or was called with a zero Config, so
// instrumentation call sites never need a nil check.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config controls what observability backends Setup wires up. The
// zero value disables everything: Setup still succeeds, every
// exported function becomes a safe no-op.
type Config struct {
	// Service names this process in emitted traces/logs.
	Service string

	// TraceAddr is the OTLP-gRPC collector endpoint for traces
	// (e.g. "otel-collector:4317"). Empty disables tracing.
	TraceAddr string

	// LogAddr is the OTLP-gRPC collector endpoint for logs. Empty
	// disables the slog-to-OTLP bridge; logs still go to the
	// process's default slog handler either way.
	LogAddr string

	// Metrics enables the Prometheus-backed Recorder metrics.
	Metrics bool
}

var (
	mu             sync.Mutex
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	metricsOn      bool
)

// Setup initializes tracing/logging/metrics per cfg. Safe to call
// with a zero Config (everything stays disabled). Call Shutdown with
// the same ctx's parent before process exit to flush exporters.
func Setup(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	metricsOn = cfg.Metrics
	if cfg.Metrics {
		registerMetrics()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceNameOr(cfg.Service))),
	)
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	if cfg.TraceAddr != "" {
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.TraceAddr), otlptracegrpc.WithInsecure())
		if err != nil {
			return fmt.Errorf("observability: trace exporter: %w", err)
		}
		tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tracerProvider)
		tracer = tracerProvider.Tracer(serviceNameOr(cfg.Service))
	} else {
		tracer = nil
	}

	if cfg.LogAddr != "" {
		exp, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(cfg.LogAddr), otlploggrpc.WithInsecure())
		if err != nil {
			return fmt.Errorf("observability: log exporter: %w", err)
		}
		loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
			sdklog.WithResource(res),
		)
		handler := otelslog.NewHandler(serviceNameOr(cfg.Service), otelslog.WithLoggerProvider(loggerProvider))
		slog.SetDefault(slog.New(handler))
	}

	return nil
}

func serviceNameOr(name string) string {
	if name == "" {
		return "overlayd"
	}
	return name
}

// Shutdown flushes and stops every backend Setup started. Safe to
// call even if Setup was never called or disabled everything.
func Shutdown(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()

	if tracerProvider != nil {
		_ = tracerProvider.Shutdown(ctx)
		tracerProvider = nil
	}
	if loggerProvider != nil {
		_ = loggerProvider.Shutdown(ctx)
		loggerProvider = nil
	}
	tracer = nil
	metricsOn = false
}

// Enabled reports whether tracing is active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return tracer != nil
}

// MetricsEnabled reports whether the Prometheus Recorder metrics are
// active.
func MetricsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return metricsOn
}

// Span wraps an OpenTelemetry span with routing-domain helpers. The
// zero value (and any Span returned while tracing is disabled) is a
// safe no-op.
type Span struct {
	span    trace.Span
	onEnd   []func()
	onceEnd sync.Once
}

// Start begins a span named name, derived from ctx's parent if any.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	return StartWith(ctx, name)
}

// Option configures StartWith.
type Option func(*startConfig)

type startConfig struct {
	attrs   []attribute.KeyValue
	onStart []func()
	onEnd   []func()
}

// Attrs attaches attributes at span start.
func Attrs(attrs ...attribute.KeyValue) Option {
	return func(c *startConfig) { c.attrs = append(c.attrs, attrs...) }
}

// OnStart registers a callback invoked synchronously once the span
// has started.
func OnStart(fn func()) Option {
	return func(c *startConfig) { c.onStart = append(c.onStart, fn) }
}

// OnEnd registers a callback invoked synchronously when the span
// ends.
func OnEnd(fn func()) Option {
	return func(c *startConfig) { c.onEnd = append(c.onEnd, fn) }
}

// StartWith begins a span named name with the given options applied.
func StartWith(ctx context.Context, name string, opts ...Option) (context.Context, *Span) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	mu.Lock()
	t := tracer
	mu.Unlock()

	var raw trace.Span
	if t != nil {
		ctx, raw = t.Start(ctx, name, trace.WithAttributes(cfg.attrs...))
	} else {
		raw = trace.SpanFromContext(ctx) // noop span when tracing is off
	}

	s := &Span{span: raw, onEnd: cfg.onEnd}
	for _, fn := range cfg.onStart {
		fn()
	}
	return ctx, s
}

// End ends the span and runs every OnEnd callback exactly once.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.onceEnd.Do(func() {
		if s.span != nil {
			s.span.End()
		}
		for _, fn := range s.onEnd {
			fn()
		}
	})
}

// Error records err on the span and marks it failed. A nil err is a
// safe no-op (covers call sites that always call Error on a deferred
// error variable).
func (s *Span) Error(err error, msg string) {
	if s == nil || s.span == nil || err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, msg)
}

// Event records a point-in-time event on the span.
func (s *Span) Event(name string, attrs ...attribute.KeyValue) {
	if s == nil || s.span == nil {
		return
	}
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Set attaches attributes to the span.
func (s *Span) Set(attrs ...attribute.KeyValue) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(attrs...)
}

// Routing-domain attribute helpers. A hostname plays the role a media
// pipeline gives a track; a routing generation plays the role it gives
// a group; a path's hop count plays the role it gives a frame count.

// Destination tags the routing destination a span concerns.
func Destination(hostname string) attribute.KeyValue {
	return attribute.String("overlay.destination", hostname)
}

// RouteGeneration tags the Dijkstra/Bellman-Ford recompute generation
// a span belongs to.
func RouteGeneration(n int) attribute.KeyValue {
	return attribute.Int64("overlay.generation", int64(n))
}

// RouteGenerationSeq tags a specific update within a route generation.
// Shares RouteGeneration's key: both describe the same recompute, at
// different granularity.
func RouteGenerationSeq(n int) attribute.KeyValue {
	return attribute.Int64("overlay.generation", int64(n))
}

// HopCount tags the number of hops a resolved path covers.
func HopCount(n int) attribute.KeyValue {
	return attribute.Int64("overlay.hop_count", int64(n))
}

// Flood tags a link-state flood or DV broadcast round by reason or
// target.
func Flood(target string) attribute.KeyValue {
	return attribute.String("overlay.flood", target)
}

// NeighborCount tags how many direct neighbors a component currently
// tracks.
func NeighborCount(n int) attribute.KeyValue {
	return attribute.Int64("overlay.neighbor_count", int64(n))
}

// Str is a generic string attribute escape hatch for call sites with
// no dedicated helper above.
func Str(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Num is a generic integer attribute escape hatch.
func Num(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}
