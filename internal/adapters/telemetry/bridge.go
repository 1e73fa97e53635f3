package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/jit/internal/core/ports"
)

// Bridge implements sdktrace.SpanProcessor by writing finished spans to a
// logger at debug level.
type Bridge struct {
	logger ports.Logger
}

// NewBridge returns a new Bridge.
func NewBridge(logger ports.Logger) *Bridge {
	return &Bridge{logger: logger}
}

// OnStart does nothing.
func (b *Bridge) OnStart(_ context.Context, _ sdktrace.ReadWriteSpan) {}

// OnEnd logs the span name, its duration and its attributes.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.logger == nil || !s.SpanContext().IsValid() {
		return
	}

	args := []any{"duration", s.EndTime().Sub(s.StartTime())}
	for _, kv := range s.Attributes() {
		args = append(args, string(kv.Key), kv.Value.Emit())
	}
	if s.Status().Code == codes.Error {
		args = append(args, "error", s.Status().Description)
	}
	b.logger.Debug(s.Name(), args...)
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

// Install registers a global tracer provider that reports every span to
// logger. The returned func shuts the provider down.
func Install(logger ports.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(NewBridge(logger)))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
