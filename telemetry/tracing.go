package telemetry

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer opens the two kinds of span the ledger emits: one server span per
// RPC operation and one client span per store call.
type Tracer struct {
	tracer trace.Tracer
	debug  bool
}

var global atomic.Pointer[Tracer]

// SetGlobalTracer installs t; nil restores the no-op tracer.
func SetGlobalTracer(t *Tracer) { global.Store(t) }

// GetTracer never returns nil.
func GetTracer() *Tracer {
	if t := global.Load(); t != nil {
		return t
	}
	return NoopTracer()
}

func NoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// NewTracerFromProvider names the instrumentation scope. With debug set,
// store spans carry the record key.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{tracer: tp.Tracer(name), debug: debug}
}

func (t *Tracer) SetDebug(debug bool) { t.debug = debug }

// StartOperationSpan opens ledger.<op> for account.
func (t *Tracer) StartOperationSpan(ctx context.Context, op, account string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "ledger."+op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ledger.operation", op),
			attribute.String("ledger.account", account),
		))
}

// EndOperationSpan records code. Not found and duplicate outcomes are
// answers, not failures; only 5xx codes mark the span as an error.
func (t *Tracer) EndOperationSpan(span trace.Span, code int, err error) {
	span.SetAttributes(attribute.Int("ledger.status", code))
	if code < 500 {
		err = nil
	}
	finish(span, err)
}

// StartStoreSpan opens store.<op>.
func (t *Tracer) StartStoreSpan(ctx context.Context, op, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("store.operation", op)}
	if t.debug && key != "" {
		attrs = append(attrs, attribute.String("store.key", key))
	}
	return t.tracer.Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func (t *Tracer) EndStoreSpan(span trace.Span, err error) { finish(span, err) }

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectContext writes the span context of ctx into carrier, e.g. event
// headers.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext is the inverse of InjectContext.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// MapCarrier adapts a plain map to propagation.TextMapCarrier.
type MapCarrier map[string]string

func (c MapCarrier) Get(key string) string { return c[key] }
func (c MapCarrier) Set(key, value string) { c[key] = value }

func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
