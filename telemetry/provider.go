package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig selects the OTLP exporter. Empty fields fall back to the
// standard OTEL_* environment variables.
type ProviderConfig struct {
	ServiceName    string // default OTEL_SERVICE_NAME, then "todokit"
	ServiceVersion string

	// Endpoint is host:port; a scheme prefix is stripped.
	Endpoint string
	Protocol string // "grpc" (default) or "http"
	Insecure bool
	Headers  map[string]string

	// Debug records store keys on spans.
	Debug bool

	// SampleRatio is the share of root traces kept. Values outside (0, 1]
	// mean 1.
	SampleRatio float64

	BatchTimeout  time.Duration
	ExportTimeout time.Duration
}

var errNoEndpoint = errors.New("no OTLP endpoint (set telemetry.endpoint or OTEL_EXPORTER_OTLP_ENDPOINT)")

func (cfg ProviderConfig) resolve() (ProviderConfig, error) {
	cfg.Endpoint = firstNonEmpty(cfg.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	for _, scheme := range []string{"http://", "https://"} {
		cfg.Endpoint = strings.TrimPrefix(cfg.Endpoint, scheme)
	}
	cfg.ServiceName = firstNonEmpty(cfg.ServiceName, os.Getenv("OTEL_SERVICE_NAME"), "todokit")
	cfg.Protocol = firstNonEmpty(cfg.Protocol, "grpc")

	switch cfg.Protocol {
	case "grpc", "http":
	default:
		return cfg, fmt.Errorf("telemetry protocol %q: want grpc or http", cfg.Protocol)
	}
	if !(cfg.SampleRatio > 0 && cfg.SampleRatio <= 1) {
		cfg.SampleRatio = 1
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Enabled reports whether InitProvider would find an endpoint.
func (cfg ProviderConfig) Enabled() bool {
	resolved, err := cfg.resolve()
	return err == nil && resolved.Endpoint != ""
}

// Provider owns the SDK tracer provider behind the global Tracer.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer *Tracer
}

// InitProvider builds an OTLP pipeline, installs it as the global tracer
// and W3C propagator, and returns it. Call Shutdown to flush.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	cfg, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		return nil, errNoEndpoint
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry exporter: %w", err)
	}

	var batching []sdktrace.BatchSpanProcessorOption
	if cfg.BatchTimeout > 0 {
		batching = append(batching, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp, batching...),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	p := &Provider{sdk: sdk, tracer: NewTracerFromProvider(sdk, cfg.ServiceName, cfg.Debug)}
	SetGlobalTracer(p.tracer)
	return p, nil
}

func newExporter(ctx context.Context, cfg ProviderConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		if cfg.ExportTimeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(cfg.ExportTimeout))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		if cfg.ExportTimeout > 0 {
			opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

func (p *Provider) Tracer() *Tracer { return p.tracer }

// Shutdown detaches the global tracer, then flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	SetGlobalTracer(nil)
	return p.sdk.Shutdown(ctx)
}

func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.sdk.ForceFlush(ctx)
}
