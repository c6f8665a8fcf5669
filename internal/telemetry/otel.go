package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the tracer and meter providers Warden registers
// globally at startup. Neither has an exporter attached by default: the
// SDK accepts spans and metric readings either way, it just drops them
// until the caller attaches one via ProviderOption. This keeps the library
// usable out of the box in tests and short-lived CLI invocations, while
// letting a long-running deployment wire a real exporter without Warden
// needing to depend on any particular one.
type Providers struct {
	Tracer *sdktrace.TracerProvider
	Meter  *sdkmetric.MeterProvider
}

// ProviderOption customizes NewProviders.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	spanProcessors []sdktrace.SpanProcessor
	readers        []sdkmetric.Reader
}

// WithSpanProcessor attaches a span processor (and, through it, whatever
// exporter it wraps) to the tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) ProviderOption {
	return func(c *providerConfig) { c.spanProcessors = append(c.spanProcessors, sp) }
}

// WithMetricReader attaches a metric reader (and, through it, whatever
// exporter it wraps) to the meter provider.
func WithMetricReader(r sdkmetric.Reader) ProviderOption {
	return func(c *providerConfig) { c.readers = append(c.readers, r) }
}

// NewProviders builds a TracerProvider and MeterProvider tagged with
// serviceName, registers both as the process-global otel providers, and
// returns them so the caller can Shutdown on exit.
func NewProviders(ctx context.Context, serviceName string, opts ...ProviderOption) (*Providers, error) {
	cfg := providerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(attribute.String("service.name", serviceName)),
		sdkresource.WithFromEnv(),
	)
	if err != nil {
		return nil, err
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, sp := range cfg.spanProcessors {
		traceOpts = append(traceOpts, sdktrace.WithSpanProcessor(sp))
	}
	tp := sdktrace.NewTracerProvider(traceOpts...)

	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range cfg.readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return &Providers{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops both providers. Safe to call with a nil
// receiver's fields already shut down.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return p.Meter.Shutdown(ctx)
}

// Tracer returns a named tracer from the global provider, for use by
// callers that do not hold a *Providers reference directly (e.g. code
// constructed before NewProviders runs, relying on otel's global default
// until SetTracerProvider is called).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a named meter from the global provider, mirroring Tracer.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
