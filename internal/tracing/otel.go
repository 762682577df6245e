// Package tracing instruments the SDK's protocol layers with OTel spans.
//
// Tracing is dormant unless OTEL_EXPORTER_OTLP_ENDPOINT is set; without it
// every helper resolves to a no-op tracer and costs nothing on the wire
// paths.
package tracing

import (
	"context"
	"net/url"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "agentsdk"

var setup struct {
	once     sync.Once
	provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
}

// bootstrap wires the OTLP HTTP exporter when an endpoint is configured.
// Any setup failure falls back to the no-op provider; the SDK never refuses
// to run because a collector is missing.
func bootstrap() {
	setup.provider = noop.NewTracerProvider()

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return
	}

	host, insecure := splitEndpoint(endpoint)
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	ctx := context.Background()
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	setup.sdk = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	setup.provider = setup.sdk
	otel.SetTracerProvider(setup.provider)
}

// splitEndpoint extracts the host[:port] the exporter wants and whether the
// endpoint asked for plaintext. Bare host:port strings count as insecure,
// matching collector defaults for local development.
func splitEndpoint(endpoint string) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, true
	}
	return u.Host, u.Scheme != "https"
}

// Tracer returns a named tracer, initialising the provider on first use.
func Tracer(name string) trace.Tracer {
	setup.once.Do(bootstrap)
	return setup.provider.Tracer(name)
}

// Shutdown flushes buffered spans. Safe to call when tracing never started.
func Shutdown(ctx context.Context) error {
	if setup.sdk == nil {
		return nil
	}
	return setup.sdk.Shutdown(ctx)
}
