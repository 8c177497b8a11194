package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

const exporterDialTimeout = 3 * time.Second

// transport returns "grpc" when a grpc endpoint is set, it wins over http.
func (c OtlpConnConfig) transport() string {
	if c.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

func (c OtlpConnConfig) spanExporter(ctx context.Context) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if c.transport() == "grpc" {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpointURL(c.GrpcEndpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		}
		if c.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(c.HttpEndpoint),
		otlptracehttp.WithHeaders(c.Headers),
	}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (c OtlpConnConfig) metricExporter(ctx context.Context) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	if c.transport() == "grpc" {
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		}
		if c.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(c.HttpEndpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	}
	if c.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

// sampler keeps every trace unless a ratio in (0, 1) is configured, scrape
// runs produce a span per page so long runs are usually sampled down.
func (c OtlpConfig) sampler() trace.Sampler {
	if c.TraceSampleRatio <= 0 || c.TraceSampleRatio >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(c.TraceSampleRatio))
}

func (c OtlpConfig) metricInterval() (time.Duration, error) {
	if c.MetricInterval == "" {
		return 15 * time.Second, nil
	}
	interval, err := time.ParseDuration(c.MetricInterval)
	if err != nil {
		return 0, fmt.Errorf("metric_interval: %w", err)
	}
	return interval, nil
}

func newTraceProvider(ctx context.Context, r *resource.Resource, c OtlpConfig) (*trace.TracerProvider, error) {
	exporter, err := c.Traces.spanExporter(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info(
		"trace exporter initialized",
		"transport", c.Traces.transport(),
		"headers", len(c.Traces.Headers) > 0,
	)
	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithSampler(c.sampler()),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, c OtlpConfig) (*metric.MeterProvider, error) {
	interval, err := c.metricInterval()
	if err != nil {
		return nil, err
	}
	exporter, err := c.Metrics.metricExporter(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info(
		"metric exporter initialized",
		"transport", c.Metrics.transport(),
		"interval", interval.String(),
	)
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
		metric.WithResource(r),
	), nil
}
