package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const (
	// DefaultServiceName is reported when the configuration leaves it empty.
	DefaultServiceName = "ledgerd"
	// DefaultEndpoint is the local OTLP/HTTP collector.
	DefaultEndpoint = "localhost:4318"

	metricInterval = 15 * time.Second
	spanBatchDelay = 2 * time.Second
)

var ErrSampleRatio = errors.New("otel: sample ratio must be within [0,1]")

// Config selects which ledger signals are exported and where.
type Config struct {
	ServiceName string
	Environment string
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	Metrics     bool
	Traces      bool
	// SampleRatio is the fraction of root batches traced. Zero traces all.
	SampleRatio float64
}

func (c Config) normalized() (Config, error) {
	if c.ServiceName = strings.TrimSpace(c.ServiceName); c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Endpoint = strings.TrimSpace(c.Endpoint); c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return c, fmt.Errorf("%w: %v", ErrSampleRatio, c.SampleRatio)
	}
	return c, nil
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio == 0 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// ShutdownFunc flushes and stops every provider installed by Init.
type ShutdownFunc func(context.Context) error

// Init installs the global providers read by the batch executor spans. The
// returned function must run during daemon teardown.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	res, err := ledgerResource(cfg)
	if err != nil {
		return nil, err
	}

	var chain shutdownChain
	if cfg.Traces {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		chain = append(chain, tp.Shutdown)
	}
	if cfg.Metrics {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			_ = chain.shutdown(ctx)
			return nil, err
		}
		otel.SetMeterProvider(mp)
		chain = append(chain, mp.Shutdown)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return chain.shutdown, nil
}

func ledgerResource(cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(cfg.ServiceName)}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(cfg.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel: build resource: %w", err)
	}
	return res, nil
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(spanBatchDelay)),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otel: metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricInterval))),
	), nil
}

// shutdownChain stops providers in reverse installation order and reports the
// first failure.
type shutdownChain []func(context.Context) error

func (c shutdownChain) shutdown(ctx context.Context) error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ParseHeaders turns "key=value,foo=bar" into exporter headers. Malformed
// pairs are skipped.
func ParseHeaders(raw string) map[string]string {
	headers := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}
