// Package metrics configures the otel meter provider and serves the
// Prometheus scrape endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

const defaultPushInterval = 30 * time.Second

// Config selects the metric readers. Prometheus and OTLP may both be on.
type Config struct {
	ServiceName string
	Prometheus  bool
	// Registry receives the Prometheus collector. Nil uses the default
	// registry, which Handler serves.
	Registry *prometheus.Registry
	OTLP     *OTLPConfig
}

// OTLPConfig pushes metrics to a collector over gRPC.
type OTLPConfig struct {
	Endpoint string
	Headers  map[string]string
	Insecure bool
	Interval time.Duration
}

// Provider owns the meter provider and its scrape handler.
type Provider struct {
	mp       *sdkmetric.MeterProvider
	gatherer prometheus.Gatherer
}

// New builds the meter provider and installs it globally.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []sdkmetric.Option
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer

	if cfg.Prometheus {
		var promOpts []otelprom.Option
		if cfg.Registry != nil {
			promOpts = append(promOpts, otelprom.WithRegisterer(cfg.Registry))
			gatherer = cfg.Registry
		}
		exp, err := otelprom.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(exp))
	}

	if cfg.OTLP != nil {
		grpcOpts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(cfg.OTLP.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.OTLP.Headers),
		}
		if cfg.OTLP.Insecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		interval := cfg.OTLP.Interval
		if interval <= 0 {
			interval = defaultPushInterval
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval)),
		))
	}

	if cfg.ServiceName != "" {
		opts = append(opts, sdkmetric.WithResource(
			resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
		))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	return &Provider{mp: mp, gatherer: gatherer}, nil
}

// Meter returns a named meter from this provider.
func (p *Provider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return p.mp.Meter(name, opts...)
}

// Handler serves this provider's Prometheus registry.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Shutdown flushes pending exports.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
