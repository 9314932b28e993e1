// Package httpclient provides the traced, metered HTTP transport used for
// third-party JSON APIs such as the swap quote service.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 4
	defaultIdleConnTimeout = 90 * time.Second

	metricRequests        = "http_client_requests_total"
	metricRequestDuration = "http_client_request_duration_ms"
)

// Client builds requests against one upstream.
type Client interface {
	NewRequest(opts ...RequestOption) Request
}

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentedClient is an http.Client whose transport is wrapped with
// otelhttp. Every request gets a span and is counted per provider.
type InstrumentedClient struct {
	http     *http.Client
	provider string
	baseURL  string
	headers  map[string]string
	tracer   trace.Tracer
	metrics  clientMetrics
	retries  int
	logQuery bool
}

// NewInstrumentedClient creates a client for one upstream.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	o := newClientOptions(opts...)

	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			DialContext:         (&net.Dialer{KeepAlive: 30 * time.Second}).DialContext,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			TLSHandshakeTimeout: 5 * time.Second,
		}
	}

	meter := otel.GetMeterProvider().Meter(
		"httpclient",
		metric.WithInstrumentationAttributes(attribute.String("provider", o.provider)),
	)
	requests, err := meter.Int64Counter(metricRequests,
		metric.WithDescription("HTTP requests sent, by outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(metricRequestDuration,
		metric.WithDescription("HTTP round trip latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("httpclient")
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: o.timeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		provider: o.provider,
		baseURL:  o.baseURL,
		headers:  o.headers,
		tracer:   tracer,
		metrics:  clientMetrics{requests: requests, duration: duration},
		retries:  o.retries,
		logQuery: o.logQuery,
	}, nil
}

// NewRequest starts a request carrying the client's default headers.
func (c *InstrumentedClient) NewRequest(opts ...RequestOption) Request {
	ro := newRequestOptions(opts...)

	headers := make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	return &requestBuilder{
		client:       c,
		headers:      headers,
		errorHandler: ro.errorHandler,
		labels:       ro.labels,
	}
}

func (c *InstrumentedClient) record(ctx context.Context, labels []Label, status int, ok bool, elapsed time.Duration) {
	attrs := make([]attribute.KeyValue, 0, len(labels)+3)
	attrs = append(attrs,
		attribute.String("provider", c.provider),
		attribute.Bool("success", ok),
		attribute.Int("status_code", status),
	)
	for _, l := range labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	set := metric.WithAttributes(attrs...)
	c.metrics.requests.Add(ctx, 1, set)
	c.metrics.duration.Record(ctx, float64(elapsed.Milliseconds()), set)
}
