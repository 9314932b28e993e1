package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type clientOptions struct {
	provider  string
	baseURL   string
	headers   map[string]string
	timeout   time.Duration
	transport http.RoundTripper
	tracer    trace.Tracer
	retries   int
	logQuery  bool
}

// ClientOption configures an InstrumentedClient.
type ClientOption func(*clientOptions)

func newClientOptions(opts ...ClientOption) clientOptions {
	o := clientOptions{provider: "default", timeout: defaultRequestTimeout}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithProviderName names the upstream in spans and metrics.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) {
		if name != "" {
			o.provider = name
		}
	}
}

// WithBaseURL sets the URL that request paths are joined to.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

// WithRequestTimeout bounds each attempt.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithTransport replaces the base transport. otelhttp still wraps it.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

// WithTracer sets the tracer. logQuery adds the encoded query string to
// the request span.
func WithTracer(tracer trace.Tracer, logQuery bool) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
		o.logQuery = logQuery
	}
}

// WithRateLimitRetries retries a 429 answer up to n more times with
// exponential backoff. Other statuses are never retried.
func WithRateLimitRetries(n int) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.retries = n
		}
	}
}

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []Label
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

func newRequestOptions(opts ...RequestOption) requestOptions {
	var o requestOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// ResponseErrorHandler turns a final status and body into an error, or nil
// to accept the response.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler sets the handler for the final response.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

// Label is an extra metric attribute.
type Label struct {
	Key   string
	Value string
}

// WithLabels adds metric attributes to the request.
func WithLabels(labels ...Label) RequestOption {
	return func(o *requestOptions) { o.labels = append(o.labels, labels...) }
}
