package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const retryInitialInterval = 200 * time.Millisecond

// Request builds and sends one GET request.
type Request interface {
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	// SetResult decodes a successful JSON body into result.
	SetResult(result any) Request
	Get(ctx context.Context, path string) (*Response, error)
}

// Response is the final answer, body already read.
type Response struct {
	StatusCode int
	Header     http.Header
	Attempts   int
	body       []byte
	result     any
}

// Body returns the raw body.
func (r *Response) Body() []byte { return r.body }

// String returns the body as text.
func (r *Response) String() string { return string(r.body) }

// IsSuccess reports a 2xx/3xx status.
func (r *Response) IsSuccess() bool { return r.StatusCode < http.StatusBadRequest }

// IsError reports a 4xx/5xx status.
func (r *Response) IsError() bool { return !r.IsSuccess() }

// Result returns the decoded body, nil when nothing was decoded.
func (r *Response) Result() any { return r.result }

type requestBuilder struct {
	client       *InstrumentedClient
	headers      map[string]string
	query        url.Values
	result       any
	errorHandler ResponseErrorHandler
	labels       []Label
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = make(url.Values)
	}
	r.query.Set(key, value)
	return r
}

func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

// Get sends the request. A 429 is retried when the client allows it; the
// error handler sees only the final response.
func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	c := r.client
	target := r.url(path)

	ctx, span := c.tracer.Start(ctx, "http.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.path", path),
			attribute.String("provider", c.provider),
		),
	)
	defer span.End()
	if c.logQuery && len(r.query) > 0 {
		span.SetAttributes(attribute.String("http.query", r.query.Encode()))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval

	attempts := 0
	resp, err := backoff.Retry(ctx, func() (*Response, error) {
		attempts++
		resp, err := r.send(ctx, target)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp.Attempts = attempts
		if resp.StatusCode == http.StatusTooManyRequests && attempts <= c.retries {
			return nil, fmt.Errorf("%s: rate limited", c.provider)
		}
		return resp, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.retries+1)))
	if err != nil {
		r.fail(ctx, span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int("http.attempts", resp.Attempts),
	)

	if r.result != nil && resp.IsSuccess() && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, r.result); err != nil {
			// Left to the caller: Result() stays nil.
			span.RecordError(err)
		} else {
			resp.result = r.result
		}
	}

	if r.errorHandler != nil {
		if err := r.errorHandler(resp.StatusCode, resp.body); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return resp, err
		}
	}
	if resp.IsError() {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

func (r *requestBuilder) send(ctx context.Context, target string) (*Response, error) {
	c := r.client

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		c.record(ctx, r.labels, 0, false, time.Since(start))
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	c.record(ctx, r.labels, httpResp.StatusCode, err == nil && httpResp.StatusCode < http.StatusBadRequest, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		body:       body,
	}, nil
}

func (r *requestBuilder) url(path string) string {
	full := path
	if base := r.client.baseURL; base != "" && !strings.HasPrefix(path, "http") {
		full = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return full
	}
	sep := "?"
	if strings.Contains(full, "?") {
		sep = "&"
	}
	return full + sep + r.query.Encode()
}

func (r *requestBuilder) fail(_ context.Context, span trace.Span, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
	span.SetStatus(codes.Error, err.Error())
}
