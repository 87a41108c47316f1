package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rampede/rampede/internal/outcome"
	"github.com/rampede/rampede/internal/tracing"
)

// Dispatcher issues one logical request against the target and normalizes
// the result into an outcome record. Implementations never fail outward:
// transport errors, timeouts and cancellations all come back as a Record
// with outcome.StatusNone and the latency up to the failure point.
type Dispatcher interface {
	Dispatch(ctx context.Context, spec *RequestSpec) outcome.Record
}

// HTTPDispatcher drives the spec over a shared *http.Client.
type HTTPDispatcher struct {
	client *http.Client
}

func NewHTTPDispatcher(client *http.Client) *HTTPDispatcher {
	if client == nil {
		client = NewClient(0)
	}
	return &HTTPDispatcher{client: client}
}

// Dispatch performs exactly one network call. Cancelling ctx mid-flight
// makes the underlying transport abandon the call promptly; the record then
// carries the elapsed time up to that point.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, spec *RequestSpec) outcome.Record {
	start := time.Now()

	req, err := spec.NewRequest(ctx)
	if err != nil {
		return outcome.Record{
			Status:  outcome.StatusNone,
			Latency: time.Since(start),
			ErrKind: outcome.ErrKindFor(err),
		}
	}

	// Inert unless a propagator is installed and a span rides in ctx.
	tracing.InjectHTTPHeaders(ctx, req.Header)

	resp, err := d.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return outcome.Record{
			Status:  outcome.StatusNone,
			Latency: latency,
			ErrKind: outcome.ErrKindFor(err),
		}
	}
	defer resp.Body.Close()

	// Drain so the connection is reusable.
	_, _ = io.Copy(io.Discard, resp.Body)

	return outcome.Record{Status: resp.StatusCode, Latency: latency}
}

// FailureLogger logs dispatches that produced no response.
type FailureLogger interface {
	LogFailure(rec outcome.Record)
}

type loggingDispatcher struct {
	inner  Dispatcher
	logger FailureLogger
}

// WithLogging wraps a Dispatcher to log no-response outcomes.
func WithLogging(d Dispatcher, logger FailureLogger) Dispatcher {
	if logger == nil {
		return d
	}
	return &loggingDispatcher{inner: d, logger: logger}
}

func (l *loggingDispatcher) Dispatch(ctx context.Context, spec *RequestSpec) outcome.Record {
	rec := l.inner.Dispatch(ctx, spec)
	if rec.Status == outcome.StatusNone {
		l.logger.LogFailure(rec)
	}
	return rec
}

type tracingDispatcher struct {
	inner  Dispatcher
	tracer trace.Tracer
}

// WithTracing wraps a Dispatcher so every dispatch runs under its own client
// span, parented to whatever span rides in ctx.
func WithTracing(d Dispatcher, tracer trace.Tracer) Dispatcher {
	if tracer == nil {
		return d
	}
	return &tracingDispatcher{inner: d, tracer: tracer}
}

func (t *tracingDispatcher) Dispatch(ctx context.Context, spec *RequestSpec) outcome.Record {
	ctx, span := tracing.StartDispatchSpan(ctx, t.tracer, spec.Method, spec.URL)
	rec := t.inner.Dispatch(ctx, spec)

	var err error
	attrs := []attribute.KeyValue{}
	if rec.Status == outcome.StatusNone {
		kind := rec.ErrKind
		if kind == "" {
			kind = "no response"
		}
		err = errors.New(kind)
	} else {
		attrs = append(attrs, attribute.Int("http.status_code", rec.Status))
	}
	tracing.EndSpan(span, err, attrs...)
	return rec
}

// NewClient builds the HTTP client every dispatch of a run shares. The
// transport keeps enough idle connections around for high-rate levels to
// reuse instead of redialing.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
