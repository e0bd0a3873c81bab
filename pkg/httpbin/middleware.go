package httpbin

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	otelcontrib "go.opentelemetry.io/contrib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/telemetry"
)

// Middleware wraps an http.Handler, as chi expects.
type Middleware func(http.Handler) http.Handler

const (
	_requestIDHeader = "x-request-id"
	_debugHeader     = "x-debug"
)

// Logger decorates the request context with the given logger, adding the
// request id and lowering the level to debug when asked by the x-debug
// header.
func Logger(logger log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Per request copy; assigning to logger would race.
			l := logger

			if r.Header.Get(_debugHeader) == "true" {
				l = l.WithLevel(log.DebugLevel)
			}

			if reqID := r.Header.Get(_requestIDHeader); reqID != "" {
				l = l.With(log.String("request_id", reqID))
			}

			next.ServeHTTP(w, r.WithContext(log.Context(r.Context(), l)))
		})
	}
}

// LogRequestConfig selects what LogRequest includes.
type LogRequestConfig struct {
	IncludeRequest  bool
	IncludeResponse bool
}

type teeResponseWriter struct {
	middleware.WrapResponseWriter
	buffer *bytes.Buffer
}

func (w *teeResponseWriter) Write(b []byte) (int, error) {
	w.buffer.Write(b)
	return w.WrapResponseWriter.Write(b)
}

// LogRequest logs the whole request and response at debug level.
func LogRequest(logger log.Logger, cfg LogRequestConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger.Level() != log.DebugLevel {
				next.ServeHTTP(w, r)
				return
			}

			var reqBuf *bytes.Buffer
			if cfg.IncludeRequest {
				reqBuf = bytes.NewBuffer(make([]byte, 0, max(r.ContentLength, 0)))

				origBody := r.Body
				defer origBody.Close()

				// The body is only captured as far as the handler reads it.
				r.Body = io.NopCloser(io.TeeReader(origBody, reqBuf))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			var resBuf *bytes.Buffer
			var writer http.ResponseWriter = ww
			if cfg.IncludeResponse {
				resBuf = bytes.NewBuffer(make([]byte, 0, 1024))
				writer = &teeResponseWriter{WrapResponseWriter: ww, buffer: resBuf}
			}

			next.ServeHTTP(writer, r)

			fields := []log.Field{
				log.String("method", r.Method),
				log.Stringer("url", r.URL),
				log.Int("status", statusOf(ww)),
			}

			if reqBuf != nil {
				fields = append(fields,
					log.Any("request_headers", r.Header),
					log.String("request_body", reqBuf.String()),
				)
			}

			if resBuf != nil {
				fields = append(fields,
					log.Any("response_headers", ww.Header()),
					log.String("response_body", resBuf.String()),
				)
			}

			logger.Debug("request handled", fields...)
		})
	}
}

// Telemetry starts a web transaction per request and records a count and a
// timing per route, tagged by method and status.
func Telemetry(tracer telemetry.Client) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.StartWebSpan(r.Context(), r.Method+" "+r.URL.Path, w, r)
			defer span.Finish()

			// The span may wrap w to record the response status.
			if spanWriter, ok := span.(http.ResponseWriter); ok {
				w = spanWriter
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(telemetry.Context(ctx, tracer)))
			recordRequest(tracer, statusOf(ww), time.Since(start), r.Method, routePattern(r))
		})
	}
}

func recordRequest(tracer telemetry.Client, status int, delta time.Duration, method, route string) {
	tags := []string{
		"status:" + strconv.Itoa(status),
		"status_class:" + strconv.Itoa(status/100) + "xx",
		"method:" + method,
		"handler:" + telemetry.SanitizeMetricTagValue(route),
	}

	tracer.Incr("requester.httpbin.request", tags)
	tracer.Timing("requester.httpbin.request.time", delta, tags)
}

// Panics recovers from handler panics, notifying them and answering 500.
func Panics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					err, ok := rvr.(error)
					if !ok {
						err = fmt.Errorf("%v", rvr)
					}

					log.Error(r.Context(), "panic recover", log.Err(err))

					tags := []string{
						"method:" + r.Method,
						"handler:" + telemetry.SanitizeMetricTagValue(routePattern(r)),
					}
					telemetry.Incr(r.Context(), "requester.httpbin.panic_recovered", tags)

					if txn := newrelic.FromContext(r.Context()); txn != nil {
						txn.NoticeError(err)
					}
					writeError(w, NewError(http.StatusInternalServerError, err.Error()))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

const (
	_tracerName          = "github.com/luizaranda/requester/pkg/httpbin"
	_instrumentationName = "github.com/luizaranda/requester"
	_durationMetricName  = "http.server.duration"
	_unitKey             = attribute.Key("unit")
)

// OtelConfig configures the OpenTelemetry middleware. Nil fields default to
// the global providers.
type OtelConfig struct {
	Propagator     propagation.TextMapPropagator
	Provider       trace.TracerProvider
	MetricProvider otelmetric.MeterProvider

	tracer         trace.Tracer
	durationMetric otelmetric.Int64Histogram
}

// OpenTelemetry traces incoming requests with server spans named after the
// route and records their duration.
func OpenTelemetry(cfg OtelConfig) Middleware {
	if cfg.Provider == nil {
		cfg.Provider = otel.GetTracerProvider()
	}

	if cfg.MetricProvider == nil {
		cfg.MetricProvider = otel.GetMeterProvider()
	}

	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}

	cfg.tracer = cfg.Provider.Tracer(
		_tracerName,
		trace.WithInstrumentationVersion(otelcontrib.Version()),
	)

	meter := cfg.MetricProvider.Meter(_instrumentationName)
	if metric, err := meter.Int64Histogram(_durationMetricName); err == nil {
		cfg.durationMetric = metric
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := time.Now()

			ctx := cfg.Propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			// chi resolves the route pattern only while routing, after the
			// mux middlewares ran; the span is renamed once it is known.
			ctx, span := cfg.tracer.Start(
				ctx, r.Method+" "+r.URL.Path,
				trace.WithAttributes(semconv.NetAttributesFromHTTPRequest("tcp", r)...),
				trace.WithAttributes(semconv.EndUserAttributesFromHTTPRequest(r)...),
				trace.WithAttributes(semconv.HTTPServerAttributesFromHTTPRequest("", "", r)...),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := routePattern(r)
			span.SetName(route)
			span.SetAttributes(semconv.HTTPRouteKey.String(route))

			status := statusOf(ww)
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
			spanStatus, spanMessage := semconv.SpanStatusFromHTTPStatusCode(status)
			span.SetStatus(spanStatus, spanMessage)

			if cfg.durationMetric == nil {
				return
			}

			attrs := semconv.HTTPServerMetricAttributesFromHTTPRequest("", r)
			attrs = append(attrs,
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPStatusCodeKey.Int(status),
				_unitKey.String("ms"),
			)
			cfg.durationMetric.Record(r.Context(), time.Since(t).Milliseconds(), otelmetric.WithAttributes(attrs...))
		})
	}
}

// routePattern returns the matched chi route, or the path when routing did
// not happen.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusOf defaults to 200 when the handler never wrote a header.
func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
