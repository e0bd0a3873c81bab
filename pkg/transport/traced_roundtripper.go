package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptrace"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/luizaranda/requester/pkg/telemetry"
	"github.com/luizaranda/requester/pkg/telemetry/tracing"
)

const (
	_metricRequest           = "requester.http.client.request.time"
	_metricDNS               = "requester.http.client.dns.time"
	_metricConnect           = "requester.http.client.tcp_connect.time"
	_metricTLSHandshake      = "requester.http.client.tls_handshake.time"
	_metricGotConn           = "requester.http.client.got_connection.time"
	_metricWroteRequest      = "requester.http.client.request_written.time"
	_metricFirstResponseByte = "requester.http.client.response_first_byte.time"
	_metricResponseRead      = "requester.http.client.response_fully_read.time"
)

// TraceDecorator returns a RoundTripDecorator recording a timing metric per
// round trip and a NewRelic external segment. With extended set it also
// records connection level timings and the time to read the whole body.
func TraceDecorator(extended bool) RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return &TracedRoundTripper{Transport: base, Extended: extended}
	}
}

// TracedRoundTripper instruments outgoing requests.
//
// Metrics go to the telemetry.Client in the request context and are tagged
// with the target id set through package tracing. The NewRelic segment is
// only recorded when the context carries a NewRelic transaction.
type TracedRoundTripper struct {
	Transport http.RoundTripper
	Extended  bool
}

func (t *TracedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	tags := commonTags(req)
	start := time.Now()

	// StartExternalSegment adds distributed tracing headers to req.
	req = cloneRequest(req)
	segment := newrelic.StartExternalSegment(nil, req)
	segment.Procedure = segmentProcedure(req)

	if t.Extended {
		req = req.WithContext(httptrace.WithClientTrace(ctx, clientTrace(ctx, tags, start)))
	}

	res, err := t.Transport.RoundTrip(req)
	if err != nil {
		segment.AddAttribute("error", err.Error())
	} else if t.Extended {
		res.Body = &errorReadCloser{
			ReadCloser: res.Body,
			onErr: func(readErr error) {
				if errors.Is(readErr, io.EOF) {
					readErr = nil
				}
				recordResponse(ctx, tags, start, _metricResponseRead, res, readErr)
			},
		}
	}
	segment.Response = res
	segment.End()

	recordResponse(ctx, tags, start, _metricRequest, res, err)

	return res, err
}

func commonTags(req *http.Request) []string {
	tags := []string{"method:" + strings.ToLower(req.Method)}
	if target := tracing.TargetID(req.Context()); target != "" {
		tags = append(tags, "target_id:"+telemetry.SanitizeMetricTagValue(target))
	}
	return tags
}

func segmentProcedure(req *http.Request) string {
	ctx := req.Context()
	if tmpl := tracing.EndpointTemplate(ctx); tmpl != "" {
		return req.Method + " " + tmpl
	}
	if target := tracing.TargetID(ctx); target != "" {
		return req.Method + " " + target
	}
	return req.Method + " " + req.URL.Host
}

func recordResponse(ctx context.Context, tags []string, start time.Time, metric string, res *http.Response, err error) {
	status, class := "error", "error"
	switch {
	case err == nil && res != nil:
		status = strconv.Itoa(res.StatusCode)
		class = strconv.Itoa(res.StatusCode/100) + "xx"
	case os.IsTimeout(err):
		status = "timeout"
	}

	recordTimeSince(ctx, metric, start, withTags(tags, "status:"+status, "status_class:"+class))
}

// clientTrace reports the stages of a round trip. Callbacks run in this order:
// GetConn, then DNS, connect and TLS for new connections, GotConn,
// WroteRequest and GotFirstResponseByte.
func clientTrace(ctx context.Context, tags []string, start time.Time) *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart time.Time

	return &httptrace.ClientTrace{
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		ConnectStart:      func(string, string) { connectStart = time.Now() },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		DNSDone: func(info httptrace.DNSDoneInfo) {
			recordTimeSince(ctx, _metricDNS, dnsStart, withTags(tags, statusTag(info.Err)))
		},
		ConnectDone: func(_, _ string, err error) {
			recordTimeSince(ctx, _metricConnect, connectStart, withTags(tags, statusTag(err)))
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			recordTimeSince(ctx, _metricTLSHandshake, tlsStart, withTags(tags, statusTag(err)))
		},
		GotConn: func(info httptrace.GotConnInfo) {
			recordTimeSince(ctx, _metricGotConn, start, withTags(tags,
				"reused:"+strconv.FormatBool(info.Reused),
				"was_idle:"+strconv.FormatBool(info.WasIdle)))
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			recordTimeSince(ctx, _metricWroteRequest, start, withTags(tags, statusTag(info.Err)))
		},
		GotFirstResponseByte: func() {
			recordTimeSince(ctx, _metricFirstResponseByte, start, tags)
		},
	}
}

func withTags(tags []string, extra ...string) []string {
	out := make([]string, 0, len(tags)+len(extra))
	return append(append(out, tags...), extra...)
}

func statusTag(err error) string {
	switch {
	case err == nil:
		return "status:ok"
	case os.IsTimeout(err):
		return "status:timeout"
	default:
		return "status:error"
	}
}

func recordTimeSince(ctx context.Context, metric string, start time.Time, tags []string) {
	if start.IsZero() {
		return
	}
	telemetry.Timing(ctx, metric, time.Since(start), tags)
}

// errorReadCloser calls onErr once with the first error returned by Read,
// io.EOF included.
type errorReadCloser struct {
	io.ReadCloser

	onErr func(error)
	done  bool
}

func (r *errorReadCloser) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !r.done {
		r.done = true
		r.onErr(err)
	}
	return n, err
}
