package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/luizaranda/requester/pkg/transport"
)

var _defaultTransport = transport.NewPooled("requester-default")

// DefaultTransport returns the transport used by New when none is given.
func DefaultTransport() *transport.PooledTransport {
	return _defaultTransport
}

// ErrTooManyRedirects is returned by the client when a response asks for
// more redirects than allowed.
var ErrTooManyRedirects = errors.New("too many redirects")

// CheckRedirectFunc is the signature of http.Client.CheckRedirect.
type CheckRedirectFunc func(req *http.Request, via []*http.Request) error

// NoRedirect makes the client return redirect responses as they are.
func NoRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// LimitRedirects follows at most max redirects and fails with
// ErrTooManyRedirects on the next one. A max of 0 or less is NoRedirect.
//
// Methods other than GET, HEAD and POST are kept on every hop together
// with their body; net/http would turn them into a bodyless GET on a 301,
// 302 or 303.
func LimitRedirects(max int) CheckRedirectFunc {
	if max <= 0 {
		return NoRedirect
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return fmt.Errorf("%w: maximum (%d) followed", ErrTooManyRedirects, max)
		}
		return keepMethod(req, via[0])
	}
}

func keepMethod(req, orig *http.Request) error {
	switch orig.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		return nil
	}
	if req.Method == orig.Method {
		return nil
	}

	req.Method = orig.Method
	if orig.GetBody == nil {
		return nil
	}

	body, err := orig.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	req.GetBody = orig.GetBody
	req.ContentLength = orig.ContentLength
	if ct := orig.Header.Get("Content-Type"); ct != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}
	return nil
}

type clientOptions struct {
	Timeout           time.Duration
	CheckRedirect     CheckRedirectFunc
	Transport         http.RoundTripper
	UserAgent         string
	TargetID          string
	Auth              transport.RoundTripDecorator
	ReqHooks          []transport.RequestHook
	ResHooks          []transport.ResponseHook
	EnableClientTrace bool
	DisableOTel       bool
}

// Option configures New.
type Option func(opts *clientOptions)

// WithTransport sets the base transport requests are executed with.
func WithTransport(t http.RoundTripper) Option {
	return func(o *clientOptions) {
		o.Transport = t
	}
}

// WithTimeout bounds the whole exchange, redirects and body read included.
// A timeout of 0 disables it; negative values are ignored.
func WithTimeout(t time.Duration) Option {
	return func(o *clientOptions) {
		if t >= 0 {
			o.Timeout = t
		}
	}
}

// WithMaxRedirects sets how many redirects are followed. See LimitRedirects.
func WithMaxRedirects(n int) Option {
	return func(o *clientOptions) {
		o.CheckRedirect = LimitRedirects(n)
	}
}

// WithUserAgent sets the User-Agent sent when the request has none.
func WithUserAgent(ua string) Option {
	return func(o *clientOptions) {
		o.UserAgent = ua
	}
}

// WithTargetID labels every request metric with id.
func WithTargetID(id string) Option {
	return func(o *clientOptions) {
		o.TargetID = id
	}
}

// WithAuth sets the decorator that authenticates requests, for example
// transport.DigestAuthDecorator. Authentication legs go through the hooks.
func WithAuth(auth transport.RoundTripDecorator) Option {
	return func(o *clientOptions) {
		o.Auth = auth
	}
}

// WithRequestHook adds hooks run before every round trip.
func WithRequestHook(hooks ...transport.RequestHook) Option {
	return func(o *clientOptions) {
		o.ReqHooks = append(o.ReqHooks, hooks...)
	}
}

// WithResponseHook adds hooks run after every round trip.
func WithResponseHook(hooks ...transport.ResponseHook) Option {
	return func(o *clientOptions) {
		o.ResHooks = append(o.ResHooks, hooks...)
	}
}

// WithEnableClientTrace records connection level timings.
func WithEnableClientTrace() Option {
	return func(o *clientOptions) {
		o.EnableClientTrace = true
	}
}

// WithoutOpenTelemetry drops the OpenTelemetry span decorator.
func WithoutOpenTelemetry() Option {
	return func(o *clientOptions) {
		o.DisableOTel = true
	}
}

// DefaultTimeout is the timeout of clients built by New.
var DefaultTimeout = 30 * time.Second

// New builds an *http.Client that follows no redirects by default and
// records telemetry on every request.
func New(opts ...Option) *http.Client {
	config := clientOptions{
		Timeout:       DefaultTimeout,
		CheckRedirect: NoRedirect,
		Transport:     DefaultTransport(),
	}

	for _, opt := range opts {
		opt(&config)
	}

	return &http.Client{
		Timeout:       config.Timeout,
		CheckRedirect: config.CheckRedirect,
		Transport:     roundTripper(&config),
	}
}

// roundTripper assembles the chain, outermost first:
//
//	user agent -> request id -> target -> auth -> hooks -> metrics -> otel -> base
//
// Hooks sit below auth so each authentication leg is observed.
func roundTripper(config *clientOptions) http.RoundTripper {
	chain := transport.RoundTripChain{
		transport.UserAgentDecorator(config.UserAgent),
		transport.RequestIDDecorator(),
		transport.TargetDecorator(config.TargetID),
		config.Auth,
		transport.HookDecorator(config.ReqHooks, config.ResHooks),
		transport.TraceDecorator(config.EnableClientTrace),
	}

	if !config.DisableOTel {
		chain = append(chain, transport.OpenTelemetryDecorator())
	}

	return chain.Apply(config.Transport)
}
