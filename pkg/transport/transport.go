package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

var (
	// DefaultDialTimeout bounds the TCP handshake.
	DefaultDialTimeout = 10 * time.Second

	// DefaultKeepAliveProbeInterval is the interval between TCP keep-alive
	// probes.
	DefaultKeepAliveProbeInterval = 15 * time.Second
)

// An Option configures a http.Transport.
type Option interface {
	applyTransport(*http.Transport)
	applyDialer(*net.Dialer)
}

type transportOptFunc func(*http.Transport)

func (f transportOptFunc) applyTransport(t *http.Transport) { f(t) }
func (f transportOptFunc) applyDialer(*net.Dialer)          {}

type dialerOptFunc func(*net.Dialer)

func (f dialerOptFunc) applyTransport(*http.Transport) {}
func (f dialerOptFunc) applyDialer(d *net.Dialer)      { f(d) }

// OptionDialTimeout sets the timeout of the transport's net.Dialer.
func OptionDialTimeout(timeout time.Duration) Option {
	return dialerOptFunc(func(d *net.Dialer) {
		d.Timeout = timeout
	})
}

// OptionResponseHeaderTimeout sets the ResponseHeaderTimeout of the transport.
func OptionResponseHeaderTimeout(timeout time.Duration) Option {
	return transportOptFunc(func(t *http.Transport) {
		t.ResponseHeaderTimeout = timeout
	})
}

// OptionTLSClientConfig sets the TLSClientConfig of the transport.
func OptionTLSClientConfig(config *tls.Config) Option {
	return transportOptFunc(func(t *http.Transport) {
		t.TLSClientConfig = config
	})
}

// OptionProxy routes every request through proxyURL. Credentials in the URL
// user info are sent with Basic proxy authentication. A nil URL disables
// proxying, including proxies from the environment.
func OptionProxy(proxyURL *url.URL) Option {
	return transportOptFunc(func(t *http.Transport) {
		if proxyURL == nil {
			t.Proxy = nil
			return
		}
		t.Proxy = http.ProxyURL(proxyURL)
	})
}

// OptionNTLMProxy tunnels every connection through proxyURL with CONNECT,
// authenticating with NTLM as user. See NTLMProxyDialer.
func OptionNTLMProxy(proxyURL *url.URL, user, password string) Option {
	return transportOptFunc(func(t *http.Transport) {
		dial := t.DialContext
		if dial == nil {
			dial = (&net.Dialer{}).DialContext
		}
		t.Proxy = nil
		t.DialContext = NTLMProxyDialer(dial, proxyURL, user, password)
	})
}

// OptionDisableCompression stops the transport from requesting gzip on its
// own and from transparently decoding responses.
func OptionDisableCompression() Option {
	return transportOptFunc(func(t *http.Transport) {
		t.DisableCompression = true
	})
}

// OptionDialContext replaces the transport's dial function.
func OptionDialContext(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return transportOptFunc(func(t *http.Transport) {
		t.DialContext = dial
	})
}

// NewTransport returns a keep-alive http.Transport honoring proxies from the
// environment, customized with opts.
func NewTransport(opts ...Option) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveProbeInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   100,
		Proxy:                 http.ProxyFromEnvironment,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	}

	for _, opt := range opts {
		opt.applyDialer(dialer)
		opt.applyTransport(transport)
	}

	return transport
}
