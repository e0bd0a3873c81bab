package requester

import (
	"net/http"
	"time"

	"github.com/luizaranda/requester/pkg/log"
)

// Option overrides one setting.
type Option func(*Settings)

// WithTimeout sets the total request timeout. Negative values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Settings) {
		if d >= 0 {
			s.Timeout = d
		}
	}
}

// WithMaxRedirects sets how many redirects are followed; 0 disables
// following.
func WithMaxRedirects(n int) Option {
	return func(s *Settings) {
		if n < 0 {
			n = 0
		}
		s.MaxRedirects = n
	}
}

// WithProxy routes requests through p. A nil p removes the proxy.
func WithProxy(p *ProxyConfig) Option {
	return func(s *Settings) {
		s.Proxy = p
	}
}

// WithSSLCA enables peer verification against the CA bundle at path. An
// empty path disables verification.
func WithSSLCA(path string) Option {
	return func(s *Settings) {
		s.SSLCA = StringPtr(path)
	}
}

// WithEncoding sets the Accept-Encoding value; "" accepts every supported
// encoding.
func WithEncoding(enc string) Option {
	return func(s *Settings) {
		s.Encoding = StringPtr(enc)
	}
}

func WithResponseType(t ResponseType) Option {
	return func(s *Settings) {
		s.ResponseType = t
	}
}

func WithFailOnError(fail bool) Option {
	return func(s *Settings) {
		s.FailOnError = fail
	}
}

// WithHTTPAuth authenticates requests as userPass ("user:password").
func WithHTTPAuth(userPass string, scheme AuthScheme) Option {
	return func(s *Settings) {
		s.Auth = &Credentials{UserPass: userPass, Scheme: scheme}
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Settings) {
		s.UserAgent = ua
	}
}

func WithLogger(l log.Logger) Option {
	return func(s *Settings) {
		s.Logger = l
	}
}

// WithTransport replaces the base transport, mostly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Settings) {
		s.Transport = rt
	}
}
