package requester

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/luizaranda/requester/pkg/transport"
	"github.com/luizaranda/requester/pkg/transport/httpclient"
)

// engine is the http.Client built from a Settings value.
type engine struct {
	client    *http.Client
	pooled    *transport.PooledTransport
	proxyHost string
}

func (e *engine) close() {
	if e != nil && e.pooled != nil {
		e.pooled.CloseIdleConnections()
	}
}

// newEngine translates s into an http.Client. It is the only place where
// settings meet net/http.
func newEngine(s Settings) (*engine, error) {
	auth, err := authDecorator(s.Auth)
	if err != nil {
		return nil, err
	}

	e := &engine{}
	base := s.Transport
	if base == nil {
		opts := []transport.Option{transport.OptionDisableCompression()}

		tlsCfg, err := tlsConfig(s.SSLCA)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.OptionTLSClientConfig(tlsCfg))

		if s.Proxy != nil {
			proxyOpt, host, err := proxyOption(s.Proxy)
			if err != nil {
				return nil, err
			}
			opts = append(opts, proxyOpt)
			e.proxyHost = host
		}

		e.pooled = transport.NewPooled("requester", opts...)
		base = e.pooled
	}

	e.client = httpclient.New(
		httpclient.WithTransport(base),
		httpclient.WithTimeout(s.Timeout),
		httpclient.WithMaxRedirects(s.MaxRedirects),
		httpclient.WithUserAgent(s.UserAgent),
		httpclient.WithAuth(auth),
		httpclient.WithRequestHook(recordRequestHook),
		httpclient.WithResponseHook(recordResponseHook),
	)
	return e, nil
}

func tlsConfig(sslCA *string) (*tls.Config, error) {
	if sslCA == nil || *sslCA == "" {
		return &tls.Config{InsecureSkipVerify: true}, nil
	}

	pem, err := os.ReadFile(*sslCA)
	if err != nil {
		return nil, newError(CodeSSLCACertBadFile, "error reading CA cert file "+*sslCA, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, newError(CodeSSLCACertBadFile, "no certificates found in "+*sslCA, nil)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func proxyOption(p *ProxyConfig) (transport.Option, string, error) {
	raw := p.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, "", newError(CodeCouldntResolveProxy, fmt.Sprintf("malformed proxy URL %q", p.URL), err)
	}

	user, pass, _ := strings.Cut(p.Auth, ":")
	hasAuth := p.Auth != ""

	switch {
	case hasAuth && strings.EqualFold(string(p.AuthMethod), string(ProxyAuthNTLM)):
		return transport.OptionNTLMProxy(u, user, pass), u.Hostname(), nil
	case hasAuth:
		u.User = url.UserPassword(user, pass)
	}
	return transport.OptionProxy(u), u.Hostname(), nil
}

func authDecorator(c *Credentials) (transport.RoundTripDecorator, error) {
	if c == nil {
		return nil, nil
	}

	user, pass, _ := strings.Cut(c.UserPass, ":")
	switch AuthScheme(strings.ToLower(string(c.Scheme))) {
	case "", AuthBasic:
		return transport.BasicAuthDecorator(user, pass), nil
	case AuthDigest:
		return transport.DigestAuthDecorator(user, pass), nil
	case AuthNTLM:
		return transport.NTLMAuthDecorator(user, pass), nil
	case AuthGSSNegotiate:
		return nil, newError(CodeNotBuiltIn, "GSS-Negotiate authentication is not supported", nil)
	default:
		return nil, newError(CodeNotBuiltIn, fmt.Sprintf("unknown authentication scheme %q", c.Scheme), nil)
	}
}
