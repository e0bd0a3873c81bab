package requester

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luizaranda/requester/pkg/log"
)

// ResponseType selects what Execute returns.
type ResponseType string

const (
	// ResponseRaw returns the body only (the header blob for HEAD).
	ResponseRaw ResponseType = "raw"
	// ResponseStructured returns status, headers, body and allow list.
	ResponseStructured ResponseType = "structured"
)

// ParseResponseType accepts "raw", "structured" and its alias "array".
func ParseResponseType(s string) (ResponseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ResponseRaw):
		return ResponseRaw, nil
	case string(ResponseStructured), "array":
		return ResponseStructured, nil
	default:
		return "", fmt.Errorf("unknown response type %q", s)
	}
}

// AuthScheme is an HTTP authentication scheme.
type AuthScheme string

const (
	AuthBasic        AuthScheme = "basic"
	AuthDigest       AuthScheme = "digest"
	AuthNTLM         AuthScheme = "ntlm"
	AuthGSSNegotiate AuthScheme = "gss-negotiate"
)

// Credentials authenticate requests against the target server.
type Credentials struct {
	// UserPass is "user:password". Everything after the first colon is the
	// password.
	UserPass string
	// Scheme defaults to AuthBasic.
	Scheme AuthScheme
}

// ProxyAuthMethod is the authentication used against a proxy.
type ProxyAuthMethod string

const (
	ProxyAuthBasic ProxyAuthMethod = "BASIC"
	ProxyAuthNTLM  ProxyAuthMethod = "NTLM"
)

// ProxyConfig routes requests through a proxy.
type ProxyConfig struct {
	// URL of the proxy, e.g. "http://proxy:3128". A missing scheme means http.
	URL string
	// Auth is an optional "user:password".
	Auth string
	// AuthMethod defaults to ProxyAuthBasic.
	AuthMethod ProxyAuthMethod
}

// Settings configure a Requester. The zero value of each field means "not
// configured"; use DefaultSettings for the documented defaults.
type Settings struct {
	// Timeout bounds the whole request, redirects and body included. Zero
	// means no timeout.
	Timeout time.Duration

	// MaxRedirects is the number of redirects followed. Zero disables
	// following redirects.
	MaxRedirects int

	Proxy *ProxyConfig

	// SSLCA controls TLS peer verification: nil or "" disables it, a path
	// enables it with the PEM bundle at that path as trusted roots.
	SSLCA *string

	// Encoding is the Accept-Encoding request value. nil sends none and never
	// decodes, "" asks for every supported encoding. Responses are decoded
	// when it is set.
	Encoding *string

	ResponseType ResponseType

	// FailOnError turns responses with a status of 400 or above into an
	// *Error with CodeHTTPReturnedError.
	FailOnError bool

	Auth *Credentials

	// UserAgent overrides the default "requester-go/<version>".
	UserAgent string

	// Logger defaults to the logger carried by the request context.
	Logger log.Logger

	// Transport replaces the pooled base transport. Proxy and TLS settings
	// are not applied to it.
	Transport http.RoundTripper
}

// DefaultSettings returns the defaults every Requester starts from: a 30
// second timeout, up to 3 redirects, no TLS peer verification, failures
// only on transport errors and raw responses.
func DefaultSettings() Settings {
	return Settings{
		Timeout:      30 * time.Second,
		MaxRedirects: 3,
		ResponseType: ResponseRaw,
	}
}

// StringPtr returns a pointer to s, for SSLCA and Encoding.
func StringPtr(s string) *string { return &s }
