package transport

import (
	"net/http"

	"github.com/Azure/go-ntlmssp"
)

// BasicAuthDecorator returns a RoundTripDecorator that sends user and
// password with Basic authentication on requests without an Authorization
// header.
func BasicAuthDecorator(user, password string) RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") == "" {
				req = cloneRequest(req)
				req.SetBasicAuth(user, password)
			}
			return base.RoundTrip(req)
		})
	}
}

// NTLMAuthDecorator returns a RoundTripDecorator negotiating NTLM (or
// Negotiate) when the server asks for it, and falling back to Basic
// authentication otherwise.
//
// NTLM authenticates the connection, so the underlying transport must keep
// connections alive between the handshake legs. A user of the form
// DOMAIN\user selects the domain.
func NTLMAuthDecorator(user, password string) RoundTripDecorator {
	basic := BasicAuthDecorator(user, password)
	return func(base http.RoundTripper) http.RoundTripper {
		return basic(ntlmssp.Negotiator{RoundTripper: base})
	}
}
