package transport

import (
	"net/http"

	"github.com/luizaranda/requester/pkg/internal"
)

// DefaultUserAgent is sent when neither the request nor the decorator
// provide one.
var DefaultUserAgent = "requester-go/" + internal.Version

// UserAgentDecorator returns a RoundTripDecorator that sets the User-Agent
// header to ua, or DefaultUserAgent when ua is empty.
func UserAgentDecorator(ua string) RoundTripDecorator {
	if ua == "" {
		ua = DefaultUserAgent
	}
	return func(base http.RoundTripper) http.RoundTripper {
		return &UserAgentRoundTripper{Transport: base, UserAgent: ua}
	}
}

// UserAgentRoundTripper sets a User-Agent only if the request carries none.
type UserAgentRoundTripper struct {
	Transport http.RoundTripper
	UserAgent string
}

func (ua *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = cloneRequest(req)
		req.Header.Set("User-Agent", ua.UserAgent)
	}
	return ua.Transport.RoundTrip(req)
}

// cloneRequest returns a shallow copy of req with its own Header, so that
// decorators never mutate the caller's request.
func cloneRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = req.Header.Clone()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r
}
