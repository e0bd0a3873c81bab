package transport

import (
	"net/http"
)

// HookDecorator returns a RoundTripDecorator that runs req before and res
// after every round trip.
func HookDecorator(req []RequestHook, res []ResponseHook) RoundTripDecorator {
	if len(req) == 0 && len(res) == 0 {
		return nil
	}
	return func(base http.RoundTripper) http.RoundTripper {
		return &HookRoundTripper{
			Transport:    base,
			RequestHook:  req,
			ResponseHook: res,
		}
	}
}

// RequestHook runs before a request is sent. Returning an error aborts the
// round trip with that error.
//
// Only the request context and headers are safe to modify.
type RequestHook func(*http.Request) error

// ResponseHook runs after every round trip, with either a response or the
// round trip error.
//
// Reading or closing the response body affects what the caller receives.
type ResponseHook func(*http.Request, *http.Response, error)

// HookRoundTripper is a http.RoundTripper calling hooks around the wrapped
// Transport. Hooks run in the order they were given.
type HookRoundTripper struct {
	Transport    http.RoundTripper
	RequestHook  []RequestHook
	ResponseHook []ResponseHook
}

func (t *HookRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, hook := range t.RequestHook {
		if err := hook(req); err != nil {
			return nil, err
		}
	}

	res, err := t.Transport.RoundTrip(req)

	for _, hook := range t.ResponseHook {
		hook(req, res, err)
	}

	return res, err
}
