package transport

import (
	"net/http"

	"github.com/gofrs/uuid"
)

// RequestIDHeader is the header carrying the request identifier.
const RequestIDHeader = "X-Request-Id"

// RequestIDDecorator returns a RoundTripDecorator that tags each outgoing
// request lacking an X-Request-Id with a random UUID.
func RequestIDDecorator() RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(RequestIDHeader) != "" {
				return base.RoundTrip(req)
			}

			id, err := uuid.NewV4()
			if err != nil {
				return nil, err
			}
			req = cloneRequest(req)
			req.Header.Set(RequestIDHeader, id.String())
			return base.RoundTrip(req)
		})
	}
}
