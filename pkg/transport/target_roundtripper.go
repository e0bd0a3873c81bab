package transport

import (
	"net/http"

	"github.com/luizaranda/requester/pkg/telemetry/tracing"
)

// TargetDecorator returns a RoundTripDecorator that labels requests with
// targetID for metrics, unless the request context already has one.
func TargetDecorator(targetID string) RoundTripDecorator {
	if targetID == "" {
		return nil
	}
	return func(base http.RoundTripper) http.RoundTripper {
		return &TargetRoundTripper{Transport: base, TargetID: targetID}
	}
}

// TargetRoundTripper tags handled requests with a target id.
type TargetRoundTripper struct {
	Transport http.RoundTripper
	TargetID  string
}

func (t *TargetRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if tracing.TargetID(req.Context()) == "" {
		req = req.WithContext(tracing.WithTargetID(req.Context(), t.TargetID))
	}
	return t.Transport.RoundTrip(req)
}
