// Package transport contains http.RoundTripper decorators and the pooled base
// transport requests are executed with.
package transport

import (
	"net/http"
)

// RoundTripDecorator wraps a RoundTripper with additional behavior.
type RoundTripDecorator func(http.RoundTripper) http.RoundTripper

// RoundTripChain is an ordered collection of RoundTripDecorator. The first
// decorator is the outermost one, so it sees the request first.
type RoundTripChain []RoundTripDecorator

// Apply wraps base with every decorator in the chain.
func (c RoundTripChain) Apply(base http.RoundTripper) http.RoundTripper {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i] != nil {
			base = c[i](base)
		}
	}
	return base
}

// RoundTripFunc adapts a function to http.RoundTripper.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
