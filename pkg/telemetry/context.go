package telemetry

import (
	"context"

	"github.com/newrelic/go-agent/v3/newrelic"
)

type telemetryClientCtxKey struct{}

// contextWithTransaction stores both the NewRelic transaction and the client
// so that FromContext and newrelic.FromContext work on the returned context.
func contextWithTransaction(ctx context.Context, nrTX *newrelic.Transaction, client Client) context.Context {
	return Context(newrelic.NewContext(ctx, nrTX), client)
}

// Context returns a copy of ctx carrying client. The package level functions
// record through it.
func Context(ctx context.Context, client Client) context.Context {
	return context.WithValue(ctx, telemetryClientCtxKey{}, client)
}

// FromContext returns the Client stored by Context, or DefaultTracer.
func FromContext(ctx context.Context) Client {
	if client, ok := ctx.Value(telemetryClientCtxKey{}).(Client); ok && client != nil {
		return client
	}
	return DefaultTracer
}
