// Package tracing carries request labels used by metrics and spans.
package tracing

import (
	"context"
)

type targetIDCtxKey struct{}

// WithTargetID labels requests made with ctx with targetID.
func WithTargetID(ctx context.Context, targetID string) context.Context {
	return context.WithValue(ctx, targetIDCtxKey{}, targetID)
}

// TargetID returns the label set by WithTargetID, or "".
func TargetID(ctx context.Context) string {
	value, _ := ctx.Value(targetIDCtxKey{}).(string)
	return value
}

type endpointTemplateKey struct{}

// WithEndpointTemplate records the URL template a request was expanded from,
// e.g. "/users/{id}".
func WithEndpointTemplate(ctx context.Context, endpointTemplate string) context.Context {
	return context.WithValue(ctx, endpointTemplateKey{}, endpointTemplate)
}

// EndpointTemplate returns the template set by WithEndpointTemplate, or "".
func EndpointTemplate(ctx context.Context) string {
	value, _ := ctx.Value(endpointTemplateKey{}).(string)
	return value
}
