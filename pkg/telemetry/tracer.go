package telemetry

import (
	"context"
	"net/http"
	"time"
)

// Client records metrics and spans. Implementations must be safe for
// concurrent use.
type Client interface {
	Close() error
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	StartWebSpan(ctx context.Context, name string, w http.ResponseWriter, r *http.Request) (context.Context, Span)

	// Gauge measures the value of a metric at a particular time.
	Gauge(name string, value float64, tags []string)
	// Count tracks how many times something happened per second.
	Count(name string, value int64, tags []string)
	// Incr is just Count of 1.
	Incr(name string, tags []string)
	// Histogram tracks the statistical distribution of a set of values.
	Histogram(name string, value float64, tags []string)
	// Timing sends timing information in milliseconds.
	Timing(name string, value time.Duration, tags []string)
}
