package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const (
	_defaultBufferLen = 500
	_defaultTimeout   = 200 * time.Millisecond
	_defaultRate      = 1.0
	_shutdownTimeout  = 5 * time.Second
)

// DefaultTracer is used when calling a function of this package with a
// context that carries no Client. It discards everything.
var DefaultTracer = NewNoOpClient()

// Config contains attributes required by NewClient to bootstrap itself.
type Config struct {
	// ApplicationName is the name reported to NewRelic.
	ApplicationName string

	// NewRelicLicense identifies the NewRelic account. NewRelic is disabled
	// when it is empty.
	NewRelicLicense string

	// DatadogAddress is the address of the statsd agent, e.g. "127.0.0.1:8125".
	DatadogAddress string

	// Namespace is prepended to every metric name.
	Namespace string

	// Tags are added to every metric.
	Tags []string
}

// A client is a handle for performing telemetry operations. It is safe to
// use one client from multiple goroutines simultaneously.
type client struct {
	nrApp  *newrelic.Application
	statsd statsd.ClientInterface
}

var _ Client = (*client)(nil)

// NewClient returns a new client connected to statsd and NewRelic.
func NewClient(cfg Config) (Client, error) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigEnabled(cfg.NewRelicLicense != ""),
		newrelic.ConfigLicense(cfg.NewRelicLicense),
		newrelic.ConfigAppName(cfg.ApplicationName),
		newrelic.ConfigDistributedTracerEnabled(false),
		func(config *newrelic.Config) {
			// httpbin replies with error statuses on purpose.
			config.ErrorCollector.IgnoreStatusCodes = ignoredStatusCodes()
		},
	)
	if err != nil {
		return nil, err
	}

	s, err := statsd.New(cfg.DatadogAddress,
		statsd.WithMaxMessagesPerPayload(_defaultBufferLen),
		statsd.WithWriteTimeout(_defaultTimeout),
		statsd.WithNamespace(cfg.Namespace),
		statsd.WithTags(cfg.Tags),
	)
	if err != nil {
		app.Shutdown(0)
		return nil, err
	}

	return &client{nrApp: app, statsd: s}, nil
}

// NewNoOpClient is a telemetry client that does nothing. Useful in tests.
func NewNoOpClient() Client {
	nrApp, _ := newrelic.NewApplication(newrelic.ConfigEnabled(false))
	return &client{
		statsd: &statsd.NoOpClient{},
		nrApp:  nrApp,
	}
}

func ignoredStatusCodes() []int {
	codes := make([]int, 0, 200)
	for code := 400; code < 600; code++ {
		codes = append(codes, code)
	}
	return codes
}

// Close flushes buffered metrics and shuts NewRelic down.
func (c *client) Close() error {
	c.nrApp.Shutdown(_shutdownTimeout)
	return c.statsd.Close()
}

// StartSpan begins a Span. Caller must call Finish on the returned Span.
func (c *client) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return c.StartWebSpan(ctx, name, nil, nil)
}

// StartWebSpan starts a Span bound to an inbound request. When w is not nil
// the returned Span also implements http.ResponseWriter and must be used in
// place of w so the response status is recorded.
func (c *client) StartWebSpan(ctx context.Context, name string, w http.ResponseWriter, r *http.Request) (context.Context, Span) {
	if tx := newrelic.FromContext(ctx); tx != nil {
		return StartSpan(ctx, name)
	}

	nrTx := c.nrApp.StartTransaction(name)
	if r != nil {
		nrTx.SetWebRequestHTTP(r)
	}

	var span Span = &nrTransactionSpan{Transaction: nrTx}
	if w != nil {
		span = &nrWebTransactionSpan{
			ResponseWriter:    nrTx.SetWebResponse(w),
			nrTransactionSpan: &nrTransactionSpan{Transaction: nrTx},
		}
	}

	return contextWithTransaction(ctx, nrTx, c), span
}

func (c *client) Gauge(name string, value float64, tags []string) {
	_ = c.statsd.Gauge(name, value, tags, _defaultRate)
}

func (c *client) Count(name string, value int64, tags []string) {
	_ = c.statsd.Count(name, value, tags, _defaultRate)
}

func (c *client) Incr(name string, tags []string) {
	_ = c.statsd.Incr(name, tags, _defaultRate)
}

func (c *client) Histogram(name string, value float64, tags []string) {
	_ = c.statsd.Histogram(name, value, tags, _defaultRate)
}

func (c *client) Timing(name string, value time.Duration, tags []string) {
	_ = c.statsd.Timing(name, value, tags, _defaultRate)
}
