// Package otel installs the global OpenTelemetry trace and metric providers
// exporting over OTLP/gRPC.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"

	"github.com/luizaranda/requester/pkg/internal"
)

const (
	_defaultAgentHost = "otel-agent"
	_defaultAgentPort = "4317"
)

// Config holds the collector address and the name the process reports as.
type Config struct {
	// Host of the OTLP collector. Defaults to "otel-agent".
	Host string `yaml:"host" env:"OTEL_HOST"`

	// Port of the OTLP collector. Defaults to "4317".
	Port string `yaml:"port" env:"OTEL_PORT"`

	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`

	// SampleRatio is the fraction of root spans sampled. Children follow
	// their parent.
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO"`
}

func (c Config) endpoint() string {
	host, port := c.Host, c.Port
	if host == "" {
		host = _defaultAgentHost
	}
	if port == "" {
		port = _defaultAgentPort
	}
	return net.JoinHostPort(host, port)
}

func (c Config) resource() *resource.Resource {
	name := c.ServiceName
	if name == "" {
		name = "requester"
	}
	return resource.NewSchemaless(
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(internal.Version),
	)
}

// ShutdownFunc flushes and stops the providers installed by Start.
type ShutdownFunc func(ctx context.Context) error

// Start installs global trace and metric providers for cfg. The returned
// ShutdownFunc must be called before the process exits.
func Start(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	shutdownTracing, err := startTracerProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("otel: tracer provider: %w", err)
	}

	shutdownMetrics, err := startMetricsProvider(ctx, cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("otel: meter provider: %w", err), shutdownTracing(ctx))
	}

	return func(ctx context.Context) error {
		return errors.Join(shutdownTracing(ctx), shutdownMetrics(ctx))
	}, nil
}
