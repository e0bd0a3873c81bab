package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
)

const (
	_collectTimeout  = 35 * time.Second
	_collectPeriod   = 30 * time.Second
	_minimumInterval = time.Minute
)

// Request latencies in milliseconds, up to the longest client timeout.
var _histogramBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

func startMetricsProvider(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.endpoint()), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return nil, err
	}

	mp := newMeterProvider(exp, cfg)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(_minimumInterval)); err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	return mp.Shutdown, nil
}

func newMeterProvider(exp metric.Exporter, cfg Config) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithResource(cfg.resource()),
		metric.WithReader(metric.NewPeriodicReader(exp,
			metric.WithTimeout(_collectTimeout),
			metric.WithInterval(_collectPeriod),
		)),
		metric.WithView(metric.NewView(
			metric.Instrument{Name: "*", Kind: metric.InstrumentKindHistogram},
			metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: _histogramBuckets}},
		)),
	)
}
