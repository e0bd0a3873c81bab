package cli

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/otel"
	"github.com/luizaranda/requester/pkg/requester"
	"github.com/luizaranda/requester/pkg/telemetry"
)

const (
	_otelAgentEnabledEnv  = "OTEL_AGENT_ENABLED"
	_otelAgentDisabledEnv = "OTEL_AGENT_DISABLED"

	_connPoolsVar = "requester.http.client.conn_pools"

	_defaultDatadogAddress = "127.0.0.1:8125"
)

// session is what a command needs at run time: its configuration, logger,
// telemetry client and the OpenTelemetry shutdown hook.
type session struct {
	config *Config
	logger log.Logger
	level  *log.AtomicLevel
	tracer telemetry.Client

	otelShutdown otel.ShutdownFunc
}

// newSession loads the configuration and bootstraps logging and telemetry.
// OpenTelemetry is started first since the global providers must be set
// before any instrumented component is built.
func newSession(cmd *cobra.Command, f *flagValues) (*session, error) {
	cfg, err := loadConfig(cmd.Flags(), f)
	if err != nil {
		return nil, &configError{err: err}
	}

	otelShutdown, err := startOTel(cmd.Context(), cfg.Otel)
	if err != nil {
		return nil, err
	}

	tracer, err := newTracer(cfg.Telemetry)
	if err != nil {
		return nil, errors.Join(err, otelShutdown(cmd.Context()))
	}

	lvl := log.NewAtomicLevelAt(cfg.level())
	logger := log.NewProductionLogger(&lvl, log.WithConsoleEncoding(), log.WithWriter(stderrSyncer(cmd)))

	// Package level defaults let instrumented code reach them without
	// propagating them by hand.
	log.DefaultLogger = logger
	telemetry.DefaultTracer = tracer

	return &session{
		config:       cfg,
		logger:       logger,
		level:        &lvl,
		tracer:       tracer,
		otelShutdown: otelShutdown,
	}, nil
}

// context decorates ctx with the session logger and telemetry client.
func (s *session) context(ctx context.Context) context.Context {
	return telemetry.Context(log.Context(ctx, s.logger), s.tracer)
}

func (s *session) requester() (*requester.Requester, error) {
	opts, err := s.config.requesterOptions()
	if err != nil {
		return nil, &configError{err: err}
	}
	return requester.New(append(opts, requester.WithLogger(s.logger))...)
}

// close reports connection pool gauges and flushes telemetry.
func (s *session) close(ctx context.Context) {
	reportConnPools(s.tracer)

	if err := s.tracer.Close(); err != nil {
		s.logger.Warn("closing telemetry", log.Err(err))
	}
	if err := s.otelShutdown(ctx); err != nil {
		s.logger.Warn("shutting down opentelemetry", log.Err(err))
	}
	_ = s.logger.Sync()
}

func startOTel(ctx context.Context, cfg otel.Config) (otel.ShutdownFunc, error) {
	if isOpenTelemetryEnabled() {
		return otel.Start(ctx, cfg)
	}
	return func(context.Context) error { return nil }, nil
}

func isOpenTelemetryEnabled() bool {
	return strings.EqualFold(os.Getenv(_otelAgentEnabledEnv), "true") &&
		!strings.EqualFold(os.Getenv(_otelAgentDisabledEnv), "true")
}

func newTracer(cfg TelemetryConfig) (telemetry.Client, error) {
	if !cfg.enabled() {
		return telemetry.NewNoOpClient(), nil
	}

	name, addr := cfg.ApplicationName, cfg.DatadogAddress
	if name == "" {
		name = "requester"
	}
	if addr == "" {
		addr = _defaultDatadogAddress
	}
	return telemetry.NewClient(telemetry.Config{
		ApplicationName: name,
		NewRelicLicense: cfg.NewRelicLicense,
		DatadogAddress:  addr,
		Namespace:       "requester.",
	})
}

// pollConnPools reports connection pool gauges every interval until ctx is
// done.
func pollConnPools(ctx context.Context, tracer telemetry.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reportConnPools(tracer)
		case <-ctx.Done():
			return
		}
	}
}

type connPools map[string]map[string]int64

// reportConnPools publishes the open connections of every pooled transport
// as gauges.
func reportConnPools(tracer telemetry.Client) {
	v := expvar.Get(_connPoolsVar)
	if v == nil {
		return
	}

	var pools connPools
	if err := json.Unmarshal([]byte(v.String()), &pools); err != nil {
		return
	}

	for pool, conns := range pools {
		for addr, n := range conns {
			tracer.Gauge("http.client.conn_pool", float64(n), telemetry.Tags("pool", pool, "address", addr))
		}
	}
}

type writerSyncer struct {
	w io.Writer
}

func (s writerSyncer) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s writerSyncer) Sync() error                 { return nil }

func stderrSyncer(cmd *cobra.Command) log.WriteSyncer {
	if f, ok := cmd.ErrOrStderr().(*os.File); ok {
		return f
	}
	return writerSyncer{w: cmd.ErrOrStderr()}
}
