package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/luizaranda/requester/pkg/httpbin"
	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/telemetry"
)

const _connPoolsInterval = 10 * time.Second

// serverTimeouts bound the lifecycle of served connections.
type serverTimeouts struct {
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

var _defaultServerTimeouts = serverTimeouts{
	ReadHeaderTimeout: 10 * time.Second,
	IdleTimeout:       75 * time.Second,
	ShutdownTimeout:   5 * time.Second,
}

func newServeCommand(f *flagValues) *cobra.Command {
	var (
		addr        string
		profiling   bool
		logRequests bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an httpbin compatible server to try requests against",
		Long: `serve runs a local echo server with the httpbin endpoints: /get, /post,
/status/{code}, /redirect/{n}, /basic-auth/{user}/{passwd}, /digest-auth/..., /gzip
and more. It stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			defer s.close(context.WithoutCancel(cmd.Context()))

			srv := newServer(s, serverOptions{
				addr:        addr,
				profiling:   profiling,
				logRequests: logRequests,
				otel:        isOpenTelemetryEnabled(),
			})
			return srv.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&profiling, "profiling", false, "Serve pprof and expvar under /debug")
	cmd.Flags().BoolVar(&logRequests, "log-requests", false, "Log every request and response body")

	return cmd
}

type serverOptions struct {
	addr        string
	profiling   bool
	logRequests bool
	otel        bool
}

// server serves httpbin plus the debug endpoints.
type server struct {
	handler  http.Handler
	addr     string
	logger   log.Logger
	tracer   telemetry.Client
	timeouts serverTimeouts

	mu       sync.Mutex // guards listener address
	listener net.Addr
	running  chan struct{}
}

func newServer(s *session, opts serverOptions) *server {
	logger := s.logger.Named("serve")
	r := chi.NewRouter()

	// The log level can be changed at run time, e.g.
	// curl -X PUT localhost:8080/debug/log/level -d '{"level":"debug"}'
	r.Handle("/debug/log/level", s.level)
	if opts.profiling {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Mount("/", httpbin.New(
		httpbin.WithLogger(logger),
		httpbin.WithTelemetry(s.tracer),
		httpbin.WithOpenTelemetry(opts.otel),
		httpbin.WithRequestLogging(opts.logRequests),
	))

	return &server{
		handler:  r,
		addr:     opts.addr,
		logger:   logger,
		tracer:   s.tracer,
		timeouts: _defaultServerTimeouts,
		running:  make(chan struct{}),
	}
}

// run listens on the configured address and serves until ctx is done or
// the process gets SIGINT or SIGTERM.
func (s *server) run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln.Addr()
	s.mu.Unlock()
	close(s.running)

	return s.serve(ctx, ln)
}

func (s *server) serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go pollConnPools(ctx, s.tracer, _connPoolsInterval)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.timeouts.ReadHeaderTimeout,
		IdleTimeout:       s.timeouts.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	s.logger.Info("running", log.String("address", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", log.String("address", ln.Addr().String()))

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), s.timeouts.ShutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Running is closed once the server accepts connections.
func (s *server) Running() <-chan struct{} {
	return s.running
}

// Addr returns the address the server listens on, nil before Running.
func (s *server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}
