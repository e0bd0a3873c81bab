// Package httpbin is a small echo server in the spirit of httpbin.org. It
// backs the requester tests and the `requester serve` command.
//
// Every echo route answers with a JSON document describing the request it
// received: query arguments, headers, the raw body and, for form and
// multipart bodies, the decoded fields.
package httpbin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/telemetry"
)

// Config configures the handler returned by New.
type Config struct {
	Logger    log.Logger
	Telemetry telemetry.Client

	// OpenTelemetry enables server spans and the request duration
	// histogram, using the global providers.
	OpenTelemetry bool

	// LogRequests logs whole requests and responses at debug level.
	LogRequests bool
}

// Option configures New.
type Option func(*Config)

func WithLogger(l log.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func WithTelemetry(t telemetry.Client) Option {
	return func(c *Config) {
		c.Telemetry = t
	}
}

func WithOpenTelemetry(enabled bool) Option {
	return func(c *Config) {
		c.OpenTelemetry = enabled
	}
}

func WithRequestLogging(enabled bool) Option {
	return func(c *Config) {
		c.LogRequests = enabled
	}
}

// New returns the httpbin handler.
func New(opts ...Option) http.Handler {
	cfg := Config{
		Logger:    log.DefaultLogger,
		Telemetry: telemetry.NewNoOpClient(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(Logger(cfg.Logger))
	if cfg.LogRequests {
		r.Use(LogRequest(cfg.Logger, LogRequestConfig{IncludeRequest: true, IncludeResponse: true}))
	}
	r.Use(Telemetry(cfg.Telemetry))
	if cfg.OpenTelemetry {
		r.Use(OpenTelemetry(OtelConfig{}))
	}
	r.Use(Panics())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, NewError(http.StatusNotFound, "no such route"))
	})

	r.Get("/get", echo)
	r.Head("/get", echo)
	r.Post("/post", echo)
	r.Put("/put", echo)
	r.Patch("/patch", echo)
	r.Delete("/delete", echo)
	r.HandleFunc("/anything", echo)
	r.HandleFunc("/anything/*", echo)

	r.Get("/headers", headers)
	r.Get("/ip", ip)
	r.Get("/user-agent", userAgent)
	r.HandleFunc("/response-headers", responseHeaders)

	r.HandleFunc("/status/{code}", status)
	r.HandleFunc("/redirect/{n}", redirect)
	r.HandleFunc("/redirect-to", redirectTo)

	r.Get("/basic-auth/{user}/{passwd}", basicAuth)
	r.Get("/digest-auth/{qop}/{user}/{passwd}", digestAuth)
	r.Get("/digest-auth/{qop}/{user}/{passwd}/{algorithm}", digestAuth)

	r.HandleFunc("/delay/{seconds}", delay)
	r.Get("/gzip", gzipped)
	r.Get("/deflate", deflated)
	r.Get("/html", html)
	r.Get("/bytes/{n}", randomBytes)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("httpbin: requested panic")
	})

	return r
}
