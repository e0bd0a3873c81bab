package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/otel"
	"github.com/luizaranda/requester/pkg/requester"
)

// _envPrefix prefixes every environment variable read into Config.
const _envPrefix = "REQUESTER_"

// Config is the configuration of every command. It is assembled from, in
// order of precedence, command line flags, REQUESTER_* environment variables
// and a YAML file. Unset fields keep the requester defaults.
type Config struct {
	Timeout         *Seconds `yaml:"timeout" env:"TIMEOUT"`
	MaxRedirects    *int     `yaml:"max_redirects" env:"MAX_REDIRECTS" validate:"omitempty,min=0"`
	ProxyURL        string   `yaml:"proxy_url" env:"PROXY_URL" validate:"omitempty,url|hostname_port"`
	ProxyAuth       string   `yaml:"proxy_auth" env:"PROXY_AUTH" validate:"omitempty,contains=:"`
	ProxyAuthMethod string   `yaml:"proxy_auth_method" env:"PROXY_AUTH_METHOD" validate:"omitempty,oneof=BASIC NTLM basic ntlm"`
	SSLCA           string   `yaml:"ssl_ca" env:"SSL_CA" validate:"omitempty,file"`
	Encoding        *string  `yaml:"encoding" env:"ENCODING"`
	ResponseType    string   `yaml:"response_type" env:"RESPONSE_TYPE" validate:"omitempty,oneof=raw structured array"`
	FailOnError     *bool    `yaml:"fail_on_error" env:"FAIL_ON_ERROR"`
	User            string   `yaml:"user" env:"USER" validate:"omitempty,contains=:"`
	Auth            string   `yaml:"auth" env:"AUTH" validate:"omitempty,oneof=basic digest ntlm gss-negotiate"`
	UserAgent       string   `yaml:"user_agent" env:"USER_AGENT"`

	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`

	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Otel      otel.Config     `yaml:"otel"`

	// path of the YAML file, only set by flags or the environment.
	file string
}

// Seconds is a duration written either as a number of seconds, "30" or
// "0.5", or as a Go duration such as "1m30s".
type Seconds time.Duration

func parseSeconds(s string) (Seconds, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return Seconds(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q, expected seconds or a value like 1m30s", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return Seconds(d), nil
}

func (d Seconds) String() string { return time.Duration(d).String() }

// Set implements pflag.Value.
func (d *Seconds) Set(s string) error {
	v, err := parseSeconds(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Type implements pflag.Value.
func (d *Seconds) Type() string { return "seconds" }

// UnmarshalText is used for the environment.
func (d *Seconds) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

func (d *Seconds) UnmarshalYAML(n *yaml.Node) error {
	return d.Set(n.Value)
}

// TelemetryConfig enables DataDog metrics and NewRelic transactions.
type TelemetryConfig struct {
	ApplicationName string `yaml:"application_name" env:"APPLICATION_NAME"`
	NewRelicLicense string `yaml:"newrelic_license" env:"NEW_RELIC_LICENSE_KEY"`
	DatadogAddress  string `yaml:"datadog_address" env:"DATADOG_ADDRESS" validate:"omitempty,hostname_port"`
}

func (t TelemetryConfig) enabled() bool {
	return t.NewRelicLicense != "" || t.DatadogAddress != ""
}

var _validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) validate() error {
	if err := _validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// level returns the configured log level, info by default.
func (c *Config) level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// requesterOptions translates c into requester options over the defaults.
func (c *Config) requesterOptions() ([]requester.Option, error) {
	var opts []requester.Option

	if c.Timeout != nil {
		opts = append(opts, requester.WithTimeout(time.Duration(*c.Timeout)))
	}
	if c.MaxRedirects != nil {
		opts = append(opts, requester.WithMaxRedirects(*c.MaxRedirects))
	}
	if c.ProxyURL != "" {
		opts = append(opts, requester.WithProxy(&requester.ProxyConfig{
			URL:        c.ProxyURL,
			Auth:       c.ProxyAuth,
			AuthMethod: requester.ProxyAuthMethod(strings.ToUpper(c.ProxyAuthMethod)),
		}))
	}
	if c.SSLCA != "" {
		opts = append(opts, requester.WithSSLCA(c.SSLCA))
	}
	if c.Encoding != nil {
		opts = append(opts, requester.WithEncoding(*c.Encoding))
	}
	if c.ResponseType != "" {
		rt, err := requester.ParseResponseType(c.ResponseType)
		if err != nil {
			return nil, err
		}
		opts = append(opts, requester.WithResponseType(rt))
	}
	if c.FailOnError != nil {
		opts = append(opts, requester.WithFailOnError(*c.FailOnError))
	}
	if c.User != "" {
		opts = append(opts, requester.WithHTTPAuth(c.User, requester.AuthScheme(c.Auth)))
	}
	if c.UserAgent != "" {
		opts = append(opts, requester.WithUserAgent(c.UserAgent))
	}

	return opts, nil
}

// configBuilder merges configuration layers. Layers added first win.
type configBuilder struct {
	configs []*Config
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		configs: make([]*Config, 0, 3),
	}
}

func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error building config: %w", b.err)
	}

	config := new(Config)
	for _, cfg := range b.configs {
		if err := mergo.Merge(config, cfg, mergo.WithoutDereference); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// withFlags adds the flags explicitly set on the command line.
func (b *configBuilder) withFlags(fs *pflag.FlagSet, f *flagValues) *configBuilder {
	cfg := &Config{}

	if fs.Changed("config") {
		cfg.file = f.config
	}
	if fs.Changed("timeout") {
		cfg.Timeout = &f.timeout
	}
	if fs.Changed("max-redirects") {
		cfg.MaxRedirects = &f.maxRedirects
	}
	if fs.Changed("encoding") {
		cfg.Encoding = &f.encoding
	}
	if fs.Changed("fail-on-error") {
		cfg.FailOnError = &f.failOnError
	}

	cfg.ProxyURL = f.proxy
	cfg.ProxyAuth = f.proxyAuth
	cfg.ProxyAuthMethod = f.proxyAuthMethod
	cfg.SSLCA = f.sslCA
	cfg.ResponseType = f.responseType
	cfg.User = f.user
	cfg.Auth = f.auth
	cfg.UserAgent = f.userAgent
	cfg.LogLevel = f.logLevel

	b.configs = append(b.configs, cfg)
	return b
}

// withEnv adds the REQUESTER_* environment variables. REQUESTER_CONFIG
// names the YAML file.
func (b *configBuilder) withEnv() *configBuilder {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: _envPrefix}); err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}
	cfg.file = os.Getenv(_envPrefix + "CONFIG")

	b.configs = append(b.configs, cfg)
	return b
}

// withFile adds the YAML file named by an earlier layer, if any.
func (b *configBuilder) withFile() *configBuilder {
	var path string
	for _, cfg := range b.configs {
		if cfg.file != "" {
			path = cfg.file
			break
		}
	}

	if path == "" {
		return b
	}

	cfg, err := parseYAML(path)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.configs = append(b.configs, cfg)
	return b
}

func parseYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// loadConfig assembles the configuration of a command.
func loadConfig(fs *pflag.FlagSet, f *flagValues) (*Config, error) {
	return newConfigBuilder().
		withFlags(fs, f).
		withEnv().
		withFile().
		build()
}
