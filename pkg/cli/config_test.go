package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/requester"
)

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *flagValues) {
	t.Helper()

	f := &flagValues{}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "requester.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const _configFile = `
timeout: 5s
max_redirects: 7
user_agent: file-agent
response_type: structured
telemetry:
  application_name: from-file
otel:
  host: collector
`

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfigFile(t, _configFile)
	t.Setenv("REQUESTER_TIMEOUT", "10s")
	t.Setenv("REQUESTER_USER_AGENT", "env-agent")
	t.Setenv("REQUESTER_TELEMETRY_APPLICATION_NAME", "from-env")

	fs, f := parseFlags(t, "--config", path, "--timeout", "20s")

	cfg, err := loadConfig(fs, f)
	require.NoError(t, err)

	require.NotNil(t, cfg.Timeout)
	assert.Equal(t, Seconds(20*time.Second), *cfg.Timeout)
	assert.Equal(t, "env-agent", cfg.UserAgent)
	require.NotNil(t, cfg.MaxRedirects)
	assert.Equal(t, 7, *cfg.MaxRedirects)
	assert.Equal(t, "structured", cfg.ResponseType)
	assert.Equal(t, "from-env", cfg.Telemetry.ApplicationName)
	assert.Equal(t, "collector", cfg.Otel.Host)
}

func TestLoadConfig_TimeoutInSeconds(t *testing.T) {
	t.Run("flag", func(t *testing.T) {
		fs, f := parseFlags(t, "--timeout", "30")
		cfg, err := loadConfig(fs, f)
		require.NoError(t, err)
		require.NotNil(t, cfg.Timeout)
		assert.Equal(t, Seconds(30*time.Second), *cfg.Timeout)
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("REQUESTER_TIMEOUT", "0.5")
		fs, f := parseFlags(t)
		cfg, err := loadConfig(fs, f)
		require.NoError(t, err)
		require.NotNil(t, cfg.Timeout)
		assert.Equal(t, Seconds(500*time.Millisecond), *cfg.Timeout)
	})

	t.Run("file", func(t *testing.T) {
		fs, f := parseFlags(t, "--config", writeConfigFile(t, "timeout: 12\n"))
		cfg, err := loadConfig(fs, f)
		require.NoError(t, err)
		require.NotNil(t, cfg.Timeout)
		assert.Equal(t, Seconds(12*time.Second), *cfg.Timeout)
	})

	t.Run("bad flag", func(t *testing.T) {
		f := &flagValues{}
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		f.register(fs)
		assert.Error(t, fs.Parse([]string{"--timeout", "soon"}))
	})
}

func TestLoadConfig_ExplicitZeroFlagWins(t *testing.T) {
	path := writeConfigFile(t, _configFile)
	fs, f := parseFlags(t, "--config", path, "--max-redirects", "0", "--fail-on-error=false")

	cfg, err := loadConfig(fs, f)
	require.NoError(t, err)

	require.NotNil(t, cfg.MaxRedirects)
	assert.Equal(t, 0, *cfg.MaxRedirects)
	require.NotNil(t, cfg.FailOnError)
	assert.False(t, *cfg.FailOnError)
}

func TestLoadConfig_FileFromEnv(t *testing.T) {
	t.Setenv("REQUESTER_CONFIG", writeConfigFile(t, _configFile))
	fs, f := parseFlags(t)

	cfg, err := loadConfig(fs, f)
	require.NoError(t, err)
	assert.Equal(t, "file-agent", cfg.UserAgent)
}

func TestLoadConfig_DefaultsAreNotLayers(t *testing.T) {
	fs, f := parseFlags(t)

	cfg, err := loadConfig(fs, f)
	require.NoError(t, err)

	assert.Nil(t, cfg.Timeout)
	assert.Nil(t, cfg.MaxRedirects)
	assert.Nil(t, cfg.Encoding)
	assert.Nil(t, cfg.FailOnError)

	opts, err := cfg.requesterOptions()
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "unknown response type", args: []string{"--response-type", "xml"}},
		{name: "unknown auth scheme", args: []string{"--auth", "kerberos", "-u", "a:b"}},
		{name: "credentials without colon", args: []string{"-u", "alice"}},
		{name: "unknown log level", args: []string{"--log-level", "loud"}},
		{name: "missing CA file", args: []string{"--ssl-ca", "/does/not/exist.pem"}},
		{name: "missing config file", args: []string{"--config", "/does/not/exist.yml"}},
		{name: "negative redirects", env: map[string]string{"REQUESTER_MAX_REDIRECTS": "-1"}},
		{name: "malformed env duration", env: map[string]string{"REQUESTER_TIMEOUT": "soon"}},
		{name: "negative env duration", env: map[string]string{"REQUESTER_TIMEOUT": "-1"}},
		{name: "bad datadog address", env: map[string]string{"REQUESTER_TELEMETRY_DATADOG_ADDRESS": "nowhere"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			fs, f := parseFlags(t, tt.args...)

			_, err := loadConfig(fs, f)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "timeout: [1, 2")
	fs, f := parseFlags(t, "--config", path)

	_, err := loadConfig(fs, f)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestConfig_Level(t *testing.T) {
	assert.Equal(t, log.InfoLevel, (&Config{}).level())
	assert.Equal(t, log.WarnLevel, (&Config{LogLevel: "warn"}).level())
	assert.Equal(t, log.DebugLevel, (&Config{LogLevel: "debug"}).level())
}

func TestConfig_RequesterOptions(t *testing.T) {
	timeout := Seconds(2 * time.Second)
	redirects := 0
	encoding := ""
	fail := true

	cfg := &Config{
		Timeout:         &timeout,
		MaxRedirects:    &redirects,
		ProxyURL:        "http://proxy:3128",
		ProxyAuth:       "bob:secret",
		ProxyAuthMethod: "ntlm",
		Encoding:        &encoding,
		ResponseType:    "array",
		FailOnError:     &fail,
		User:            "alice:wonder:land",
		Auth:            "digest",
		UserAgent:       "tests/1.0",
	}

	opts, err := cfg.requesterOptions()
	require.NoError(t, err)

	s := requester.DefaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	assert.Equal(t, 2*time.Second, s.Timeout)
	assert.Equal(t, 0, s.MaxRedirects)
	require.NotNil(t, s.Proxy)
	assert.Equal(t, "http://proxy:3128", s.Proxy.URL)
	assert.Equal(t, "bob:secret", s.Proxy.Auth)
	assert.Equal(t, requester.ProxyAuthNTLM, s.Proxy.AuthMethod)
	require.NotNil(t, s.Encoding)
	assert.Equal(t, "", *s.Encoding)
	assert.Equal(t, requester.ResponseStructured, s.ResponseType)
	assert.True(t, s.FailOnError)
	require.NotNil(t, s.Auth)
	assert.Equal(t, "alice:wonder:land", s.Auth.UserPass)
	assert.Equal(t, requester.AuthDigest, s.Auth.Scheme)
	assert.Equal(t, "tests/1.0", s.UserAgent)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "silent", err: &silentError{code: 3}, want: 3},
		{name: "usage", err: &usageError{err: assert.AnError}, want: ExitUsageError},
		{name: "config", err: &configError{err: assert.AnError}, want: ExitConfigError},
		{name: "other", err: assert.AnError, want: ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
