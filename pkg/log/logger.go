package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogger is used when given a context with no associated logger.
//
// It discards all logs. Commands replace it with a logger of their own.
var DefaultLogger Logger = NewNopLogger()

// NewNopLogger returns a Logger that never writes out logs.
func NewNopLogger() Logger {
	return &logger{Logger: zap.NewNop()}
}

// NewProductionLogger is a reasonable production logging configuration.
// Logging is enabled at given level and above. The level can be later
// adjusted dynamically in runtime by calling SetLevel method.
//
// By default it uses the JSON encoder, writes to standard error and includes
// stacktraces on logs of ErrorLevel and above.
func NewProductionLogger(lvl *AtomicLevel, opts ...Option) Logger {
	cfg := logConfig{
		writer:     _stderr,
		levelKey:   "level",
		stacktrace: true,
		caller:     true,
		callerSkip: 1,
		encoderFactory: func(config zapcore.EncoderConfig) zapcore.Encoder {
			return zapcore.NewJSONEncoder(config)
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var zapOptions []zap.Option
	if cfg.caller {
		zapOptions = append(zapOptions, zap.AddCaller(), zap.AddCallerSkip(cfg.callerSkip))
	}
	if cfg.stacktrace {
		zapOptions = append(zapOptions, zap.AddStacktrace(zap.ErrorLevel))
	}
	zapOptions = append(zapOptions, wrapCoreWithLevel(lvl))

	return &logger{
		Logger: zap.New(newZapCore(cfg), zapOptions...),
	}
}

// logger adapts a *zap.Logger to the Logger interface. All methods are safe
// for concurrent use.
type logger struct {
	*zap.Logger
}

var _ Logger = (*logger)(nil)

func (l *logger) WithLevel(level Level) Logger {
	lvl := zap.NewAtomicLevelAt(level)
	return &logger{Logger: l.Logger.WithOptions(wrapCoreWithLevel(&lvl))}
}

func (l *logger) With(fields ...Field) Logger {
	return &logger{Logger: l.Logger.With(fields...)}
}

func (l *logger) Named(s string) Logger {
	return &logger{Logger: l.Logger.Named(s)}
}

func (l *logger) Level() Level {
	return zapcore.LevelOf(l.Core())
}

// WriteSyncer is an io.Writer that can also flush any buffered data.
type WriteSyncer interface {
	io.Writer
	Sync() error
}

type logConfig struct {
	levelKey       string
	caller         bool
	callerSkip     int
	stacktrace     bool
	writer         WriteSyncer
	encoderFactory func(config zapcore.EncoderConfig) zapcore.Encoder
}

// Option configures a Logger.
type Option func(s *logConfig)

// WithLevelKey configures which key name to use for the log level.
//
// Default value is "level".
func WithLevelKey(key string) Option {
	return func(s *logConfig) {
		s.levelKey = key
	}
}

// WithCaller configures whether to include a "caller" field with the
// package/file:line in which the log occurred.
func WithCaller(t bool) Option {
	return func(s *logConfig) {
		s.caller = t
	}
}

// WithStacktraceOnError configures whether to include a stacktrace on "Error"
// or higher log levels.
func WithStacktraceOnError(b bool) Option {
	return func(s *logConfig) {
		s.stacktrace = b
	}
}

// WithJSONEncoding tells the logger to use JSON as its encoding. This is the
// default.
func WithJSONEncoding() Option {
	return func(s *logConfig) {
		s.encoderFactory = func(config zapcore.EncoderConfig) zapcore.Encoder {
			return zapcore.NewJSONEncoder(config)
		}
	}
}

// WithConsoleEncoding tells the logger to use a user-friendly console encoding.
func WithConsoleEncoding() Option {
	return func(s *logConfig) {
		s.encoderFactory = func(config zapcore.EncoderConfig) zapcore.Encoder {
			return zapcore.NewConsoleEncoder(config)
		}
	}
}

// WithWriter configures the WriteSyncer logs are written to.
//
// Default value is to write to Stderr.
func WithWriter(w WriteSyncer) Option {
	return func(s *logConfig) {
		s.writer = w
	}
}

// Writes to stderr are synchronized between every logger instance.
var _stderr = zapcore.Lock(zapcore.AddSync(os.Stderr))

func newZapCore(cfg logConfig) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       cfg.levelKey,
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     rfc3339MicroTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	// The core accepts everything, coreWithLevel does the filtering.
	return zapcore.NewCore(cfg.encoderFactory(encoderConfig), cfg.writer, zap.DebugLevel)
}

// rfc3339MicroTimeEncoder serializes a time.Time to a fixed width RFC3339
// string with microsecond precision.
func rfc3339MicroTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	const RFC3339Micro = "2006-01-02T15:04:05.000000Z07:00"

	enc.AppendString(t.UTC().Format(RFC3339Micro))
}
