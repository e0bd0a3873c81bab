package log

// Logger is the interface that wraps methods needed for a valid logger implementation.
type Logger interface {
	// Named adds a new path segment to the logger's name. Segments are joined by
	// periods. By default, Loggers are unnamed.
	Named(s string) Logger

	// With creates a child logger and adds structured context to it. Fields added
	// to the child don't affect the parent, and vice versa.
	With(fields ...Field) Logger

	// WithLevel created a child logger that logs on the given level.
	// Child logger contains all fields from the parent.
	WithLevel(lvl Level) Logger

	// Debug logs a message at DebugLevel. The message includes any fields passed
	// at the log site, as well as any fields accumulated on the logger.
	Debug(msg string, fields ...Field)

	// Info logs a message at InfoLevel.
	Info(msg string, fields ...Field)

	// Warn logs a message at WarnLevel.
	Warn(msg string, fields ...Field)

	// Error logs a message at ErrorLevel.
	Error(msg string, fields ...Field)

	// Level reports the minimum enabled level for this logger.
	Level() Level

	// Sync flushes any buffered log entries.
	Sync() error
}
