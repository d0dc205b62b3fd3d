package session

// Logger receives the tracer's own diagnostics. The tracer deliberately
// avoids logging frameworks: it must not route its warnings through
// machinery it may itself be asked to observe.
type Logger interface {
	Logf(format string, args ...any)
}

// LoggerFunc adapts a plain function to the Logger interface.
type LoggerFunc func(format string, args ...any)

// Logf calls the underlying function.
func (f LoggerFunc) Logf(format string, args ...any) {
	f(format, args...)
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}

// NopLogger discards all diagnostics.
var NopLogger Logger = nopLogger{}
