package script

import "github.com/sirupsen/logrus"

// Logger is an optional interface for observability during execution.
// Implementations can log tool calls, timing information, and other events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

// LogrusLogger adapts a logrus logger or entry to Logger. Messages are
// logged at debug level.
type LogrusLogger struct {
	entry logrus.FieldLogger
}

// NewLogrusLogger wraps l. A nil l uses the logrus standard logger.
func NewLogrusLogger(l logrus.FieldLogger) *LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &LogrusLogger{entry: l.WithField("component", "orchestrator")}
}

// Logf logs at debug level.
func (l *LogrusLogger) Logf(format string, args ...any) {
	l.entry.Debugf(format, args...)
}

type nopLogger struct{}

func (nopLogger) Logf(string, ...any) {}
