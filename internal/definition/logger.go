// Package definition holds small cross-cutting abstractions shared by the
// rest of the depot: the Logger interface and its default implementation.
package definition

import (
	"github.com/sirupsen/logrus"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging abstraction used throughout the depot. Every
// component that can observe protocol activity (sessions, the connector,
// the signal watcher) holds one instead of writing to stdout/stderr
// directly, so that the default-silent behavior required by the protocol
// lives in one place: the level the Logger was constructed with.
type Logger interface {
	WithFields(fields Fields) Logger

	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// logrusLogger backs Logger with logrus. Nothing below the configured
// level is ever written, which is what keeps the protocol silent by
// default: NewDefaultLogger starts at logrus.PanicLevel and only Debug
// gets surfaced once ToggleDebug is applied.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger builds a Logger writing to stderr through logrus,
// defaulted to PanicLevel so no call site below Panic ever produces
// output until debug mode is explicitly requested.
func NewDefaultLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// ToggleDebug lowers or raises the logger's level. Passing true enables
// Debug-level output (used by --debug); false restores silence.
func ToggleDebug(l Logger, enabled bool) {
	ll, ok := l.(*logrusLogger)
	if !ok {
		return
	}
	if enabled {
		ll.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		ll.entry.Logger.SetLevel(logrus.PanicLevel)
	}
}

func (l *logrusLogger) WithFields(fields Fields) Logger {
	return &logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) Debugf(format string, v ...interface{}) {
	l.entry.Debugf(format, v...)
}

func (l *logrusLogger) Infof(format string, v ...interface{}) {
	l.entry.Infof(format, v...)
}

func (l *logrusLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(format, v...)
}

func (l *logrusLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}
