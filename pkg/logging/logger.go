// Package logging provides a small structured logging facade used by every
// go-esign component. The only implementation is backed by logrus.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel is the severity threshold of a Logger.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the lower case name of the level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a LogLevel. The second return value is
// false when the name is not recognised, in which case InfoLevel is returned.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// Field is a single key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the structured logger interface used throughout the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry.
	With(fields ...Field) Logger

	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// OutputConfigurable is implemented by loggers whose destination can be changed.
type OutputConfigurable interface {
	SetOutput(w io.Writer)
}

// LogrusAdapter implements Logger on top of a logrus.Logger.
type LogrusAdapter struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogrusAdapter wraps logger.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{logger: logger}
}

func (l *LogrusAdapter) entry(fields []Field) *logrus.Entry {
	e := logrus.NewEntry(l.logger)
	if len(l.fields) > 0 {
		e = e.WithFields(l.fields)
	}
	if len(fields) > 0 {
		lf := make(logrus.Fields, len(fields))
		for _, f := range fields {
			lf[f.Key] = f.Value
		}
		e = e.WithFields(lf)
	}
	return e
}

func (l *LogrusAdapter) Debug(msg string, fields ...Field) { l.entry(fields).Debug(msg) }
func (l *LogrusAdapter) Info(msg string, fields ...Field)  { l.entry(fields).Info(msg) }
func (l *LogrusAdapter) Warn(msg string, fields ...Field)  { l.entry(fields).Warn(msg) }
func (l *LogrusAdapter) Error(msg string, fields ...Field) { l.entry(fields).Error(msg) }
func (l *LogrusAdapter) Fatal(msg string, fields ...Field) { l.entry(fields).Fatal(msg) }

// With returns a child logger sharing the underlying logrus instance.
func (l *LogrusAdapter) With(fields ...Field) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &LogrusAdapter{logger: l.logger, fields: merged}
}

// SetLevel sets the minimum level written by the logger.
func (l *LogrusAdapter) SetLevel(level LogLevel) {
	l.logger.SetLevel(toLogrusLevel(level))
}

// GetLevel returns the current minimum level.
func (l *LogrusAdapter) GetLevel() LogLevel {
	switch l.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// SetOutput implements OutputConfigurable.
func (l *LogrusAdapter) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}
