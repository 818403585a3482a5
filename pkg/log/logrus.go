package log

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter implements Logger using logrus.
type LogrusAdapter struct {
	logger logrus.FieldLogger
}

// NewLogrusAdapter wraps a logrus logger or entry.
func NewLogrusAdapter(logger logrus.FieldLogger) *LogrusAdapter {
	return &LogrusAdapter{logger: logger}
}

// Debug logs a debug-level message.
func (l *LogrusAdapter) Debug(msg string, fields ...Field) {
	l.entry(fields).Debug(msg)
}

// Info logs an info-level message.
func (l *LogrusAdapter) Info(msg string, fields ...Field) {
	l.entry(fields).Info(msg)
}

// Warn logs a warning-level message.
func (l *LogrusAdapter) Warn(msg string, fields ...Field) {
	l.entry(fields).Warn(msg)
}

// Error logs an error-level message.
func (l *LogrusAdapter) Error(msg string, fields ...Field) {
	l.entry(fields).Error(msg)
}

func (l *LogrusAdapter) entry(fields []Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return l.logger
	}
	lf := make(logrus.Fields, len(fields))
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			lf[logrus.ErrorKey] = v
		case time.Duration:
			lf[f.Key] = v.String()
		default:
			lf[f.Key] = v
		}
	}
	return l.logger.WithFields(lf)
}
