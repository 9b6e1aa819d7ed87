// Package logger wraps logrus with component-scoped entries and the
// output/format options read from the logging config section.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields mirrors logrus.Fields so callers need not import logrus.
type Fields map[string]interface{}

// Log is the process logger.
type Log struct {
	*logrus.Logger
}

// Entry is a log entry carrying fields such as "component".
type Entry struct {
	*logrus.Entry
}

const (
	envLogLevel   = "LOG_LEVEL"
	logFileMaxMB  = 100
	logFileMode   = 0o644
	defaultLevel  = logrus.InfoLevel
	componentKey  = "component"
	durationField = "duration_ms"
)

var globalLogger = Logger()

// Logger creates a JSON logger at the LOG_LEVEL level, info by default.
func Logger() *Log {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetFormatter(jsonFormatter())
	l.AddHook(&callerHook{})

	level := defaultLevel
	if lvl, err := parseLevel(os.Getenv(envLogLevel)); err == nil {
		level = lvl
	}
	l.SetLevel(level)
	return &Log{Logger: l}
}

// GetLogger returns the process-wide logger.
func GetLogger() *Log {
	return globalLogger
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return defaultLevel, fmt.Errorf("empty log level")
	}
	return logrus.ParseLevel(strings.ToLower(s))
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

func jsonFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerPrettyfier,
	}
}

func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField(componentKey, component)}
}

func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

func (l *Log) WithError(err error) *Entry {
	return &Entry{Entry: l.Logger.WithError(err)}
}

func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField(componentKey, component)}
}

func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

// Warn logs at warn level and counts the entry against its component.
func (e *Entry) Warn(args ...interface{}) {
	if component, ok := e.Entry.Data[componentKey].(string); ok {
		recordWarn(component)
	}
	e.Entry.Warn(args...)
}

// Error logs at error level and counts the entry against its component.
func (e *Entry) Error(args ...interface{}) {
	if component, ok := e.Entry.Data[componentKey].(string); ok {
		recordError(component)
	}
	e.Entry.Error(args...)
}

// Configure applies the logging config section. LOG_LEVEL, when set, wins
// over level. output is stdout, stderr or a file path; files rotate through
// lumberjack when maxAge (days) is positive.
func (l *Log) Configure(level, format, output string, maxAge int) error {
	if env := os.Getenv(envLogLevel); env != "" {
		level = env
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level '%s'", level)
	}

	formatter, err := formatterFor(format)
	if err != nil {
		return err
	}

	out, err := outputFor(output, maxAge)
	if err != nil {
		return err
	}

	l.SetLevel(lvl)
	l.SetReportCaller(true)
	l.SetFormatter(formatter)
	l.SetOutput(out)
	return nil
}

func formatterFor(format string) (logrus.Formatter, error) {
	switch format {
	case "json", "":
		return jsonFormatter(), nil
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		}, nil
	default:
		return nil, fmt.Errorf("invalid log format '%s'", format)
	}
}

func outputFor(output string, maxAge int) (io.Writer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if maxAge > 0 {
		return &lumberjack.Logger{
			Filename: output,
			MaxAge:   maxAge,
			MaxSize:  logFileMaxMB,
			Compress: true,
		}, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file '%s': %w", output, err)
	}
	return file, nil
}

// LogPerformanceEntry records the duration of operation at debug level.
func LogPerformanceEntry(entry *Entry, component, operation string, duration time.Duration, fields Fields) {
	merged := make(Fields, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged[durationField] = float64(duration.Nanoseconds()) / 1e6
	merged["operation"] = operation

	entry.WithFields(merged).WithComponent(component).Debug("performance metric")
}
