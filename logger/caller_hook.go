package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const loggerPackagePath = "alanocrypto-admin-sub000/logger"

// callerHook adjusts the caller reported by logrus so it points
// to the original call site outside of the logger package.
type callerHook struct{}

// Levels returns all log levels for this hook.
func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire sets the entry's Caller to the first frame outside of logrus
// and this package.
func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	// Skip runtime.Callers, this method, logrus internals and our wrappers.
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fn := frame.Function
		if fn != "" && !strings.Contains(fn, "sirupsen/logrus") && !strings.Contains(fn, loggerPackagePath) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}
