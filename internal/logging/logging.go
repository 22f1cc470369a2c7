// Package logging wraps k8s.io/klog/v2 the way the teacher's
// logger/log package wraps its backing logger: a small set of
// leveled helpers the rest of the server calls instead of reaching
// for klog directly, so the backing implementation can change in one
// place.
package logging

import (
	"k8s.io/klog/v2"
)

// Infof logs at the informational level.
func Infof(format string, args ...interface{}) {
	klog.Infof(format, args...)
}

// Warnf logs at the warning level.
func Warnf(format string, args ...interface{}) {
	klog.Warningf(format, args...)
}

// Errorf logs at the error level.
func Errorf(format string, args ...interface{}) {
	klog.Errorf(format, args...)
}

// Debugf logs at verbosity level 1, the project's debug level.
func Debugf(format string, args ...interface{}) {
	klog.V(1).Infof(format, args...)
}

// ErrorS logs an error together with structured key/value context,
// mirroring klog.ErrorS's signature so call sites can attach
// workflow_id/job_id/etc. without building a format string.
func ErrorS(err error, msg string, keysAndValues ...interface{}) {
	klog.ErrorS(err, msg, keysAndValues...)
}

// InfoS logs a message together with structured key/value context.
func InfoS(msg string, keysAndValues ...interface{}) {
	klog.InfoS(msg, keysAndValues...)
}

// Flush flushes any buffered log entries. Called from the server's
// shutdown path.
func Flush() {
	klog.Flush()
}
