// Package monitoring carries the diagnostic logger shared by the pipeline
// stages. Core packages never call the log package directly so that a run
// embedded in a test or another tool can redirect or mute their output.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stage returns a logger that prefixes every line with "[name] ". The
// returned function resolves Logf at call time, so a later SetLogger still
// applies to stage loggers created earlier.
func Stage(name string) func(format string, v ...interface{}) {
	prefix := "[" + name + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
