// Package monitoring holds the package-level diagnostic logger shared by the
// relay and visualizer components.
package monitoring

import "log"

// Logf is the diagnostic logger used across the repository. It defaults to
// log.Printf; tests or embedders can redirect or mute it via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
