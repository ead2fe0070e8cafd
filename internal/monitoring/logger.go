// Package monitoring holds the process-wide diagnostic logger shared by
// the renderer binary and the snapshot store.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Stage logs the duration of a named stage when the returned func is called.
//
//	defer monitoring.Stage("update")()
func Stage(name string) func() {
	start := time.Now()
	return func() {
		Logf("[stage] %s took %v", name, time.Since(start).Round(time.Microsecond))
	}
}
