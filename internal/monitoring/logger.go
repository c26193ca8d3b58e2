package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the pipeline and
// device layers. It defaults to log.Printf; tests silence it and tools
// redirect it via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
