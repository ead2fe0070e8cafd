package l2grid

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters routes grid logging: ops gets failed updates, diag gets
// one line per update, reset or snapshot, and trace gets per-task sweep
// detail. A nil writer silences its stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[l2grid] ", ops)
	diagLogger = newLogger("[l2grid] ", diag)
	traceLogger = newLogger("[l2grid] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
