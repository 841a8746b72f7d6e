package events

import (
	"log/slog"
	"sync/atomic"
)

// FaultSink collects errors that are reported without aborting the operation
// that produced them.
type FaultSink interface {
	Report(err error)
}

// FaultFunc adapts a function to FaultSink.
type FaultFunc func(err error)

func (f FaultFunc) Report(err error) { f(err) }

// LogSink reports faults through logger, or slog.Default when logger is nil.
func LogSink(logger *slog.Logger) FaultSink {
	return FaultFunc(func(err error) {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.Error("Unhandled fault", "error", err)
	})
}

var defaultSink atomic.Pointer[FaultSink]

// DefaultSink returns the process-wide sink. Unless replaced it logs through
// slog.
func DefaultSink() FaultSink {
	if s := defaultSink.Load(); s != nil {
		return *s
	}
	return LogSink(nil)
}

// SetDefaultSink replaces the process-wide sink. nil restores logging.
func SetDefaultSink(s FaultSink) {
	if s == nil {
		defaultSink.Store(nil)
		return
	}
	defaultSink.Store(&s)
}

// Report sends err to the process-wide sink. nil errors are ignored.
func Report(err error) {
	if err == nil {
		return
	}
	DefaultSink().Report(err)
}
