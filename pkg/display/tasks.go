package display

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// logTask reports through slog.
// Immutable
type logTask struct {
	logger *slog.Logger
	name   string
}

// LogTasks returns a TaskFactory whose Tasks log at info level through
// logger, or slog.Default when logger is nil.
func LogTasks(logger *slog.Logger) TaskFactory {
	return func(id string) Task {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		return logTask{logger: l, name: id}
	}
}

func (t logTask) Progress(percent int, message string) {
	t.logger.Info("Progress", "task", t.name, "percent", percent, "status", message)
}

func (t logTask) Done() {
	t.logger.Info("Done", "task", t.name)
}

// writerTask prints one status line per update.
// Mutable
type writerTask struct {
	mu   *sync.Mutex
	out  io.Writer
	name string
}

// WriterTasks returns a TaskFactory whose Tasks print to w. Lines from
// different tasks are not interleaved.
func WriterTasks(w io.Writer) TaskFactory {
	mu := &sync.Mutex{}
	return func(id string) Task {
		return &writerTask{mu: mu, out: w, name: id}
	}
}

func (t *writerTask) Progress(percent int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] %3d%% %s\n", t.name, percent, message)
}

func (t *writerTask) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%s] Done\n", t.name)
}
