package display

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"updater/pkg/events"
)

type recordTask struct {
	updates []string
	done    int
}

func (r *recordTask) Progress(percent int, message string) {
	r.updates = append(r.updates, message)
}

func (r *recordTask) Done() { r.done++ }

func TestReporterKnownTotal(t *testing.T) {
	rec := &recordTask{}
	r := NewReporter(func(string) Task { return rec })
	start := time.Unix(1000, 0)
	clock := start
	r.now = func() time.Time { return clock }

	bus := events.NewBus[events.ProgressEvent](nil)
	r.Attach(bus, "display")

	for _, n := range []int64{1000, 1000, 1005, 2000} {
		clock = clock.Add(time.Second)
		bus.Publish(events.ProgressEvent{TaskID: "a", Transferred: n, Total: 2000})
	}

	// 1000 twice is the same percentage; 1005 too.
	if len(rec.updates) != 2 {
		t.Fatalf("Expected 2 updates, got %v", rec.updates)
	}
	if !strings.Contains(rec.updates[1], "2.0 kB / 2.0 kB") {
		t.Errorf("Unexpected message %q", rec.updates[1])
	}
	if rec.done != 1 {
		t.Errorf("Expected task done once, got %d", rec.done)
	}
	if len(r.tasks) != 0 {
		t.Errorf("Expected finished task forgotten")
	}
}

func TestReporterUnknownTotal(t *testing.T) {
	rec := &recordTask{}
	r := NewReporter(func(string) Task { return rec })
	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	for i := 1; i <= 5; i++ {
		clock = clock.Add(400 * time.Millisecond)
		r.Handle(events.ProgressEvent{TaskID: "b", Transferred: int64(i * 1000)})
	}

	// Emitted at 0.4s, then after the interval at 1.6s.
	if len(rec.updates) != 2 {
		t.Fatalf("Expected 2 updates, got %v", rec.updates)
	}
	if rec.updates[0] != "1.0 kB downloaded" {
		t.Errorf("Unexpected message %q", rec.updates[0])
	}

	r.Finish("b")
	r.Finish("b")
	if rec.done != 1 {
		t.Errorf("Expected task done once, got %d", rec.done)
	}
}

func TestWriterTasks(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewReporter(WriterTasks(buf))
	r.Handle(events.ProgressEvent{TaskID: "dl", Transferred: 50, Total: 100})
	r.Handle(events.ProgressEvent{TaskID: "dl", Transferred: 100, Total: 100})

	output := buf.String()
	if !strings.Contains(output, "[dl]  50%") {
		t.Errorf("Expected 50%% line, got: %q", output)
	}
	if !strings.Contains(output, "[dl] 100%") || !strings.Contains(output, "[dl] Done") {
		t.Errorf("Expected completion lines, got: %q", output)
	}
}

func TestLogTasks(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	task := LogTasks(logger)("dl")
	task.Progress(42, "going")
	task.Done()

	output := buf.String()
	if !strings.Contains(output, "percent=42") || !strings.Contains(output, "status=going") {
		t.Errorf("Unexpected log output: %q", output)
	}
	if !strings.Contains(output, "msg=Done") {
		t.Errorf("Expected Done record, got: %q", output)
	}
}
