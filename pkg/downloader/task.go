package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"updater/pkg/cache"
	"updater/pkg/events"
	"updater/pkg/fspath"
	"updater/pkg/metrics"
)

// State is the lifecycle stage of a Task.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Task is one download. It runs once, on the goroutine that calls Run, and
// can be stopped from any goroutine through Stop.
type Task struct {
	ID string

	m   *Manager
	req Request

	state       atomic.Int32
	stop        atomic.Bool
	transferred atomic.Int64
}

func newTask(m *Manager, req Request) *Task {
	return &Task{
		ID:  uuid.NewString(),
		m:   m,
		req: req,
	}
}

// State returns the current lifecycle stage.
func (t *Task) State() State {
	return State(t.state.Load())
}

// Transferred returns the number of bytes written so far.
func (t *Task) Transferred() int64 {
	return t.transferred.Load()
}

// Stop asks a running task to stop after its current chunk. It has no effect
// on a task that has not started or has already finished.
func (t *Task) Stop() {
	switch t.State() {
	case StateConnecting, StateStreaming:
		t.stop.Store(true)
	}
}

// Run performs the download. A stop request makes it return an error wrapping
// ErrStopped and leaves the bytes already written on disk. A missing resource
// yields a nil Result and a nil error.
func (t *Task) Run(ctx context.Context) (res *Result, err error) {
	if !t.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return nil, fmt.Errorf("task %s already started", t.ID)
	}
	t.m.track(t)
	defer t.m.untrack(t)

	absent := false
	defer func() {
		final := StateCompleted
		outcome := final.String()
		switch {
		case err == nil && absent:
			outcome = "absent"
		case errors.Is(err, ErrStopped):
			final, outcome = StateCancelled, StateCancelled.String()
		case err != nil:
			final, outcome = StateFailed, StateFailed.String()
		}
		t.state.Store(int32(final))
		metrics.RecordDownload(outcome)
	}()

	if t.m.cfg.IsOffline() {
		return nil, ErrNoConnection
	}

	uri := escapeURL(t.req.URL)
	handler, err := t.m.handlerFor(uri)
	if err != nil {
		return nil, err
	}

	dest := t.req.Destination
	if t.req.UseOriginalName {
		name := fileNameFromURL(t.req.URL)
		if name == "" {
			return nil, fmt.Errorf("no file name in url %s", t.req.URL)
		}
		dest = dest.To(name)
	}
	dest = dest.ForceDir(false)
	if _, err := dest.Prepare(); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", dest, err)
	}

	unlock, err := cache.Lock(ctx, dest)
	if err != nil {
		return nil, err
	}
	defer unlock()

	slog.Info("Downloading", "url", t.req.URL, "path", dest, "task", t.ID)

	resp, err := handler.Open(ctx, uri, t.req.Headers)
	if errors.Is(err, ErrNotFound) {
		slog.Debug("Resource not found", "url", t.req.URL)
		absent = true
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.Length
	if total < 0 {
		total = 0
	}

	if err := t.stream(ctx, resp.Body, dest, uri, total); err != nil {
		return nil, err
	}

	if !resp.LastModified.IsZero() {
		if err := os.Chtimes(dest.String(), resp.LastModified, resp.LastModified); err != nil {
			slog.Warn("Failed to set modification time", "path", dest, "error", err)
		}
	}

	slog.Info("Download complete", "path", dest, "bytes", t.Transferred())

	return &Result{
		Path:         fspath.Begin(dest.String()),
		Transferred:  t.Transferred(),
		Total:        total,
		LastModified: resp.LastModified,
	}, nil
}

func (t *Task) stream(ctx context.Context, body io.Reader, dest fspath.Path, uri string, total int64) error {
	f, err := os.Create(dest.String())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer f.Close()

	t.state.Store(int32(StateStreaming))

	buf := make([]byte, t.m.cfg.GetChunkSize())
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write %s: %w", dest, err)
			}
			written := t.transferred.Add(int64(n))
			metrics.RecordBytes(n)

			if t.req.ReportProgress {
				t.m.bus.Publish(events.ProgressEvent{
					Key:         events.KeyDownload,
					TaskID:      t.ID,
					Transferred: written,
					Total:       total,
				})
			}

			if t.stop.CompareAndSwap(true, false) {
				slog.Info("Download stopped", "path", dest, "bytes", written)
				return ErrStopped
			}
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrStopped, ctx.Err())
			}
			return t.m.classifier.Classify(rerr, nil, uri)
		}
	}

	return f.Close()
}
