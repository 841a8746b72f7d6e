package display

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"updater/pkg/events"
)

// DefaultInterval is the minimum time between updates for transfers of
// unknown size.
const DefaultInterval = time.Second

// Reporter is an EventBus subscriber that formats download progress and
// forwards it to one Task per download. Updates are emitted when the
// percentage changes, or at most once per interval when the total is
// unknown.
// Mutable
type Reporter struct {
	newTask  TaskFactory
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	tasks map[string]*tracked
}

// Mutable
type tracked struct {
	task        Task
	start       time.Time
	lastPercent int
	lastEmit    time.Time
}

// NewReporter creates a Reporter creating Tasks with newTask.
func NewReporter(newTask TaskFactory) *Reporter {
	return &Reporter{
		newTask:  newTask,
		interval: DefaultInterval,
		now:      time.Now,
		tasks:    make(map[string]*tracked),
	}
}

// Attach subscribes the reporter to bus under key.
func (r *Reporter) Attach(bus *events.Bus[events.ProgressEvent], key string) {
	bus.Subscribe(key, r.Handle, false)
}

// Handle processes one progress event.
func (r *Reporter) Handle(e events.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t, ok := r.tasks[e.TaskID]
	if !ok {
		t = &tracked{task: r.newTask(e.TaskID), start: now, lastPercent: -1}
		r.tasks[e.TaskID] = t
	}

	percent := e.Percent()
	complete := e.Known() && e.Transferred >= e.Total

	switch {
	case complete:
	case e.Known() && percent != t.lastPercent:
	case !e.Known() && now.Sub(t.lastEmit) >= r.interval:
	default:
		return nil
	}

	t.task.Progress(percent, message(e, now.Sub(t.start)))
	t.lastPercent = percent
	t.lastEmit = now

	if complete {
		t.task.Done()
		delete(r.tasks, e.TaskID)
	}
	return nil
}

// Finish ends the Task of a download that stopped before reaching its total,
// or whose total was unknown.
func (r *Reporter) Finish(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[taskID]; ok {
		t.task.Done()
		delete(r.tasks, taskID)
	}
}

func message(e events.ProgressEvent, elapsed time.Duration) string {
	if !e.Known() {
		return fmt.Sprintf("%s downloaded", humanize.Bytes(uint64(e.Transferred)))
	}
	var speed float64
	if s := elapsed.Seconds(); s > 0 {
		speed = float64(e.Transferred) / s
	}
	return fmt.Sprintf("%s / %s (%s/s)",
		humanize.Bytes(uint64(e.Transferred)),
		humanize.Bytes(uint64(e.Total)),
		humanize.Bytes(uint64(speed)))
}
