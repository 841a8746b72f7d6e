// Package display turns progress events into human-readable status lines.
package display

// Task receives the status of one unit of work.
type Task interface {
	// Progress updates the completion percentage (0-100) and status message.
	// The percentage is 0 when the total size is unknown.
	Progress(percent int, message string)
	// Done marks the task as finished.
	Done()
}

// TaskFactory creates the Task shown for a download, keyed by task ID.
type TaskFactory func(id string) Task
