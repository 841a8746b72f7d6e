package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"updater/pkg/fspath"
)

// Lock locks target by creating target+".lock" holding a timestamp and the
// owner PID. If another live process owns the lock, Lock waits; a lock left by
// a dead process is removed and taken over. Waiting stops when ctx is done.
func Lock(ctx context.Context, target fspath.Path) (func() error, error) {
	lockFile := fspath.Begin(target.String() + ".lock").ForceDir(false)

	if _, err := lockFile.Prepare(); err != nil {
		return nil, fmt.Errorf("failed to create parent dir for lock: %w", err)
	}

	for {
		f, err := os.OpenFile(lockFile.String(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), os.Getpid())
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				os.Remove(lockFile.String())
				return nil, fmt.Errorf("failed to write to lock file: %w", err)
			}
			f.Close()

			return func() error {
				return os.Remove(lockFile.String())
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		content, err := os.ReadFile(lockFile.String())
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if err := wait(ctx, 100*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		pid, ok := parseOwner(content)
		if !ok {
			slog.Debug("Removing corrupt lock", "path", lockFile)
			os.Remove(lockFile.String())
			continue
		}

		if isPidAlive(pid) {
			if err := wait(ctx, 200*time.Millisecond); err != nil {
				return nil, err
			}
			continue
		}

		slog.Debug("Removing stale lock", "path", lockFile, "pid", pid)
		os.Remove(lockFile.String())
	}
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseOwner extracts the PID, the last field of the lock content.
func parseOwner(content []byte) (int, bool) {
	parts := strings.Fields(string(content))
	if len(parts) < 2 {
		return 0, false
	}
	pid, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, false
	}
	return pid, true
}

func isPidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 checks existence.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	if errors.Is(err, syscall.ESRCH) || errors.Is(err, os.ErrProcessDone) {
		return false
	}

	// EPERM: the process exists but belongs to someone else.
	return true
}
