package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"updater/pkg/fspath"
)

func TestLockSimple(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("myfile.bin")

	unlock, err := Lock(context.Background(), target)
	if err != nil {
		t.Fatalf("Failed to lock: %v", err)
	}

	if _, err := os.Stat(target.String() + ".lock"); os.IsNotExist(err) {
		t.Errorf("Lock file not created")
	}

	if err := unlock(); err != nil {
		t.Errorf("Failed to unlock: %v", err)
	}

	if _, err := os.Stat(target.String() + ".lock"); !os.IsNotExist(err) {
		t.Errorf("Lock file should be gone")
	}
}

func TestLockStale(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("stale.bin")
	lockFile := target.String() + ".lock"

	var stalePid int
	for i := 32000; i < 60000; i++ {
		proc, _ := os.FindProcess(i)
		if err := proc.Signal(syscall.Signal(0)); err == syscall.ESRCH {
			stalePid = i
			break
		}
	}
	if stalePid == 0 {
		stalePid = 9999999
	}

	content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), stalePid)
	if err := os.WriteFile(lockFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		unlock, err := Lock(context.Background(), target)
		if err != nil {
			t.Errorf("Failed to acquire lock over stale one: %v", err)
			return
		}
		unlock()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for lock acquisition - isPidAlive returned true for %d?", stalePid)
	}
}

func TestLockCorrupt(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("corrupt.bin")
	if err := os.WriteFile(target.String()+".lock", []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	unlock, err := Lock(context.Background(), target)
	if err != nil {
		t.Fatalf("Failed to lock over corrupt lock file: %v", err)
	}
	unlock()
}

func TestLockContextCancel(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("held.bin")

	unlock, err := Lock(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = Lock(ctx, target)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while waiting, got %v", err)
	}
}

func TestLockConcurrent(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("concurrent.bin")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		unlock, err := Lock(context.Background(), target)
		if err != nil {
			t.Errorf("G1 failed to lock: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
		unlock()
	}()

	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		start := time.Now()
		unlock, err := Lock(context.Background(), target)
		if err != nil {
			t.Errorf("G2 failed to lock: %v", err)
			return
		}
		if d := time.Since(start); d < 300*time.Millisecond {
			t.Errorf("G2 acquired lock too fast (%v), expected waiting for G1", d)
		}
		unlock()
	}()

	wg.Wait()
}

func TestEnsure(t *testing.T) {
	target := fspath.Begin(t.TempDir()).To("ensure_target.txt")

	var mu sync.Mutex
	callCount := 0
	fn := func() error {
		mu.Lock()
		callCount++
		mu.Unlock()
		time.Sleep(100 * time.Millisecond)
		return target.WriteString("done")
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := Ensure(context.Background(), target, fn); err != nil {
				t.Errorf("Ensure failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if callCount != 1 {
		t.Errorf("Expected fn to be called once, got %d", callCount)
	}
	if got := target.ReadString(); got != "done" {
		t.Errorf("Expected content 'done', got %q", got)
	}
}
