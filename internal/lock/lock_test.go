package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestWriteReadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := Write(path, 12345); err != nil {
		t.Fatal(err)
	}
	pid, ok := Read(path)
	if !ok || pid != 12345 {
		t.Fatalf("got (%d, %v), want (12345, true)", pid, ok)
	}
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if _, ok := Read(path); ok {
		t.Fatalf("expected ok=false for missing lock file")
	}
}

func TestReadMalformedContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, ok := Read(path); ok {
		t.Fatalf("expected ok=false for malformed contents")
	}
}

func TestAliveForCurrentProcess(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Fatalf("current process should be reported alive")
	}
}

func TestInspectStaleWhenProcessGone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	// PID 1 may or may not be reachable in this environment; instead use an
	// extremely unlikely-to-exist high PID to force "not alive".
	deadPID := 1 << 30
	if err := Write(path, deadPID); err != nil {
		t.Fatal(err)
	}
	status, pid := Inspect(path)
	if status != StatusStale || pid != deadPID {
		t.Fatalf("got (%v, %d), want (StatusStale, %d)", status, pid, deadPID)
	}
}

func TestInspectNoneWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	status, _ := Inspect(path)
	if status != StatusNone {
		t.Fatalf("got %v, want StatusNone", status)
	}
}

func TestAcquireFailsAgainstLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := Write(path, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if err := Acquire(path); err == nil {
		t.Fatalf("expected Acquire to fail against a live lock")
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := Write(path, 1<<30); err != nil {
		t.Fatal(err)
	}
	if err := Acquire(path); err != nil {
		t.Fatalf("Acquire should clear a stale lock: %v", err)
	}
	pid, ok := Read(path)
	if !ok || pid != os.Getpid() {
		t.Fatalf("got (%d, %v), want (%d, true)", pid, ok, os.Getpid())
	}
}

func TestRemoveMissingIsNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := Remove(path); err != nil {
		t.Fatalf("Remove on missing file should be a no-op, got %v", err)
	}
}

func TestAcquireWritesDecimalPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ralph.lock")
	if err := Acquire(path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strconv.Atoi(string(raw)); err != nil {
		t.Errorf("lock file contents %q are not a bare decimal PID", raw)
	}
}
