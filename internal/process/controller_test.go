package process

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ralphcli/ralph/internal/eventbus"
)

func TestStartSucceedsWhenLockBecomesLive(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "claude.lock")
	liveLog := filepath.Join(dir, "claude_output.jsonl")

	script := fakeAgentScriptUsingEnvLock(t, dir, lockPath)

	c := New(Config{
		AgentScript: script,
		ProjectRoot: dir,
		LockPath:    lockPath,
		LiveLogPath: liveLog,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if c.State() != StateRunning {
		t.Fatalf("state = %s, want running", c.State())
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("state after stop = %s, want idle", c.State())
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("expected lock file removed after stop")
	}
}

// fakeAgentScriptUsingEnvLock writes $$ to the given lock path directly
// (since our controller doesn't pass RALPH_LOCK_PATH as an env var, the
// script hardcodes the path baked in at test-generation time).
func fakeAgentScriptUsingEnvLock(t *testing.T, dir, lockPath string) string {
	t.Helper()
	path := filepath.Join(dir, "agent.sh")
	script := "#!/bin/sh\necho $$ > " + lockPath + "\nwhile true; do sleep 1; done\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStartFailsWhenScriptMissing(t *testing.T) {
	dir := t.TempDir()
	c := New(Config{
		AgentScript: filepath.Join(dir, "does-not-exist.sh"),
		ProjectRoot: dir,
		LockPath:    filepath.Join(dir, "claude.lock"),
		LiveLogPath: filepath.Join(dir, "claude_output.jsonl"),
	})
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error for missing agent script")
	}
	if c.State() != StateIdle {
		t.Fatalf("state after failed start = %s, want idle", c.State())
	}
	if c.Err() == nil {
		t.Fatalf("expected one-shot error cell to be populated")
	}
}

func TestConcurrentStartRejectedWhileBusy(t *testing.T) {
	c := &Controller{cfg: Config{}, state: StateStarting}
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected Start to reject while already starting")
	}
}

func TestResumeRejectedUnlessRunning(t *testing.T) {
	c := New(Config{})
	err := c.Resume(context.Background(), ResumePrompt{SessionID: "abc", Text: "hi"})
	if err == nil {
		t.Fatalf("expected Resume to fail when not running")
	}
}

func TestIsRunningLiveReflectsLockFile(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "claude.lock")
	c := New(Config{LockPath: lockPath})

	if c.IsRunningLive() {
		t.Fatalf("expected false with no lock file")
	}

	if err := os.WriteFile(lockPath, []byte("999999999"), 0644); err != nil {
		t.Fatal(err)
	}
	if c.IsRunningLive() {
		t.Fatalf("expected false for a PID that doesn't exist")
	}

	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatal(err)
	}
	if !c.IsRunningLive() {
		t.Fatalf("expected true for the current process's own PID")
	}
}

// TestReconcileBroadcastsOnStaleLock covers the background-poll path: a
// harness that dies out-of-band has no Update cycle to carry its error, so
// reconcile must push the transition onto the bus itself.
func TestReconcileBroadcastsOnStaleLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "claude.lock")
	if err := os.WriteFile(lockPath, []byte("999999999"), 0644); err != nil {
		t.Fatal(err)
	}

	bus := eventbus.New()
	var got []eventbus.Event
	bus.Subscribe("test", func(e eventbus.Event) { got = append(got, e) })

	c := New(Config{LockPath: lockPath, Bus: bus})
	c.state = StateRunning

	c.reconcile()

	if c.State() != StateIdle {
		t.Fatalf("state after reconcile = %s, want idle", c.State())
	}
	if c.Err() == nil {
		t.Fatalf("expected reconcile to populate the error cell")
	}
	if len(got) != 1 || got[0].Name != eventbus.EventProcessState {
		t.Fatalf("got %v, want one EventProcessState broadcast", got)
	}
}

func TestReconcileDoesNotBroadcastWhenStillLive(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "claude.lock")
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatal(err)
	}

	bus := eventbus.New()
	var calls int
	bus.Subscribe("test", func(eventbus.Event) { calls++ })

	c := New(Config{LockPath: lockPath, Bus: bus})
	c.state = StateRunning

	c.reconcile()

	if c.State() != StateRunning {
		t.Fatalf("state = %s, want running (lock still live)", c.State())
	}
	if calls != 0 {
		t.Fatalf("expected no broadcast when the harness is still live, got %d", calls)
	}
}
