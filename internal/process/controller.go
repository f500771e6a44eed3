// Package process supervises the external agent harness: spawning it
// detached, probing liveness through the lock file, and tearing it down on
// stop/resume. It deliberately does not supervise the child in-process —
// the harness is expected to outlive a crashed or restarted Ralph.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ralphcli/ralph/internal/eventbus"
	"github.com/ralphcli/ralph/internal/lock"
)

// State mirrors the controller's externally-observable lifecycle.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateResuming State = "resuming"
)

const (
	livenessCheckDelay   = 2 * time.Second
	backgroundPollPeriod = 5 * time.Second
	terminationGrace     = 200 * time.Millisecond
)

// Config carries the paths and invocation details the controller needs.
// These come from the loaded Configuration (component F).
type Config struct {
	AgentScript string // executable path, run directly (no shell) with cwd=ProjectRoot
	ProjectRoot string
	LockPath    string
	LiveLogPath string

	// ResumeArgs is passed as arguments to AgentScript on every spawn;
	// Resume additionally appends "--resume <session_id>" after them.
	ResumeArgs []string

	// Bus, if non-nil, receives an EventProcessState broadcast on every
	// state transition, including the background poll's reconcile() —
	// the only way the view model learns of a harness that died out of
	// band between key presses.
	Bus *eventbus.Bus
}

// Controller serializes start/stop/resume against a single agent harness
// instance. All exported methods are safe for concurrent use; a request
// made while another is in flight is rejected rather than queued.
type Controller struct {
	cfg Config

	mu    sync.Mutex
	state State
	err   error // one-shot error cell, per spec §7; cleared on next success
}

// New returns an idle controller for cfg.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg, state: StateIdle}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns and clears the one-shot error cell.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	return err
}

func (c *Controller) setErr(err error) {
	c.err = err
}

// notify broadcasts the controller's current state on the bus, if one is
// configured. Called after every transition lands (including the
// background poll's reconcile), never while c.mu is held — Broadcast runs
// subscriber handlers synchronously and must not be able to deadlock
// against a concurrent State()/Err() call.
func (c *Controller) notify() {
	if c.cfg.Bus == nil {
		return
	}
	c.cfg.Bus.Broadcast(eventbus.Event{Name: eventbus.EventProcessState, Payload: c.State()})
}

// beginLocked moves into a busy state, rejecting the request if the
// controller is already mid-transition.
func (c *Controller) beginLocked(busy State) error {
	switch c.state {
	case StateStarting, StateStopping, StateResuming:
		return fmt.Errorf("process: %s already in progress", c.state)
	}
	c.state = busy
	return nil
}

// Start spawns the agent harness detached from Ralph's process group, then
// waits briefly and confirms the lock file shows a live PID.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if err := c.beginLocked(StateStarting); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.doStart(ctx, nil); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.setErr(err)
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	c.notify()
	return nil
}

// doStart performs the actual spawn and liveness confirmation. stdin, if
// non-nil, is piped to the child (used by Resume).
func (c *Controller) doStart(ctx context.Context, stdin []byte) error {
	if _, err := os.Stat(c.cfg.AgentScript); err != nil {
		return fmt.Errorf("agent script not found: %w", err)
	}

	args := append([]string{}, c.cfg.ResumeArgs...)
	cmd := exec.Command(c.cfg.AgentScript, args...)
	cmd.Dir = c.cfg.ProjectRoot
	cmd.Env = append(os.Environ(), "RALPH_PROJECT_DIR="+c.cfg.ProjectRoot)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	} else {
		cmd.Stdin = nil
	}
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn agent script: %w", err)
	}
	// Detach: we never Wait() on this process. The OS reparents it once
	// Ralph exits; reaping is the agent harness's and init's concern, not
	// ours — Ralph supervises via the lock file, not a child handle.
	go cmd.Process.Release()

	select {
	case <-time.After(livenessCheckDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	status, pid := lock.Inspect(c.cfg.LockPath)
	if status != lock.StatusLive {
		return fmt.Errorf("failed to start: agent did not report a live PID (status=%v)", status)
	}
	_ = pid
	return nil
}

// IsRunningLive reads the lock file and probes the recorded PID directly,
// independent of the controller's own in-memory state — used by the
// background poll and by callers who want a fresh answer.
func (c *Controller) IsRunningLive() bool {
	status, _ := lock.Inspect(c.cfg.LockPath)
	return status == lock.StatusLive
}

// Stop performs the best-effort shutdown sequence. It always ends in
// StateIdle, regardless of which sub-steps succeeded.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if err := c.beginLocked(StateStopping); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.doStop()

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Controller) doStop() {
	if pid, ok := lock.Read(c.cfg.LockPath); ok {
		if proc, err := os.FindProcess(pid); err == nil {
			if pgid, err := syscall.Getpgid(pid); err == nil {
				syscall.Kill(-pgid, syscall.SIGTERM)
			} else {
				proc.Signal(syscall.SIGTERM)
			}
		}
	}

	c.sweepByCommandLine()

	lock.Remove(c.cfg.LockPath)

	time.Sleep(terminationGrace)
}

// sweepByCommandLine is a best-effort fallback for processes the lock file
// never captured (e.g. a helper script spawned by the harness itself).
// Scanning /proc is Linux-specific; failures here are swallowed, matching
// the spec's "best-effort" framing for this sub-step.
func (c *Controller) sweepByCommandLine() {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return
	}
	patterns := []string{"ralph.sh", "sync.sh", ".ralph/"}
	for _, e := range entries {
		pid := parsePID(e.Name())
		if pid <= 0 {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join("/proc", e.Name(), "cmdline"))
		if err != nil {
			continue
		}
		text := strings.ReplaceAll(string(cmdline), "\x00", " ")
		for _, p := range patterns {
			if strings.Contains(text, p) {
				if proc, err := os.FindProcess(pid); err == nil {
					proc.Signal(syscall.SIGTERM)
				}
				break
			}
		}
	}
}

func parsePID(name string) int {
	n := 0
	for _, r := range name {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// ResumePrompt is supplied by the caller after reading and substituting the
// resume template (component G); Controller does not own template
// resolution.
type ResumePrompt struct {
	SessionID    string
	Text         string // resume template output + appended user feedback
	LiveLogEvent []byte // pre-encoded synthetic `user` JSONL line to append
}

// Resume stops the current harness, appends a synthetic user event to the
// live log so the TUI reflects exactly what is being sent, then restarts
// the harness with a resume token and the prompt piped on stdin.
func (c *Controller) Resume(ctx context.Context, p ResumePrompt) error {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return fmt.Errorf("process: resume is only valid while running (state=%s)", c.state)
	}
	if err := c.beginLocked(StateResuming); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.doStop()

	if err := appendLine(c.cfg.LiveLogPath, p.LiveLogEvent); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.setErr(err)
		c.mu.Unlock()
		c.notify()
		return err
	}

	resumeCfg := c.cfg
	resumeCfg.ResumeArgs = append(append([]string{}, c.cfg.ResumeArgs...), "--resume", p.SessionID)
	saved := c.cfg
	c.cfg = resumeCfg
	err := c.doStart(ctx, []byte(p.Text))
	c.cfg = saved

	c.mu.Lock()
	if err != nil {
		c.state = StateIdle
		c.setErr(err)
	} else {
		c.state = StateRunning
	}
	c.mu.Unlock()
	c.notify()
	return err
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("append synthetic event: %w", err)
	}
	defer f.Close()
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append synthetic event: %w", err)
	}
	return nil
}

// PollLiveness runs the background liveness poll described in the design:
// every backgroundPollPeriod, recompute IsRunningLive and reconcile state —
// this is how the controller notices the harness died out-of-band. It
// blocks until ctx is done.
func (c *Controller) PollLiveness(ctx context.Context) {
	ticker := time.NewTicker(backgroundPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reconcile()
		}
	}
}

func (c *Controller) reconcile() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	stale := !c.IsRunningLive()
	if stale {
		c.state = StateIdle
		c.setErr(fmt.Errorf("process: agent harness is no longer running (stale lock)"))
	}
	c.mu.Unlock()

	if stale {
		c.notify()
	}
}
