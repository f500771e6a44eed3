// Package tailer watches a JSONL log file and emits new lines as they are
// appended, detecting truncation/rotation and surfacing transient errors
// without ever terminating the stream.
package tailer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is used when the caller does not specify one.
// Polling is deliberate even with fsnotify wired in: inotify-style watchers
// are unreliable on networked or externally-edited files, so the poll tick
// remains the source of truth and the watcher only makes it fire sooner.
const DefaultPollInterval = 500 * time.Millisecond

// Event is one notification emitted by the Tailer.
type Event struct {
	// Lines are new, trimmed, non-empty lines read since the last event.
	Lines []string
	// Reset is true when the assembler must clear all state before Lines
	// (if any) are applied: a rotation/truncation or an explicit path switch.
	Reset bool
	// Err is a transient, non-fatal error (missing file, read failure).
	Err error
}

// ErrNotFound is surfaced once when the watched file does not exist.
var ErrNotFound = errors.New("tailer: file not found")

// Tailer watches one file path at a time and streams new content.
type Tailer struct {
	path         string
	pollInterval time.Duration

	offset  int64
	pending []byte // bytes read past the last complete line
	missing bool    // true after we've already reported ErrNotFound once

	events     chan Event
	switchPath chan string
}

// New creates a Tailer for path. pollInterval <= 0 uses DefaultPollInterval.
func New(path string, pollInterval time.Duration) *Tailer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Tailer{
		path:         path,
		pollInterval: pollInterval,
		events:       make(chan Event, 64),
		switchPath:   make(chan string, 1),
	}
}

// Events returns the channel new notifications arrive on. The channel is
// closed when Run's context is cancelled.
func (t *Tailer) Events() <-chan Event {
	return t.events
}

// SwitchPath points the tailer at a different file (e.g. an archived
// session picked in the view model). It always produces a Reset.
func (t *Tailer) SwitchPath(path string) {
	t.switchPath <- path
}

// Run starts the background watch/poll loop. It returns once ctx is done.
func (t *Tailer) Run(ctx context.Context) {
	defer close(t.events)

	watcher, werr := fsnotify.NewWatcher()
	if werr == nil {
		defer watcher.Close()
		t.addWatch(watcher)
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	t.check(true)

	for {
		var watchEvents chan fsnotify.Event
		var watchErrors chan error
		if watcher != nil {
			watchEvents = watcher.Events
			watchErrors = watcher.Errors
		}

		select {
		case <-ctx.Done():
			return

		case newPath := <-t.switchPath:
			if watcher != nil {
				watcher.Remove(filepath.Dir(t.path))
			}
			t.path = newPath
			t.offset = 0
			t.pending = nil
			t.missing = false
			if watcher != nil {
				t.addWatch(watcher)
			}
			t.events <- Event{Reset: true}
			t.check(false)

		case <-ticker.C:
			t.check(false)

		case we, ok := <-watchEvents:
			if !ok {
				continue
			}
			if filepath.Clean(we.Name) == filepath.Clean(t.path) {
				t.check(false)
			}

		case _, ok := <-watchErrors:
			if !ok {
				continue
			}
			// Watcher errors are not fatal; the poll tick keeps us honest.
		}
	}
}

func (t *Tailer) addWatch(watcher *fsnotify.Watcher) {
	dir := filepath.Dir(t.path)
	watcher.Add(dir)
}

// check stats the file and reacts to its size relative to the last known
// offset. initial controls whether the very first successful stat is
// treated as "start of file" (offset 0) rather than "new content".
func (t *Tailer) check(initial bool) {
	info, err := os.Stat(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			if !t.missing {
				t.missing = true
				t.events <- Event{Err: ErrNotFound}
			}
			return
		}
		t.events <- Event{Err: err}
		return
	}

	if t.missing {
		// File reappeared (archive + fresh empty log, or harness restart).
		t.missing = false
		t.offset = 0
		t.pending = nil
	}

	size := info.Size()

	switch {
	case initial:
		t.readRange(0, size)
		t.offset = size
	case size < t.offset:
		// Rotation/truncation: reset state before applying the new suffix.
		t.offset = 0
		t.pending = nil
		lines := t.readLines(0, size)
		t.offset = size
		t.events <- Event{Reset: true, Lines: lines}
	case size > t.offset:
		lines := t.readLines(t.offset, size)
		t.offset = size
		if len(lines) > 0 {
			t.events <- Event{Lines: lines}
		}
	}
}

func (t *Tailer) readRange(from, to int64) {
	lines := t.readLines(from, to)
	if len(lines) > 0 {
		t.events <- Event{Lines: lines}
	}
}

func (t *Tailer) readLines(from, to int64) []string {
	if to <= from {
		return nil
	}
	f, err := os.Open(t.path)
	if err != nil {
		t.events <- Event{Err: err}
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		t.events <- Event{Err: err}
		return nil
	}

	buf := make([]byte, to-from)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		t.events <- Event{Err: err}
	}
	buf = buf[:n]

	data := append(t.pending, buf...)
	t.pending = nil

	parts := strings.Split(string(data), "\n")
	// The last element is either "" (data ended on a newline) or an
	// incomplete line — hold it back for the next read either way.
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if last != "" {
			t.pending = []byte(last)
		}
		parts = parts[:len(parts)-1]
	}

	var lines []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
