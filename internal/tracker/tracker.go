// Package tracker defines the task-tracker adapter interface the view
// model consumes, and selects a concrete adapter by configured provider.
package tracker

import (
	"context"
	"errors"
	"time"
)

// Task is the subset of tracker fields the view model displays.
type Task struct {
	ID        string
	Title     string
	Status    string
	Type      string
	Priority  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Adapter fetches task metadata from an external or local tracker.
type Adapter interface {
	// FetchTask returns the task for id. IsPresent reports whether it
	// could find a record at all (a tracker being unreachable and a task
	// simply not existing are both "not present" from the view's
	// perspective — the distinction belongs in the returned error, if
	// any, not in this boolean).
	FetchTask(ctx context.Context, id string) (task Task, isPresent bool, err error)
}

// ErrProviderNotConfigured is returned by New for providers that are
// specified by the interface but have no adapter implementation wired in.
var ErrProviderNotConfigured = errors.New("tracker: provider not configured")

// New returns the adapter for provider, configured with cfg. Only "file"
// (the built-in reference adapter reading assignment.json) has a concrete
// implementation; the rest are real providers the spec names as external
// collaborators to be configured, not built, here.
func New(provider string, cfg map[string]any) (Adapter, error) {
	switch provider {
	case "", "file":
		path, _ := cfg["assignment_path"].(string)
		return NewFileAdapter(path), nil
	case "vibe-kanban", "github-issues", "jira", "linear", "beads":
		return nil, ErrProviderNotConfigured
	default:
		return nil, ErrProviderNotConfigured
	}
}
