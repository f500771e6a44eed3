package tracker

import (
	"context"

	"github.com/ralphcli/ralph/internal/assignment"
)

// FileAdapter is the minimal built-in tracker: it surfaces the
// assignment.json the agent harness writes into the project directory, so
// ralph is usable standalone without a real issue tracker configured.
type FileAdapter struct {
	assignmentPath string
}

// NewFileAdapter returns an adapter reading the assignment file at path.
func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{assignmentPath: path}
}

// FetchTask reads the assignment file and presents it as a single Task
// keyed by its task_id — there is only ever one active assignment per
// project. An empty id matches that assignment; a non-empty id that differs
// from its task_id is reported as not present.
func (f *FileAdapter) FetchTask(ctx context.Context, id string) (Task, bool, error) {
	a, ok, err := assignment.Read(f.assignmentPath)
	if err != nil || !ok {
		return Task{}, false, err
	}
	if a.TaskID != id && id != "" {
		return Task{}, false, nil
	}

	status := "in-progress"
	if a.PullRequestURL != nil && *a.PullRequestURL != "" {
		status = "in-review"
	}

	return Task{
		ID:     a.TaskID,
		Title:  a.NextStep,
		Status: status,
		Type:   "task",
	}, true, nil
}
