// Package assignment reads the task assignment document the agent harness
// writes into a project's .ralph directory.
package assignment

import (
	"encoding/json"
	"fmt"
	"os"
)

// Assignment is the agent-authored record of the task currently in
// progress. It is created by the agent, read by Ralph, and deleted by
// Ralph once the work is complete.
type Assignment struct {
	TaskID         string  `json:"task_id"`
	NextStep       string  `json:"next_step"`
	PullRequestURL *string `json:"pull_request_url"`
}

// Read loads the assignment at path. A missing file is reported as a
// distinct, non-fatal condition (ok=false, err=nil) since the agent may not
// have written one yet — read races with the agent's own atomic
// write-then-rename are expected and tolerated.
func Read(path string) (a *Assignment, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read assignment: %w", err)
	}

	var out Assignment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, fmt.Errorf("parse assignment: %w", err)
	}
	return &out, true, nil
}

// Delete removes the assignment file. Missing files are not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove assignment: %w", err)
	}
	return nil
}
