// Package bootstrap seeds the on-disk layout `ralph init` and the TUI both
// rely on: the top-level .ralph directory plus a per-project subtree under
// .ralph/projects/<name>/.
package bootstrap

import (
	"embed"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

const (
	ExecuteFile    = "execute.md"
	AssignmentFile = "assignment.json"
)

// ScaffoldFiles lists the per-project template files seeded by
// EnsureProjectFiles, in order.
var ScaffoldFiles = []string{ExecuteFile}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspaceFiles creates the top-level .ralph directory if missing.
// It never overwrites settings.json; that is the caller's responsibility
// (see cmd/init.go, which honors --force).
func EnsureWorkspaceFiles(ralphDir string) ([]string, error) {
	if err := os.MkdirAll(ralphDir, 0755); err != nil {
		return nil, err
	}
	return nil, nil
}

// EnsureProjectFiles seeds a project's template subtree under
// .ralph/projects/<name>/, writing an empty assignment.json and the
// execute.md template. Only files that don't already exist are written.
// Returns the list of files that were created.
func EnsureProjectFiles(projectDir string) ([]string, error) {
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return nil, err
	}

	var created []string
	for _, name := range ScaffoldFiles {
		ok, err := seedTemplate(projectDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}

	ok, err := seedEmptyAssignment(projectDir)
	if err != nil {
		slog.Warn("bootstrap: failed to seed assignment file", "error", err)
	} else if ok {
		created = append(created, AssignmentFile)
	}

	return created, nil
}

// seedTemplate writes an embedded template file to dir if it doesn't exist.
// Returns true if the file was created, false if it already exists.
func seedTemplate(dir, name string) (bool, error) {
	dstPath := filepath.Join(dir, name)

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// seedEmptyAssignment writes a placeholder assignment.json with no task
// assigned yet, unless one already exists.
func seedEmptyAssignment(dir string) (bool, error) {
	dstPath := filepath.Join(dir, AssignmentFile)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	empty := struct {
		TaskID   string `json:"task_id"`
		NextStep string `json:"next_step"`
	}{}
	data, err := json.MarshalIndent(empty, "", "  ")
	if err != nil {
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		return false, err
	}
	return true, nil
}
