package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspaceFilesCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".ralph")
	if _, err := EnsureWorkspaceFiles(dir); err != nil {
		t.Fatalf("EnsureWorkspaceFiles returned error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
}

func TestEnsureProjectFilesSeedsOnFirstCallOnly(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "projects", "demo")

	created, err := EnsureProjectFiles(dir)
	if err != nil {
		t.Fatalf("EnsureProjectFiles returned error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %v, want 2 files (execute.md, assignment.json)", created)
	}

	for _, name := range []string{ExecuteFile, AssignmentFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	// Second call must not overwrite or re-report already-seeded files.
	created, err = EnsureProjectFiles(dir)
	if err != nil {
		t.Fatalf("second EnsureProjectFiles returned error: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second call created = %v, want none (idempotent)", created)
	}
}

func TestReadTemplateReturnsExecuteTemplate(t *testing.T) {
	content, err := ReadTemplate(ExecuteFile)
	if err != nil {
		t.Fatalf("ReadTemplate returned error: %v", err)
	}
	if content == "" {
		t.Error("expected non-empty execute.md template")
	}
}
