package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveRenamesNonEmptyLog(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "claude_output.jsonl")
	archiveDir := filepath.Join(dir, "archive")

	if err := os.WriteFile(live, []byte(`{"type":"user"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := Archive(live, archiveDir)
	if err != nil {
		t.Fatalf("Archive returned error: %v", err)
	}
	if dest == "" {
		t.Fatal("expected a non-empty archive path")
	}
	if !namePattern.MatchString(filepath.Base(dest)) {
		t.Errorf("archive name %q does not match expected pattern", filepath.Base(dest))
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	info, err := os.Stat(live)
	if err != nil {
		t.Fatalf("live log not recreated: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("recreated live log should be empty, got size %d", info.Size())
	}
}

func TestArchiveNoOpWhenMissing(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "claude_output.jsonl")
	archiveDir := filepath.Join(dir, "archive")

	dest, err := Archive(live, archiveDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest != "" {
		t.Errorf("expected no-op for missing live log, got %q", dest)
	}
	if _, err := os.Stat(archiveDir); !os.IsNotExist(err) {
		t.Errorf("archive dir should not be created on no-op")
	}
}

func TestArchiveNoOpWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "claude_output.jsonl")
	archiveDir := filepath.Join(dir, "archive")

	if err := os.WriteFile(live, nil, 0644); err != nil {
		t.Fatal(err)
	}

	dest, err := Archive(live, archiveDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest != "" {
		t.Errorf("expected no-op for empty live log, got %q", dest)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"claude_output.20260101_120000_000.jsonl",
		"claude_output.20260101_120000_500.jsonl",
		"claude_output.20260215_093000_000.jsonl",
		"not_a_session.txt",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Name != "not_a_session.txt" {
		t.Errorf("reverse lexicographic ordering should put 'not_a_session.txt' first, got %q", entries[0].Name)
	}
	if entries[0].HasTimestamp {
		t.Errorf("unrecognized filename should not have a parsed timestamp")
	}

	// Among the recognized session files, newest (Feb) should sort before
	// the two January ones, and the later January timestamp before the
	// earlier one.
	var sessionNames []string
	for _, e := range entries {
		if e.HasTimestamp {
			sessionNames = append(sessionNames, e.Name)
		}
	}
	want := []string{
		"claude_output.20260215_093000_000.jsonl",
		"claude_output.20260101_120000_500.jsonl",
		"claude_output.20260101_120000_000.jsonl",
	}
	if len(sessionNames) != len(want) {
		t.Fatalf("got %v, want %v", sessionNames, want)
	}
	for i := range want {
		if sessionNames[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, sessionNames[i], want[i])
		}
	}
}

func TestListEmptyDirMissing(t *testing.T) {
	dir := t.TempDir()
	entries, err := List(filepath.Join(dir, "nonexistent"))
	if err != nil {
		t.Fatalf("expected no error for missing archive dir, got %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
}
