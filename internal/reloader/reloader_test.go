package reloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheckMissingFile(t *testing.T) {
	t.Parallel()
	r := New(filepath.Join(t.TempDir(), "nope.yaml"))

	content, commit, err := r.Check()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if content != nil || commit != nil {
		t.Error("Expected no content for a missing file")
	}
}

func TestCheckReturnsContent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	if err := os.WriteFile(path, []byte("foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(path)

	content, commit, err := r.Check()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(content) != "foo" {
		t.Errorf("Expected content 'foo', got %q", content)
	}
	if commit == nil {
		t.Fatal("Expected a commit function")
	}
}

func TestCheckNoUpdateAfterCommit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	if err := os.WriteFile(path, []byte("foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(path)

	_, commit, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	commit()

	content, commit, err := r.Check()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if content != nil || commit != nil {
		t.Error("Expected a no-op check after commit with no file change")
	}
}

func TestCheckUncommittedReadRepeats(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	if err := os.WriteFile(path, []byte("foo"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(path)

	// First read never committed: the change is still pending.
	if content, _, _ := r.Check(); content == nil {
		t.Fatal("Expected content on first check")
	}
	content, _, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "foo" {
		t.Error("Expected uncommitted change to be observable again")
	}
}

func TestCheckDetectsRewrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(path)

	_, commit, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	commit()

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force a distinct mtime; some filesystems have coarse resolution.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	content, commit, err := r.Check()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(content) != "v2" {
		t.Errorf("Expected rewritten content, got %q", content)
	}
	if commit == nil {
		t.Fatal("Expected a commit function for the rewrite")
	}
}

func TestCommitLosesRaceToNewerCommit(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "defs.yaml")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New(path)

	_, staleCommit, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}

	// A second reloader observes the same state and commits first.
	_, freshCommit, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	freshCommit()

	// Move the file forward so a post-stale-commit check has something to find
	// if the stale commit incorrectly rewound state.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	_, newCommit, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	newCommit()

	// The stale commit observed pre-freshCommit state; it must be a no-op now.
	staleCommit()

	content, _, err := r.Check()
	if err != nil {
		t.Fatal(err)
	}
	if content != nil {
		t.Error("Stale commit must not rewind the committed modification time")
	}
}
