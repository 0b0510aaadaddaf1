package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func commitSomething(t *testing.T, r *Repo) string {
	t.Helper()
	writeWorkFile(t, r, "input.txt", []byte("pinned content\n"), 0o644)
	commit, err := r.StageAndCommitAllAnonymous("pin me")
	if err != nil {
		t.Fatalf("StageAndCommitAllAnonymous: %v", err)
	}
	return commit
}

func TestKeepTagCreatesRef(t *testing.T) {
	r := initTestRepo(t)
	commit := commitSomething(t, r)

	if err := r.KeepTag(commit, "keep for build"); err != nil {
		t.Fatalf("KeepTag: %v", err)
	}

	refPath := filepath.Join(r.GitDir(), "refs", "tags", "keep-"+commit)
	if _, err := os.Stat(refPath); err != nil {
		t.Fatalf("keep tag ref missing: %v", err)
	}
}

func TestKeepTagIdempotent(t *testing.T) {
	r := initTestRepo(t)
	commit := commitSomething(t, r)

	if err := r.KeepTag(commit, "first"); err != nil {
		t.Fatalf("KeepTag first: %v", err)
	}
	if err := r.KeepTag(commit, "second"); err != nil {
		t.Fatalf("KeepTag second: %v", err)
	}

	tagDir := filepath.Join(r.GitDir(), "refs", "tags")
	entries, err := os.ReadDir(tagDir)
	if err != nil {
		t.Fatalf("read tags dir: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Name() == "keep-"+commit {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("keep tag count = %d, want 1", count)
	}
}

func TestKeepTagOnTree(t *testing.T) {
	r := initTestRepo(t)
	commit := commitSomething(t, r)

	treeHex, err := r.GetSubtreeFromCommit(commit, ".")
	if err != nil {
		t.Fatalf("GetSubtreeFromCommit: %v", err)
	}
	if err := r.KeepTag(treeHex, "keep tree"); err != nil {
		t.Fatalf("KeepTag on tree: %v", err)
	}
}

func TestKeepTagRejectsBlobTarget(t *testing.T) {
	r := initTestRepo(t)
	blobHex, err := r.WriteBlob([]byte("just a blob"))
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if err := r.KeepTag(blobHex, "nope"); err == nil {
		t.Fatalf("KeepTag accepted a blob target")
	}
}

func TestKeepTagMissingTarget(t *testing.T) {
	r := initTestRepo(t)
	missing := "0000000000000000000000000000000000000000"
	if err := r.KeepTag(missing, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("KeepTag err = %v, want ErrNotFound", err)
	}
}

func TestKeepTagSucceedsWhenAnotherProcessWon(t *testing.T) {
	r := initTestRepo(t)
	commit := commitSomething(t, r)

	// Simulate the race: the ref appears before our attempt.
	second, err := OpenPath(r.WorkDir())
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer second.Close()
	if err := second.KeepTag(commit, "racer"); err != nil {
		t.Fatalf("KeepTag racer: %v", err)
	}

	if err := r.KeepTag(commit, "loser"); err != nil {
		t.Fatalf("KeepTag after race: %v", err)
	}
}
