package repo

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/odvcencio/quarry/pkg/odb"
)

func TestInitAndOpenCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	r, err := InitAndOpen(dir, false)
	if err != nil {
		t.Fatalf("InitAndOpen: %v", err)
	}
	defer r.Close()

	if r.IsFake() {
		t.Fatalf("path-opened handle must be real")
	}
	if r.IsBare() {
		t.Fatalf("non-bare handle reports bare")
	}
	if r.GitDir() != filepath.Join(dir, ".git") {
		t.Fatalf("GitDir = %q", r.GitDir())
	}
	if _, err := os.Stat(filepath.Join(r.GitDir(), "objects")); err != nil {
		t.Fatalf("objects dir missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.GitDir(), "HEAD")); err != nil {
		t.Fatalf("HEAD missing: %v", err)
	}
}

func TestInitAndOpenBare(t *testing.T) {
	dir := t.TempDir()
	r, err := InitAndOpen(dir, true)
	if err != nil {
		t.Fatalf("InitAndOpen bare: %v", err)
	}
	defer r.Close()

	if !r.IsBare() {
		t.Fatalf("bare handle reports non-bare")
	}
	if r.GitDir() != dir {
		t.Fatalf("GitDir = %q, want %q", r.GitDir(), dir)
	}
}

func TestInitAndOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	first, err := InitAndOpen(dir, false)
	if err != nil {
		t.Fatalf("InitAndOpen first: %v", err)
	}
	defer first.Close()

	second, err := InitAndOpen(dir, false)
	if err != nil {
		t.Fatalf("InitAndOpen second: %v", err)
	}
	defer second.Close()

	if first.GitDir() != second.GitDir() {
		t.Fatalf("git dirs differ: %q vs %q", first.GitDir(), second.GitDir())
	}
}

func TestInitAndOpenConcurrent(t *testing.T) {
	dir := t.TempDir()

	var wg sync.WaitGroup
	repos := make([]*Repo, 8)
	errs := make([]error, 8)
	for i := range repos {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			repos[n], errs[n] = InitAndOpen(dir, false)
		}(i)
	}
	wg.Wait()

	for i := range repos {
		if errs[i] != nil {
			t.Fatalf("racer %d: %v", i, errs[i])
		}
		repos[i].Close()
	}
}

func TestOpenPathRejectsNonRepo(t *testing.T) {
	if _, err := OpenPath(t.TempDir()); err == nil {
		t.Fatalf("OpenPath accepted a plain directory")
	}
}

func TestFakeHandleRejectsWriteClassOps(t *testing.T) {
	db, _ := odb.NewInMemory()
	fake := Open(db)
	defer fake.Close()

	if !fake.IsFake() {
		t.Fatalf("Open must produce a fake handle")
	}
	if _, err := fake.StageAndCommitAllAnonymous("m"); !errors.Is(err, ErrFakeRepo) {
		t.Fatalf("StageAndCommitAllAnonymous err = %v, want ErrFakeRepo", err)
	}
	if err := fake.KeepTag(emptyTreeHex, "m"); !errors.Is(err, ErrFakeRepo) {
		t.Fatalf("KeepTag err = %v, want ErrFakeRepo", err)
	}
	if _, err := fake.GetHeadCommit(); !errors.Is(err, ErrFakeRepo) {
		t.Fatalf("GetHeadCommit err = %v, want ErrFakeRepo", err)
	}
	if err := fake.FetchFromPath(nil, t.TempDir(), ""); !errors.Is(err, ErrFakeRepo) {
		t.Fatalf("FetchFromPath err = %v, want ErrFakeRepo", err)
	}
	if err := fake.LocalFetchViaTmpRepo(t.TempDir(), ""); !errors.Is(err, ErrFakeRepo) {
		t.Fatalf("LocalFetchViaTmpRepo err = %v, want ErrFakeRepo", err)
	}
}

func TestStageAndCommitAllAnonymous(t *testing.T) {
	r := initTestRepo(t)
	writeWorkFile(t, r, "a.txt", []byte("alpha\n"), 0o644)
	writeWorkFile(t, r, "sub/b.txt", []byte("beta\n"), 0o644)
	writeWorkFile(t, r, "run.sh", []byte("#!/bin/sh\nexit 0\n"), 0o755)

	commit, err := r.StageAndCommitAllAnonymous("snapshot of inputs\n")
	if err != nil {
		t.Fatalf("StageAndCommitAllAnonymous: %v", err)
	}

	head, err := r.GetHeadCommit()
	if err != nil {
		t.Fatalf("GetHeadCommit: %v", err)
	}
	if head != commit {
		t.Fatalf("HEAD = %s, want %s", head, commit)
	}

	exists, err := r.CheckCommitExists(commit)
	if err != nil {
		t.Fatalf("CheckCommitExists: %v", err)
	}
	if !exists {
		t.Fatalf("committed object must exist")
	}
}

func TestStageAndCommitDeterministicAcrossRepos(t *testing.T) {
	// Identical worktrees must produce identical commit IDs: the author,
	// committer and timestamp are all fixed.
	var commits [2]string
	for i := range commits {
		r := initTestRepo(t)
		writeWorkFile(t, r, "input.txt", []byte("same bytes\n"), 0o644)
		commit, err := r.StageAndCommitAllAnonymous("msg")
		if err != nil {
			t.Fatalf("StageAndCommitAllAnonymous: %v", err)
		}
		commits[i] = commit
	}
	if commits[0] != commits[1] {
		t.Fatalf("commit ids differ: %s vs %s", commits[0], commits[1])
	}
}

func TestStageAndCommitRejectsBare(t *testing.T) {
	r, err := InitAndOpen(t.TempDir(), true)
	if err != nil {
		t.Fatalf("InitAndOpen bare: %v", err)
	}
	defer r.Close()

	if _, err := r.StageAndCommitAllAnonymous("m"); !errors.Is(err, ErrBareRepo) {
		t.Fatalf("err = %v, want ErrBareRepo", err)
	}
}

func TestPrettifyMessage(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "message", "message\n"},
		{"trailing whitespace", "message  \t", "message\n"},
		{"comment stripped", "keep\n# a comment\nalso keep", "keep\nalso keep\n"},
		{"all comments", "# one\n# two", ""},
		{"extra newlines", "msg\n\n\n", "msg\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := prettifyMessage(tc.in); got != tc.want {
				t.Fatalf("prettifyMessage(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestGetRepoRootFromPath(t *testing.T) {
	r := initTestRepo(t)
	writeWorkFile(t, r, "deep/nested/file.txt", []byte("x"), 0o644)

	root, err := GetRepoRootFromPath(filepath.Join(r.WorkDir(), "deep", "nested"))
	if err != nil {
		t.Fatalf("GetRepoRootFromPath: %v", err)
	}
	if root != r.WorkDir() {
		t.Fatalf("root = %q, want %q", root, r.WorkDir())
	}

	// No repository above a plain temp dir: empty result, no error.
	root, err = GetRepoRootFromPath(t.TempDir())
	if err != nil {
		t.Fatalf("GetRepoRootFromPath plain dir: %v", err)
	}
	if root != "" {
		t.Fatalf("root = %q, want empty", root)
	}
}

func TestConfigSnapshotDefaultsAndRoundTrip(t *testing.T) {
	r := initTestRepo(t)

	cfg, err := r.GetConfigSnapshot()
	if err != nil {
		t.Fatalf("GetConfigSnapshot: %v", err)
	}
	if cfg.LockTries != gitLockNumTries {
		t.Fatalf("LockTries = %d, want %d", cfg.LockTries, gitLockNumTries)
	}
	if cfg.UpdateFetchHead {
		t.Fatalf("UpdateFetchHead must default to false")
	}

	cfg.TmpRoot = t.TempDir()
	if err := r.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	back, err := r.GetConfigSnapshot()
	if err != nil {
		t.Fatalf("GetConfigSnapshot after write: %v", err)
	}
	if back.TmpRoot != cfg.TmpRoot {
		t.Fatalf("TmpRoot = %q, want %q", back.TmpRoot, cfg.TmpRoot)
	}
}

func TestCreateTypedTmpDir(t *testing.T) {
	cfg := defaultConfig()
	cfg.TmpRoot = t.TempDir()

	first, err := cfg.CreateTypedTmpDir("fetch")
	if err != nil {
		t.Fatalf("CreateTypedTmpDir: %v", err)
	}
	second, err := cfg.CreateTypedTmpDir("fetch")
	if err != nil {
		t.Fatalf("CreateTypedTmpDir second: %v", err)
	}
	if first == second {
		t.Fatalf("tmp dirs must be unique: %q", first)
	}
	for _, dir := range []string{first, second} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("tmp dir %q not created: %v", dir, err)
		}
	}
}
