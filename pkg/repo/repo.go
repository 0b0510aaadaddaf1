package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/odvcencio/quarry/pkg/odb"
)

// Repo is a handle onto one object database. A real handle is backed by an
// on-disk git directory and supports commits, tags and fetching; a fake
// handle wraps a bare ODB (usually in-memory) and supports only tree and
// blob reads, writes and shallow synthesis.
type Repo struct {
	db     *odb.ODB
	fake   bool
	closed bool
	log    *zap.Logger
}

// Open attaches a fake handle to an existing ODB. The handle shares the ODB;
// it does not own it.
func Open(db *odb.ODB) *Repo {
	return &Repo{db: db, fake: true, log: zap.NewNop()}
}

// OpenPath opens the repository at path as a real handle. path may be a
// working directory containing .git, or a bare git directory.
func OpenPath(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	gitDir, workDir, err := locateGitDir(abs)
	if err != nil {
		return nil, err
	}
	return &Repo{db: odb.New(gitDir, workDir), log: zap.NewNop()}, nil
}

// locateGitDir classifies path as a non-bare working directory or a bare git
// directory.
func locateGitDir(abs string) (gitDir, workDir string, err error) {
	dotGit := filepath.Join(abs, ".git")
	if info, statErr := os.Stat(dotGit); statErr == nil && info.IsDir() {
		return dotGit, abs, nil
	}
	if isGitDir(abs) {
		return abs, "", nil
	}
	return "", "", fmt.Errorf("open %q: not a git repository", abs)
}

// isGitDir recognises the minimal layout of a git directory.
func isGitDir(path string) bool {
	if info, err := os.Stat(filepath.Join(path, "objects")); err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.Stat(filepath.Join(path, "HEAD")); err != nil {
		return false
	}
	return true
}

// Close releases the handle. The ODB writer lock is taken first so a
// concurrent reader is never mid-lookup during teardown.
func (r *Repo) Close() {
	if r == nil || r.closed {
		return
	}
	r.db.Guard(func() {
		r.closed = true
	})
}

// WithLogger returns the handle with its logger replaced.
func (r *Repo) WithLogger(log *zap.Logger) *Repo {
	if log == nil {
		log = zap.NewNop()
	}
	r.log = log
	return r
}

// IsFake reports whether the handle is fake.
func (r *Repo) IsFake() bool { return r.fake }

// IsBare reports whether the handle has no working directory.
func (r *Repo) IsBare() bool { return r.db.WorkDir() == "" }

// GitDir returns the absolute git directory, empty for in-memory handles.
func (r *Repo) GitDir() string { return r.db.GitDir() }

// WorkDir returns the absolute working directory, empty for bare handles.
func (r *Repo) WorkDir() string { return r.db.WorkDir() }

// ODB returns the shared object database.
func (r *Repo) ODB() *odb.ODB { return r.db }

// requireReal guards write-class operations against fake handles.
func (r *Repo) requireReal(op string) error {
	if r.fake {
		r.log.Error("fake repository rejected", zap.String("op", op))
		return fmt.Errorf("%s: %w", op, ErrFakeRepo)
	}
	return nil
}
