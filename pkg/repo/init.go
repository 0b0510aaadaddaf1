package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// gitLockNumTries and gitLockWaitTime bound the retry loop for Locked
	// conditions: refs and the init window.
	gitLockNumTries = 10
	gitLockWaitTime = 100 * time.Millisecond
)

// repoMutex serialises repository open/init inside the process; directory
// discovery is not reentrant across concurrent inits of the same path.
var repoMutex sync.Mutex

// InitAndOpen opens the repository at path, initialising it first when it
// does not exist yet. Concurrent inits of the same path are safe: in-process
// callers serialise on a mutex, other processes on a lock file beside the
// repository directory.
func InitAndOpen(path string, bare bool) (*Repo, error) {
	repoMutex.Lock()
	defer repoMutex.Unlock()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init %q: %w", path, err)
	}

	var lastErr error
	for attempt := 0; attempt < gitLockNumTries; attempt++ {
		if attempt > 0 {
			time.Sleep(gitLockWaitTime)
		}

		// Another process may have finished the init while we slept.
		if r, err := OpenPath(abs); err == nil {
			return r, nil
		}

		if err := initOnce(abs, bare); err != nil {
			lastErr = err
			if isLocked(err) {
				continue
			}
			return nil, fmt.Errorf("init %q: %w", abs, err)
		}
		return OpenPath(abs)
	}
	return nil, fmt.Errorf("init %q: %w: %v", abs, ErrLocked, lastErr)
}

// initOnce creates the git directory layout under a cross-process file lock.
func initOnce(abs string, bare bool) error {
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	lock := flock.New(initLockPath(abs))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("init lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("init lock held: %w", ErrLocked)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(initLockPath(abs))
	}()

	gitDir := abs
	if !bare {
		gitDir = filepath.Join(abs, ".git")
	}
	if isGitDir(gitDir) {
		return nil
	}

	dirs := []string{
		filepath.Join(gitDir, "objects"),
		filepath.Join(gitDir, "refs", "heads"),
		filepath.Join(gitDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(gitDir, "HEAD")
	if _, err := os.Stat(headPath); os.IsNotExist(err) {
		if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
			return fmt.Errorf("write HEAD: %w", err)
		}
	}
	return nil
}

func initLockPath(abs string) string {
	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+".init.lock")
}
