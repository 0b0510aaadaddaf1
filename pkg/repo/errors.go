package repo

import (
	"errors"

	"github.com/odvcencio/quarry/pkg/odb"
)

// Error kinds surfaced to callers. Anything else coming out of a handle
// method is wrapped with context, logged, and not retried.
var (
	// ErrNotFound reports a clean miss: the object is definitely absent.
	ErrNotFound = odb.ErrNotFound

	// ErrLocked reports inter-process contention on a ref or the init
	// window. It is the only retried error.
	ErrLocked = errors.New("repository locked by another process")

	// ErrUnsafeSymlink reports a tree whose symlink targets failed the
	// caller's non-upwards check.
	ErrUnsafeSymlink = errors.New("unsafe symlink in tree")

	// ErrFakeRepo reports a write-class operation invoked on a fake handle.
	ErrFakeRepo = errors.New("operation not permitted on fake repository")

	// ErrBareRepo reports a worktree operation invoked on a bare repository.
	ErrBareRepo = errors.New("operation not permitted on bare repository")
)
