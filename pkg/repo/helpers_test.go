package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/quarry/pkg/object"
)

// initTestRepo creates and opens a fresh non-bare repository.
func initTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := InitAndOpen(t.TempDir(), false)
	if err != nil {
		t.Fatalf("InitAndOpen: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// writeWorkFile writes a file (creating parents) inside the repo worktree.
func writeWorkFile(t *testing.T, r *Repo, rel string, content []byte, mode os.FileMode) {
	t.Helper()
	abs := filepath.Join(r.WorkDir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, content, mode); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func mustID(t *testing.T, hexID string) object.ID {
	t.Helper()
	id, err := object.IDFromHex(hexID)
	if err != nil {
		t.Fatalf("IDFromHex(%q): %v", hexID, err)
	}
	return id
}

// acceptAll is a symlink checker that passes everything.
func acceptAll([]object.ID) bool { return true }

// rejectAll is a symlink checker that fails everything.
func rejectAll([]object.ID) bool { return false }
