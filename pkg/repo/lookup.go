package repo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/quarry/pkg/object"
)

// parseCommitTree extracts the root tree ID from serialised commit bytes.
func parseCommitTree(data []byte) (object.ID, error) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	hexStr, ok := bytes.CutPrefix(line, []byte("tree "))
	if !ok {
		return object.ID{}, fmt.Errorf("malformed commit: no tree header")
	}
	return object.IDFromHex(string(hexStr))
}

// parseTagTarget extracts the target ID from serialised annotated tag bytes.
func parseTagTarget(data []byte) (object.ID, error) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	hexStr, ok := bytes.CutPrefix(line, []byte("object "))
	if !ok {
		return object.ID{}, fmt.Errorf("malformed tag: no object header")
	}
	return object.IDFromHex(string(hexStr))
}

// readTyped reads an object and insists on its type.
func (r *Repo) readTyped(id object.ID, want object.Type) ([]byte, error) {
	data, objType, err := r.db.Read(id)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s is a %s, want %s", id, objType, want)
	}
	return data, nil
}

// lookupTreeEntry descends a slash-separated path from a root tree,
// returning the entry found at the last component.
func (r *Repo) lookupTreeEntry(root object.ID, relPath string) (object.TreeEntry, error) {
	relPath = path.Clean(strings.Trim(relPath, "/"))
	if relPath == "." || relPath == "" {
		return object.TreeEntry{Name: ".", Mode: object.ModeTree, ID: root}, nil
	}

	current := root
	components := strings.Split(relPath, "/")
	for i, comp := range components {
		data, err := r.readTyped(current, object.TypeTree)
		if err != nil {
			return object.TreeEntry{}, err
		}
		entries, err := object.UnmarshalTree(data)
		if err != nil {
			return object.TreeEntry{}, err
		}

		var found *object.TreeEntry
		for j := range entries {
			if entries[j].Name == comp {
				found = &entries[j]
				break
			}
		}
		if found == nil {
			return object.TreeEntry{}, fmt.Errorf("path %q: %w", relPath, ErrNotFound)
		}
		if i == len(components)-1 {
			return *found, nil
		}
		if found.Mode != object.ModeTree {
			return object.TreeEntry{}, fmt.Errorf("path %q: %q is not a tree", relPath, comp)
		}
		current = found.ID
	}
	return object.TreeEntry{}, fmt.Errorf("path %q: %w", relPath, ErrNotFound)
}

// GetSubtreeFromCommit resolves the tree under subdir in the commit's root
// tree. ErrNotFound is returned specifically when the commit object lookup
// misses; every other failure is fatal.
func (r *Repo) GetSubtreeFromCommit(commitHex, subdir string) (string, error) {
	commitID, err := object.IDFromHex(commitHex)
	if err != nil {
		return "", fmt.Errorf("subtree from commit: %w", err)
	}

	data, objType, err := r.db.Read(commitID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.log.Debug("commit not found", zap.String("commit", commitHex))
			return "", fmt.Errorf("subtree from commit %s: %w", commitHex, ErrNotFound)
		}
		r.log.Error("commit lookup failed", zap.String("commit", commitHex), zap.Error(err))
		return "", fmt.Errorf("subtree from commit %s: %w", commitHex, err)
	}
	if objType != object.TypeCommit {
		return "", fmt.Errorf("subtree from commit %s: object is a %s: %w", commitHex, objType, ErrNotFound)
	}

	treeID, err := parseCommitTree(data)
	if err != nil {
		return "", fmt.Errorf("subtree from commit %s: %w", commitHex, err)
	}
	subtree, err := r.GetSubtreeFromTree(treeID.Hex(), subdir)
	if err != nil {
		// A miss below the commit is fatal; only a missing commit is ErrNotFound.
		r.log.Error("subtree lookup failed",
			zap.String("commit", commitHex), zap.String("subdir", subdir), zap.Error(err))
		return "", fmt.Errorf("subtree from commit %s: %v", commitHex, err)
	}
	return subtree, nil
}

// GetSubtreeFromTree resolves the tree under subdir. A subdir of "." returns
// the input unchanged.
func (r *Repo) GetSubtreeFromTree(treeHex, subdir string) (string, error) {
	if subdir == "." {
		return treeHex, nil
	}
	treeID, err := object.IDFromHex(treeHex)
	if err != nil {
		return "", fmt.Errorf("subtree from tree: %w", err)
	}

	entry, err := r.lookupTreeEntry(treeID, subdir)
	if err != nil {
		return "", fmt.Errorf("subtree from tree %s: %w", treeHex, err)
	}
	if entry.Mode != object.ModeTree {
		return "", fmt.Errorf("subtree from tree %s: %q is not a tree", treeHex, subdir)
	}
	return entry.ID.Hex(), nil
}

// GetSubtreeFromPath discovers the repository root above fsPath and resolves
// the subtree the path denotes inside headCommit.
func (r *Repo) GetSubtreeFromPath(fsPath, headCommit string) (string, error) {
	root, err := GetRepoRootFromPath(fsPath)
	if err != nil {
		return "", fmt.Errorf("subtree from path %q: %w", fsPath, err)
	}
	if root == "" {
		return "", fmt.Errorf("subtree from path %q: no repository found", fsPath)
	}

	abs, err := filepath.Abs(fsPath)
	if err != nil {
		return "", fmt.Errorf("subtree from path %q: %w", fsPath, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("subtree from path %q: %w", fsPath, err)
	}
	return r.GetSubtreeFromCommit(headCommit, filepath.ToSlash(rel))
}

// checkObjectExists distinguishes presence, clean absence, and lookup
// failure for one expected type.
func (r *Repo) checkObjectExists(hexID string, want object.Type) (bool, error) {
	id, err := object.IDFromHex(hexID)
	if err != nil {
		return false, err
	}
	objType, _, err := r.db.ReadHeader(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		r.log.Error("object existence check failed",
			zap.String("id", hexID), zap.String("type", string(want)), zap.Error(err))
		return false, err
	}
	if objType != want {
		return false, nil
	}
	return true, nil
}

// CheckCommitExists reports whether the commit is present. (false, nil)
// means definitely absent; a non-nil error is a fatal lookup failure.
func (r *Repo) CheckCommitExists(commitHex string) (bool, error) {
	return r.checkObjectExists(commitHex, object.TypeCommit)
}

// CheckTreeExists reports whether the tree is present.
func (r *Repo) CheckTreeExists(treeHex string) (bool, error) {
	return r.checkObjectExists(treeHex, object.TypeTree)
}

// CheckBlobExists reports whether the blob is present.
func (r *Repo) CheckBlobExists(blobHex string) (bool, error) {
	return r.checkObjectExists(blobHex, object.TypeBlob)
}

// TryReadBlob reads a blob, separating clean absence from lookup failure:
// (nil, false, nil) means definitely absent, a non-nil error means the
// lookup itself failed.
func (r *Repo) TryReadBlob(blobHex string) ([]byte, bool, error) {
	id, err := object.IDFromHex(blobHex)
	if err != nil {
		return nil, false, err
	}
	data, objType, err := r.db.Read(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.log.Debug("blob not found", zap.String("blob", blobHex))
			return nil, false, nil
		}
		r.log.Error("blob read failed", zap.String("blob", blobHex), zap.Error(err))
		return nil, false, err
	}
	if objType != object.TypeBlob {
		return nil, false, fmt.Errorf("read blob %s: object is a %s", blobHex, objType)
	}
	return data, true, nil
}

// WriteBlob stores content as a blob and returns its hex ID.
func (r *Repo) WriteBlob(content []byte) (string, error) {
	id, err := r.db.Write(content, object.TypeBlob)
	if err != nil {
		r.log.Error("blob write failed", zap.Error(err))
		return "", fmt.Errorf("write blob: %w", err)
	}
	return id.Hex(), nil
}

// GetObjectByPathFromTree resolves relPath inside the tree and returns the
// entry's ID and kind; for symlinks, the target bytes are read and returned
// as well.
func (r *Repo) GetObjectByPathFromTree(treeHex, relPath string) (object.ID, object.Kind, []byte, error) {
	treeID, err := object.IDFromHex(treeHex)
	if err != nil {
		return object.ID{}, 0, nil, fmt.Errorf("object by path: %w", err)
	}

	entry, err := r.lookupTreeEntry(treeID, relPath)
	if err != nil {
		return object.ID{}, 0, nil, fmt.Errorf("object by path %q in %s: %w", relPath, treeHex, err)
	}
	kind, err := entry.Kind()
	if err != nil {
		return object.ID{}, 0, nil, fmt.Errorf("object by path %q in %s: %w", relPath, treeHex, err)
	}

	if kind.IsSymlink() {
		target, err := r.readTyped(entry.ID, object.TypeBlob)
		if err != nil {
			return object.ID{}, 0, nil, fmt.Errorf("object by path %q: read symlink target: %w", relPath, err)
		}
		return entry.ID, kind, target, nil
	}
	return entry.ID, kind, nil, nil
}

// GetRepoRootFromPath walks upward from fsPath looking for a repository
// root. An empty result means no repository was found, which is not an
// error; a non-nil error is fatal.
func GetRepoRootFromPath(fsPath string) (string, error) {
	abs, err := filepath.Abs(fsPath)
	if err != nil {
		return "", fmt.Errorf("repo root from %q: %w", fsPath, err)
	}

	for cur := abs; ; cur = filepath.Dir(cur) {
		dotGit := filepath.Join(cur, ".git")
		if info, err := os.Stat(dotGit); err == nil && info.IsDir() {
			return cur, nil
		}
		if isGitDir(cur) {
			return cur, nil
		}
		if filepath.Dir(cur) == cur {
			return "", nil
		}
	}
}
