package repo

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/quarry/pkg/object"
)

// isLocked reports whether err is (or wraps) the Locked condition.
func isLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}

// headRef reads HEAD. A symbolic head returns the ref path (e.g.
// "refs/heads/main"); a detached head returns the raw hex.
func (r *Repo) headRef() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.GitDir(), "HEAD"))
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		return target, nil
	}
	return content, nil
}

// resolveRef resolves a full ref name ("refs/heads/main", "HEAD") to an
// object ID, consulting loose refs first and packed-refs second.
func (r *Repo) resolveRef(name string) (object.ID, error) {
	if name == "HEAD" {
		head, err := r.headRef()
		if err != nil {
			return object.ID{}, err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.resolveRef(head)
		}
		return object.IDFromHex(head)
	}

	refPath := filepath.Join(r.GitDir(), filepath.FromSlash(name))
	data, err := os.ReadFile(refPath)
	if err == nil {
		return object.IDFromHex(strings.TrimSpace(string(data)))
	}
	if !os.IsNotExist(err) {
		return object.ID{}, fmt.Errorf("resolve ref %q: %w", name, err)
	}

	packed, err := r.readPackedRefs()
	if err != nil {
		return object.ID{}, err
	}
	if id, ok := packed[name]; ok {
		return id, nil
	}
	return object.ID{}, fmt.Errorf("resolve ref %q: %w", name, ErrNotFound)
}

// refExists reports whether a full ref name resolves.
func (r *Repo) refExists(name string) bool {
	_, err := r.resolveRef(name)
	return err == nil
}

// listRefs enumerates full ref names under the given prefix ("refs/heads",
// "refs/tags"), merging loose refs over packed-refs.
func (r *Repo) listRefs(prefix string) (map[string]object.ID, error) {
	refs := make(map[string]object.ID)

	packed, err := r.readPackedRefs()
	if err != nil {
		return nil, err
	}
	for name, id := range packed {
		if strings.HasPrefix(name, prefix+"/") {
			refs[name] = id
		}
	}

	root := r.GitDir()
	dir := filepath.Join(root, filepath.FromSlash(prefix))
	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		id, err := object.IDFromHex(strings.TrimSpace(string(data)))
		if err != nil {
			return fmt.Errorf("ref %s: %w", rel, err)
		}
		refs[filepath.ToSlash(rel)] = id
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, fmt.Errorf("list refs %q: %w", prefix, walkErr)
	}
	return refs, nil
}

// readPackedRefs parses the packed-refs file, which fetch sources written by
// stock git may carry. Peel lines (^) are skipped; the tag object itself is
// what a tag ref names.
func (r *Repo) readPackedRefs() (map[string]object.ID, error) {
	refs := make(map[string]object.ID)
	f, err := os.Open(filepath.Join(r.GitDir(), "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return refs, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		hexStr, name, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		id, err := object.IDFromHex(hexStr)
		if err != nil {
			continue
		}
		refs[name] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return refs, nil
}

// writeRefLocked updates a ref with lockfile + rename semantics. A held lock
// file surfaces as ErrLocked; callers own the retry policy.
func (r *Repo) writeRefLocked(name string, id object.ID) error {
	refPath := filepath.Join(r.GitDir(), filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("update ref %q: %w", name, ErrLocked)
		}
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	if _, err := lockFile.WriteString(id.Hex() + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false
	return nil
}
