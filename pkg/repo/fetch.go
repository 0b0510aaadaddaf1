package repo

import (
	"bytes"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/odvcencio/quarry/pkg/object"
	"github.com/odvcencio/quarry/pkg/odb"
)

// FetchFromPath fetches objects from the on-disk repository at remotePath
// into this repository's ODB. A non-empty branch restricts the fetch to
// refs/heads/<branch> and refs/tags/<branch>; otherwise all refs are
// fetched. Objects travel as one pack stream through the ODB's receiving
// backend. No local refs are written and FETCH_HEAD is not updated; a nil
// cfg falls back to a snapshot of this repository's config.
func (r *Repo) FetchFromPath(cfg *Config, remotePath, branch string) error {
	if err := r.requireReal("fetch from path"); err != nil {
		return err
	}
	if cfg == nil {
		snapshot, err := r.GetConfigSnapshot()
		if err != nil {
			return fmt.Errorf("fetch from %q: %w", remotePath, err)
		}
		cfg = snapshot
	}

	src, err := OpenPath(remotePath)
	if err != nil {
		r.log.Error("fetch source open failed",
			zap.String("path", remotePath), zap.Error(err))
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}
	defer src.Close()

	roots, err := src.fetchRoots(branch)
	if err != nil {
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}

	ids, err := src.reachableFrom(roots, r.db)
	if err != nil {
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}
	if len(ids) == 0 {
		r.log.Debug("fetch found nothing to transfer", zap.String("path", remotePath))
		return nil
	}

	var pack bytes.Buffer
	pw, err := object.NewPackWriter(&pack, uint32(len(ids)))
	if err != nil {
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}
	for _, id := range ids {
		data, objType, err := src.db.Read(id)
		if err != nil {
			return fmt.Errorf("fetch from %q: read %s: %w", remotePath, id, err)
		}
		packType, err := object.PackTypeOf(objType)
		if err != nil {
			return fmt.Errorf("fetch from %q: %s: %w", remotePath, id, err)
		}
		if err := pw.WriteEntry(packType, data); err != nil {
			return fmt.Errorf("fetch from %q: %w", remotePath, err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}

	progress := func(received, total int) {
		r.log.Debug("fetch progress",
			zap.Int("received", received), zap.Int("total", total))
	}
	if err := r.db.ReceivePack(&pack, progress); err != nil {
		r.log.Error("fetch pack transfer failed",
			zap.String("path", remotePath), zap.Error(err))
		return fmt.Errorf("fetch from %q: %w", remotePath, err)
	}
	return nil
}

// fetchRoots resolves the object IDs a fetch starts from. With a branch,
// the head and tag of that name are candidates and at least one must exist;
// without one, every ref plus HEAD contributes.
func (r *Repo) fetchRoots(branch string) ([]object.ID, error) {
	var roots []object.ID

	if branch != "" {
		for _, name := range []string{"refs/tags/" + branch, "refs/heads/" + branch} {
			id, err := r.resolveRef(name)
			if err == nil {
				roots = append(roots, id)
			}
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("branch %q: %w", branch, ErrNotFound)
		}
		return roots, nil
	}

	for _, prefix := range []string{"refs/heads", "refs/tags"} {
		refs, err := r.listRefs(prefix)
		if err != nil {
			return nil, err
		}
		for _, id := range refs {
			roots = append(roots, id)
		}
	}
	if id, err := r.resolveRef("HEAD"); err == nil {
		roots = append(roots, id)
	}
	return roots, nil
}

// reachableFrom walks the object graph from roots, returning every ID not
// already present in dst. Children of objects dst already holds are skipped:
// a store never holds a tree without its closure.
func (r *Repo) reachableFrom(roots []object.ID, dst *odb.ODB) ([]object.ID, error) {
	var out []object.ID
	seen := make(map[object.ID]struct{}, len(roots))

	stack := append([]object.ID(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if dst.Exists(id) {
			continue
		}
		if !r.db.Exists(id) {
			// Dangling ref target; mirror a real fetch and skip it.
			continue
		}
		out = append(out, id)

		data, objType, err := r.db.Read(id)
		if err != nil {
			return nil, fmt.Errorf("reachable walk read %s: %w", id, err)
		}
		refs, err := referencedIDs(objType, data)
		if err != nil {
			return nil, fmt.Errorf("reachable walk parse %s (%s): %w", id, objType, err)
		}
		stack = append(stack, refs...)
	}
	return out, nil
}

// referencedIDs parses the outgoing references of one object.
func referencedIDs(objType object.Type, data []byte) ([]object.ID, error) {
	switch objType {
	case object.TypeBlob:
		return nil, nil
	case object.TypeTag:
		target, err := parseTagTarget(data)
		if err != nil {
			return nil, err
		}
		return []object.ID{target}, nil
	case object.TypeCommit:
		return parseCommitRefs(data)
	case object.TypeTree:
		entries, err := object.UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]object.ID, 0, len(entries))
		for _, e := range entries {
			refs = append(refs, e.ID)
		}
		return refs, nil
	}
	return nil, fmt.Errorf("unsupported object type %q", objType)
}

// parseCommitRefs extracts the tree and parent IDs from commit headers.
func parseCommitRefs(data []byte) ([]object.ID, error) {
	var refs []object.ID
	header := data
	if idx := bytes.Index(data, []byte("\n\n")); idx >= 0 {
		header = data[:idx]
	}
	for _, line := range bytes.Split(header, []byte("\n")) {
		if hexStr, ok := bytes.CutPrefix(line, []byte("tree ")); ok {
			id, err := object.IDFromHex(string(hexStr))
			if err != nil {
				return nil, err
			}
			refs = append(refs, id)
			continue
		}
		if hexStr, ok := bytes.CutPrefix(line, []byte("parent ")); ok {
			id, err := object.IDFromHex(string(hexStr))
			if err != nil {
				return nil, err
			}
			refs = append(refs, id)
		}
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("malformed commit: no tree header")
	}
	return refs, nil
}

// LocalFetchViaTmpRepo fetches a branch (or everything) from the repository
// at repoPath into this repository's ODB, without writing any refs here.
// The fetch runs on a throwaway bare repository whose ODB carries a
// fetch-into backend targeting this one, so the source repository is never
// polluted with references and the incoming pack lands directly in this
// store.
func (r *Repo) LocalFetchViaTmpRepo(repoPath, branch string) (err error) {
	if err := r.requireReal("local fetch via tmp repo"); err != nil {
		return err
	}

	cfg, err := r.GetConfigSnapshot()
	if err != nil {
		return fmt.Errorf("local fetch: %w", err)
	}

	tmpDir, err := cfg.CreateTypedTmpDir("fetch")
	if err != nil {
		r.log.Error("tmp dir creation failed", zap.Error(err))
		return fmt.Errorf("local fetch: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			err = multierr.Append(err, fmt.Errorf("local fetch cleanup: %w", rmErr))
		}
	}()

	tmp, err := InitAndOpen(tmpDir, true)
	if err != nil {
		return fmt.Errorf("local fetch: init tmp repo: %w", err)
	}
	defer tmp.Close()

	tmp.db.AddBackend(odb.NewFetchIntoBackend(r.db), odb.MaxPriority)

	if err := tmp.WithLogger(r.log).FetchFromPath(cfg, repoPath, branch); err != nil {
		return fmt.Errorf("local fetch: %w", err)
	}
	return nil
}
