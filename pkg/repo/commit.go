package repo

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/quarry/pkg/object"
)

// Anonymous identity used for all commits and tags written by the engine.
// Deterministic metadata keeps commit IDs reproducible across machines.
const (
	anonymousName  = "Nobody"
	anonymousEmail = "nobody@example.org"
	anonymousSig   = anonymousName + " <" + anonymousEmail + "> 0 +0000"
)

// stagedFile is one worktree file resolved to a blob.
type stagedFile struct {
	path string // slash-separated, relative to the worktree root
	kind object.Kind
	id   object.ID
}

// StageAndCommitAllAnonymous stages every file in the working directory
// (the git directory excluded), writes the resulting tree, and creates a
// single parentless commit with the fixed anonymous signature, pointing the
// HEAD branch at it. Returns the commit's hex ID.
func (r *Repo) StageAndCommitAllAnonymous(message string) (string, error) {
	if err := r.requireReal("stage and commit all"); err != nil {
		return "", err
	}
	if r.IsBare() {
		r.log.Error("cannot stage and commit files in a bare repository")
		return "", fmt.Errorf("stage and commit all: %w", ErrBareRepo)
	}

	staged, err := r.stageWorktree()
	if err != nil {
		r.log.Error("staging files failed", zap.String("repo", r.WorkDir()), zap.Error(err))
		return "", fmt.Errorf("stage and commit all: %w", err)
	}

	treeID, err := r.writeTreeFromStaged(staged, "")
	if err != nil {
		r.log.Error("building tree from staged files failed", zap.Error(err))
		return "", fmt.Errorf("stage and commit all: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", treeID.Hex())
	fmt.Fprintf(&buf, "author %s\n", anonymousSig)
	fmt.Fprintf(&buf, "committer %s\n", anonymousSig)
	buf.WriteByte('\n')
	buf.WriteString(prettifyMessage(message))

	commitID, err := r.db.Write(buf.Bytes(), object.TypeCommit)
	if err != nil {
		return "", fmt.Errorf("stage and commit all: write commit: %w", err)
	}

	if err := r.pointHeadAt(commitID); err != nil {
		return "", fmt.Errorf("stage and commit all: %w", err)
	}

	r.log.Debug("committed worktree",
		zap.String("commit", commitID.Hex()),
		zap.String("tree", treeID.Hex()))
	return commitID.Hex(), nil
}

// stageWorktree walks the working directory and writes every regular file
// and symlink as a blob. Files are read in parallel; blob writes, which
// hash the content, run one at a time. Each file is staged by its own path,
// never via a global force-add.
func (r *Repo) stageWorktree() ([]stagedFile, error) {
	root := r.WorkDir()
	gitDir := r.GitDir()

	type pending struct {
		path string
		abs  string
		mode fs.FileMode
	}
	var work []pending
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == gitDir || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && info.Mode()&fs.ModeSymlink == 0 {
			// Sockets, devices and the like cannot be staged.
			return nil
		}
		work = append(work, pending{path: filepath.ToSlash(rel), abs: path, mode: info.Mode()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk worktree: %w", err)
	}

	staged := make([]stagedFile, len(work))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range work {
		g.Go(func() error {
			var content []byte
			var kind object.Kind
			switch {
			case p.mode&fs.ModeSymlink != 0:
				target, err := os.Readlink(p.abs)
				if err != nil {
					return fmt.Errorf("readlink %q: %w", p.path, err)
				}
				content = []byte(target)
				kind = object.KindSymlink
			case p.mode&0o111 != 0:
				data, err := os.ReadFile(p.abs)
				if err != nil {
					return fmt.Errorf("read %q: %w", p.path, err)
				}
				content = data
				kind = object.KindExecutable
			default:
				data, err := os.ReadFile(p.abs)
				if err != nil {
					return fmt.Errorf("read %q: %w", p.path, err)
				}
				content = data
				kind = object.KindFile
			}

			mu.Lock()
			defer mu.Unlock()
			id, err := r.db.Write(content, object.TypeBlob)
			if err != nil {
				return fmt.Errorf("write blob %q: %w", p.path, err)
			}
			staged[i] = stagedFile{path: p.path, kind: kind, id: id}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return staged, nil
}

// writeTreeFromStaged groups staged files by directory, recursively writes
// subtrees, and returns the tree ID for the given prefix.
func (r *Repo) writeTreeFromStaged(staged []stagedFile, prefix string) (object.ID, error) {
	files := make(map[string]stagedFile)
	subdirs := make(map[string]struct{})

	for _, f := range staged {
		rel := f.path
		if prefix != "" {
			if !strings.HasPrefix(f.path, prefix+"/") {
				continue
			}
			rel = f.path[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash < 0 {
			files[rel] = f
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(files)+len(subdirs))
	for name := range files {
		names = append(names, name)
	}
	for name := range subdirs {
		if _, isFile := files[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	entries := make([]object.TreeEntry, 0, len(names))
	for _, name := range names {
		if f, isFile := files[name]; isFile {
			entries = append(entries, object.NewTreeEntry(name, f.kind, f.id))
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		subID, err := r.writeTreeFromStaged(staged, childPrefix)
		if err != nil {
			return object.ID{}, fmt.Errorf("build tree %q: %w", childPrefix, err)
		}
		entries = append(entries, object.NewTreeEntry(name, object.KindTree, subID))
	}

	data, err := object.MarshalTree(entries)
	if err != nil {
		return object.ID{}, fmt.Errorf("marshal tree (prefix=%q): %w", prefix, err)
	}
	id, err := r.db.Write(data, object.TypeTree)
	if err != nil {
		return object.ID{}, fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return id, nil
}

// pointHeadAt updates the branch HEAD names (or HEAD itself when detached)
// to the commit, retrying on lock contention.
func (r *Repo) pointHeadAt(commitID object.ID) error {
	head, err := r.headRef()
	if err != nil {
		return err
	}
	refName := "HEAD"
	if strings.HasPrefix(head, "refs/") {
		refName = head
	}

	var lastErr error
	for attempt := 0; attempt < gitLockNumTries; attempt++ {
		if attempt > 0 {
			sleepLockWait()
		}
		lastErr = r.writeRefLocked(refName, commitID)
		if lastErr == nil {
			return nil
		}
		if !isLocked(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// prettifyMessage normalises a commit message the way git does: comment
// lines stripped, trailing whitespace trimmed, exactly one trailing newline.
func prettifyMessage(message string) string {
	var out []string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	joined := strings.TrimRight(strings.Join(out, "\n"), "\n")
	if joined == "" {
		return ""
	}
	return joined + "\n"
}

// GetHeadCommit resolves HEAD to a commit hex ID.
func (r *Repo) GetHeadCommit() (string, error) {
	if err := r.requireReal("get head commit"); err != nil {
		return "", err
	}
	id, err := r.resolveRef("HEAD")
	if err != nil {
		r.log.Debug("HEAD resolution failed", zap.Error(err))
		return "", fmt.Errorf("get head commit: %w", err)
	}
	return id.Hex(), nil
}
