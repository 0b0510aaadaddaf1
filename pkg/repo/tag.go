package repo

import (
	"bytes"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/quarry/pkg/object"
)

func sleepLockWait() {
	time.Sleep(gitLockWaitTime)
}

// KeepTag creates the forced annotated tag "keep-<targetHex>" pinning a
// commit or tree against garbage collection. Concurrent-safe across
// processes: a tag already created by someone else counts as success, and
// lock contention is retried with a presence re-check on each attempt.
func (r *Repo) KeepTag(targetHex, message string) error {
	if err := r.requireReal("keep tag"); err != nil {
		return err
	}

	target, err := object.IDFromHex(targetHex)
	if err != nil {
		return fmt.Errorf("keep tag: %w", err)
	}

	objType, _, err := r.db.ReadHeader(target)
	if err != nil {
		r.log.Error("keep tag target lookup failed",
			zap.String("target", targetHex), zap.Error(err))
		return fmt.Errorf("keep tag %s: %w", targetHex, err)
	}
	if objType != object.TypeCommit && objType != object.TypeTree {
		return fmt.Errorf("keep tag %s: target is a %s, want commit or tree", targetHex, objType)
	}

	tagName := "keep-" + targetHex
	refName := "refs/tags/" + tagName

	// Another process may already have pinned this object.
	if r.refExists(refName) {
		return nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", targetHex)
	fmt.Fprintf(&buf, "type %s\n", objType)
	fmt.Fprintf(&buf, "tag %s\n", tagName)
	fmt.Fprintf(&buf, "tagger %s\n", anonymousSig)
	buf.WriteByte('\n')
	buf.WriteString(prettifyMessage(message))

	tagID, err := r.db.Write(buf.Bytes(), object.TypeTag)
	if err != nil {
		return fmt.Errorf("keep tag %s: write tag object: %w", targetHex, err)
	}

	var lastErr error
	for attempt := 0; attempt < gitLockNumTries; attempt++ {
		if attempt > 0 {
			sleepLockWait()
			// The holder of the lock may have been another process
			// creating this very tag.
			if r.refExists(refName) {
				return nil
			}
		}
		lastErr = r.writeRefLocked(refName, tagID)
		if lastErr == nil {
			return nil
		}
		if !isLocked(lastErr) {
			r.log.Error("tag creation failed",
				zap.String("repo", r.GitDir()), zap.Error(lastErr))
			return fmt.Errorf("keep tag %s: %w", targetHex, lastErr)
		}
	}
	if r.refExists(refName) {
		return nil
	}
	r.log.Error("keep tag retries exhausted",
		zap.String("repo", r.GitDir()), zap.Error(lastErr))
	return fmt.Errorf("keep tag %s: %w", targetHex, lastErr)
}
