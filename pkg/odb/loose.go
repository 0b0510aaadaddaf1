package odb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/quarry/pkg/object"
)

// LooseBackend stores zlib-compressed loose objects with a 2-character
// fan-out directory layout: objects/ab/cdef0123...
type LooseBackend struct {
	root string
}

// NewLooseBackend creates a backend rooted at the given git directory. The
// objects/ subdirectory is created lazily on first write.
func NewLooseBackend(gitDir string) *LooseBackend {
	return &LooseBackend{root: gitDir}
}

func (b *LooseBackend) objectPath(id object.ID) string {
	hex := id.Hex()
	return filepath.Join(b.root, "objects", hex[:2], hex[2:])
}

// Exists reports whether the backend contains an object with the given id.
func (b *LooseBackend) Exists(id object.ID) bool {
	_, err := os.Stat(b.objectPath(id))
	return err == nil
}

// Read retrieves an object by id, returning its content and type.
func (b *LooseBackend) Read(id object.ID) ([]byte, object.Type, error) {
	raw, err := os.ReadFile(b.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("loose read %s: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("loose read %s: %w", id, err)
	}
	objType, content, err := object.DecodeLoose(raw)
	if err != nil {
		return nil, "", fmt.Errorf("loose read %s: %w", id, err)
	}
	return content, objType, nil
}

// ReadHeader parses just the loose object envelope, returning type and
// declared length.
func (b *LooseBackend) ReadHeader(id object.ID) (object.Type, int, error) {
	raw, err := os.ReadFile(b.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("loose header %s: %w", id, ErrNotFound)
		}
		return "", 0, fmt.Errorf("loose header %s: %w", id, err)
	}
	objType, length, err := object.DecodeLooseHeader(raw)
	if err != nil {
		return "", 0, fmt.Errorf("loose header %s: %w", id, err)
	}
	return objType, length, nil
}

// Write stores an object under id. Writes are atomic: data goes to a temp
// file which is then renamed into place. An existing object is left alone.
func (b *LooseBackend) Write(id object.ID, data []byte, objType object.Type) error {
	if b.Exists(id) {
		return nil
	}

	encoded, err := object.EncodeLoose(objType, data)
	if err != nil {
		return fmt.Errorf("loose write %s: %w", id, err)
	}

	dest := b.objectPath(id)
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("loose write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("loose write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("loose write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("loose write close: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("loose write rename: %w", err)
	}
	return nil
}
