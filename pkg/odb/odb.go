package odb

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/odvcencio/quarry/pkg/object"
)

// MaxPriority is the highest backend priority; a backend registered with it
// is always consulted first.
const MaxPriority = int(^uint(0) >> 1)

// ODB is the object database of one repository. It owns the reader/writer
// lock all object access is serialised through: reads take it shared, writes
// exclusive. Backends must be registered before concurrent use.
type ODB struct {
	mu       sync.RWMutex
	backends []registeredBackend
	def      Backend

	gitDir  string
	workDir string
}

type registeredBackend struct {
	backend  Backend
	priority int
	order    int
}

// New opens the on-disk object database under gitDir. workDir is the
// repository's absolute working directory, empty for bare repositories.
func New(gitDir, workDir string) *ODB {
	d := &ODB{gitDir: gitDir, workDir: workDir}
	loose := NewLooseBackend(gitDir)
	d.def = loose
	d.AddBackend(loose, 0)
	return d
}

// NewInMemory creates a private, disk-free ODB whose default backend is the
// returned memory backend.
func NewInMemory() (*ODB, *MemoryBackend) {
	mem := NewMemoryBackend()
	d := &ODB{}
	d.def = mem
	d.AddBackend(mem, 0)
	return d, mem
}

// GitDir returns the absolute git directory, empty for in-memory databases.
func (d *ODB) GitDir() string { return d.gitDir }

// WorkDir returns the absolute working directory, empty for bare or
// in-memory databases.
func (d *ODB) WorkDir() string { return d.workDir }

// AddBackend installs an extra backend. Higher priority wins first; ties
// break by registration order. Not safe while readers are active.
func (d *ODB) AddBackend(b Backend, priority int) {
	d.backends = append(d.backends, registeredBackend{
		backend:  b,
		priority: priority,
		order:    len(d.backends),
	})
	sort.SliceStable(d.backends, func(i, j int) bool {
		if d.backends[i].priority != d.backends[j].priority {
			return d.backends[i].priority > d.backends[j].priority
		}
		return d.backends[i].order < d.backends[j].order
	})
}

// Read fetches raw object bytes from the first backend that answers.
func (d *ODB) Read(id object.ID) ([]byte, object.Type, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, reg := range d.backends {
		data, objType, err := reg.backend.Read(id)
		if err == nil {
			return data, objType, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("read %s: %w", id, ErrNotFound)
}

// ReadHeader reports an object's type and size from the first backend that
// answers.
func (d *ODB) ReadHeader(id object.ID) (object.Type, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, reg := range d.backends {
		objType, size, err := reg.backend.ReadHeader(id)
		if err == nil {
			return objType, size, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", 0, err
		}
	}
	return "", 0, fmt.Errorf("read header %s: %w", id, ErrNotFound)
}

// Exists reports whether any backend holds the object.
func (d *ODB) Exists(id object.ID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, reg := range d.backends {
		if reg.backend.Exists(id) {
			return true
		}
	}
	return false
}

// Write hashes data as objType, inserts it into the default backend, and
// returns its ID.
func (d *ODB) Write(data []byte, objType object.Type) (object.ID, error) {
	id := object.HashObject(objType, data)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.def.Write(id, data, objType); err != nil {
		return object.ID{}, fmt.Errorf("write %s %s: %w", objType, id, err)
	}
	return id, nil
}

// ReceivePack hands an incoming pack stream to the highest-priority backend
// implementing PackReceiver; with none registered, the entries are unpacked
// into the default backend.
func (d *ODB) ReceivePack(r io.Reader, progress func(received, total int)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, reg := range d.backends {
		if pr, ok := reg.backend.(PackReceiver); ok {
			return pr.ReceivePack(r, progress)
		}
	}
	return unpackInto(d.def, r, progress)
}

// Guard runs fn while holding the exclusive lock. Repository teardown uses
// it so a concurrent reader is never mid-lookup when state is released.
func (d *ODB) Guard(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// unpackInto decodes a pack stream and stores every entry in dst under its
// computed ID.
func unpackInto(dst Backend, r io.Reader, progress func(received, total int)) error {
	pack, err := object.ReadPackFromReader(r)
	if err != nil {
		return fmt.Errorf("unpack: %w", err)
	}
	total := len(pack.Entries)
	for i, entry := range pack.Entries {
		id := object.HashObject(entry.Type, entry.Data)
		if err := dst.Write(id, entry.Data, entry.Type); err != nil {
			return fmt.Errorf("unpack %s %s: %w", entry.Type, id, err)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}
