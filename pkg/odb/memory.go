package odb

import (
	"fmt"

	"github.com/odvcencio/quarry/pkg/object"
)

// MemoryBackend supports shallow tree synthesis in RAM. It holds serialised
// tree bytes plus header-only knowledge of the blobs those trees reference:
// enough to answer existence and type checks during tree construction
// without ever storing blob content.
type MemoryBackend struct {
	// entries maps a raw id to the listing nodes referencing it. Only
	// headers are derivable from it; content stays in an external CAS.
	entries map[object.ID][]object.TreeNode
	// trees maps a raw id to serialised tree bytes.
	trees map[object.ID][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[object.ID][]object.TreeNode),
		trees:   make(map[object.ID][]byte),
	}
}

// SeedEntries records listing nodes so that child lookups succeed while a
// tree referencing them is built.
func (m *MemoryBackend) SeedEntries(listing object.TreeListing) {
	for id, nodes := range listing {
		m.entries[id] = append(m.entries[id], nodes...)
	}
}

// ReadHeader reports stored trees exactly; ids known only through listing
// nodes report the type of their first node and size zero, since headers are
// consulted only to verify type before a walk.
func (m *MemoryBackend) ReadHeader(id object.ID) (object.Type, int, error) {
	if data, ok := m.trees[id]; ok {
		return object.TypeTree, len(data), nil
	}
	if nodes, ok := m.entries[id]; ok && len(nodes) > 0 {
		if nodes[0].Kind.IsTree() {
			return object.TypeTree, 0, nil
		}
		return object.TypeBlob, 0, nil
	}
	return "", 0, fmt.Errorf("memory header %s: %w", id, ErrNotFound)
}

// Read materialises stored trees only; blob content never lives here.
func (m *MemoryBackend) Read(id object.ID) ([]byte, object.Type, error) {
	data, ok := m.trees[id]
	if !ok {
		return nil, "", fmt.Errorf("memory read %s: %w", id, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, object.TypeTree, nil
}

// Exists reports membership in either map.
func (m *MemoryBackend) Exists(id object.ID) bool {
	if _, ok := m.trees[id]; ok {
		return true
	}
	_, ok := m.entries[id]
	return ok
}

// Write stores serialised tree bytes under id. Non-tree writes are rejected;
// the backend exists for shallow synthesis, not blob storage.
func (m *MemoryBackend) Write(id object.ID, data []byte, objType object.Type) error {
	if objType != object.TypeTree {
		return fmt.Errorf("memory write %s: only trees are storable, got %q", id, objType)
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.trees[id] = stored
	return nil
}

// TreeBytes returns the serialised bytes stored for id, if any.
func (m *MemoryBackend) TreeBytes(id object.ID) ([]byte, bool) {
	data, ok := m.trees[id]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}
