package repo

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/odvcencio/quarry/pkg/object"
	"github.com/odvcencio/quarry/pkg/odb"
)

// SymlinkCheck receives the deduplicated blob IDs of every symlink in a
// walked tree and reports whether all their targets are non-upwards. The
// engine never reads target content itself; it may not be present locally.
type SymlinkCheck func(ids []object.ID) bool

// ReadTree looks up a tree and walks its entries flat: one level, no
// recursion into subtrees. With ignoreSpecial set, special entries --
// symlinks and unsupported modes -- are skipped silently. Without it, an
// unsupported mode fails the walk and every symlink entry is batch-checked
// through checkSymlinks afterwards.
func (r *Repo) ReadTree(id object.ID, checkSymlinks SymlinkCheck, ignoreSpecial bool) (object.TreeListing, error) {
	data, objType, err := r.db.Read(id)
	if err != nil {
		r.log.Debug("tree lookup failed", zap.String("id", id.Hex()), zap.Error(err))
		return nil, fmt.Errorf("read tree %s: %w", id, err)
	}
	if objType != object.TypeTree {
		return nil, fmt.Errorf("read tree %s: object is a %s", id, objType)
	}

	entries, err := object.UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", id, err)
	}

	listing := make(object.TreeListing, len(entries))
	var symlinks []object.ID
	seenSymlink := make(map[object.ID]struct{})
	for _, e := range entries {
		kind, err := e.Kind()
		if err != nil {
			if ignoreSpecial {
				continue
			}
			return nil, fmt.Errorf("read tree %s: entry %q: %w", id, e.Name, err)
		}
		if ignoreSpecial && kind.IsSymlink() {
			// Symlinks are special entries: allowed, but not stored.
			continue
		}
		listing[e.ID] = append(listing[e.ID], object.TreeNode{Name: e.Name, Kind: kind})

		if !ignoreSpecial && kind.IsSymlink() {
			if _, dup := seenSymlink[e.ID]; !dup {
				seenSymlink[e.ID] = struct{}{}
				symlinks = append(symlinks, e.ID)
			}
		}
	}

	if !ignoreSpecial && len(symlinks) > 0 {
		if checkSymlinks == nil || !checkSymlinks(symlinks) {
			r.log.Debug("symlink check rejected tree", zap.String("id", id.Hex()))
			return nil, fmt.Errorf("read tree %s: %w", id, ErrUnsafeSymlink)
		}
	}

	if err := auditListing(listing); err != nil {
		return nil, fmt.Errorf("read tree %s: %w", id, err)
	}
	return listing, nil
}

// auditListing enforces the invariant that one raw id never names both tree
// and blob content.
func auditListing(listing object.TreeListing) error {
	for id, nodes := range listing {
		for _, n := range nodes[1:] {
			if n.Kind.IsTree() != nodes[0].Kind.IsTree() {
				return fmt.Errorf("listing invariant violated for %s", id)
			}
		}
	}
	return nil
}

// CreateTree builds a tree from the listing and writes it to the ODB,
// returning the new tree's ID. Children must be resolvable in the ODB; for
// shallow synthesis that means seeded listing entries. An empty listing
// yields the canonical empty tree.
func (r *Repo) CreateTree(listing object.TreeListing) (object.ID, error) {
	entries := make([]object.TreeEntry, 0, len(listing))
	for id, nodes := range listing {
		for _, n := range nodes {
			if !r.db.Exists(id) {
				return object.ID{}, fmt.Errorf("create tree: child %s (%q) unknown to odb", id, n.Name)
			}
			entries = append(entries, object.NewTreeEntry(n.Name, n.Kind, id))
		}
	}

	data, err := object.MarshalTree(entries)
	if err != nil {
		return object.ID{}, fmt.Errorf("create tree: %w", err)
	}
	id, err := r.db.Write(data, object.TypeTree)
	if err != nil {
		return object.ID{}, fmt.Errorf("create tree: %w", err)
	}
	return id, nil
}

// ReadTreeData walks serialised tree bytes that live outside any repository
// (for example, fetched from a CAS). The bytes are staged under id in a
// private in-memory ODB wrapped by a fake handle; id is trusted to be the
// git hash of data. Mismatches are the caller's to detect.
func ReadTreeData(data []byte, id object.ID, checkSymlinks SymlinkCheck) (object.TreeListing, error) {
	db, mem := odb.NewInMemory()
	if err := mem.Write(id, data, object.TypeTree); err != nil {
		return nil, fmt.Errorf("read tree data: %w", err)
	}
	fake := Open(db)
	defer fake.Close()
	return fake.ReadTree(id, checkSymlinks, false)
}

// CreateShallowTree builds a tree from the listing without requiring any
// referenced blob to be present anywhere: the listing itself seeds a private
// in-memory ODB so child lookups succeed. Returns the new tree's ID and its
// serialised bytes, which the caller persists into a real CAS.
func CreateShallowTree(listing object.TreeListing) (object.ID, []byte, error) {
	db, mem := odb.NewInMemory()
	mem.SeedEntries(listing)
	fake := Open(db)
	defer fake.Close()

	id, err := fake.CreateTree(listing)
	if err != nil {
		return object.ID{}, nil, fmt.Errorf("create shallow tree: %w", err)
	}
	data, ok := mem.TreeBytes(id)
	if !ok {
		return object.ID{}, nil, errors.New("create shallow tree: tree bytes missing from backend")
	}
	return id, data, nil
}

// SortedNodes returns a listing's nodes for one id in name order. Walk
// results are maps; tests and deterministic consumers use this.
func SortedNodes(listing object.TreeListing, id object.ID) []object.TreeNode {
	nodes := append([]object.TreeNode(nil), listing[id]...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}
