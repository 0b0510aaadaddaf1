package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TreeEntry is one record of a serialised tree: a name, a decoded git mode,
// and the referenced object's raw ID.
type TreeEntry struct {
	Name string
	Mode uint32
	ID   ID
}

// NewTreeEntry builds an entry from a kind, for callers that construct trees
// rather than parse them.
func NewTreeEntry(name string, kind Kind, id ID) TreeEntry {
	return TreeEntry{Name: name, Mode: kind.Mode(), ID: id}
}

// Kind maps the entry's mode to a Kind, failing for unsupported modes.
func (e TreeEntry) Kind() (Kind, error) {
	return KindFromMode(e.Mode)
}

// validateTreeName rejects names git cannot store in a tree record.
func validateTreeName(name string) error {
	if name == "" {
		return fmt.Errorf("tree entry name is empty")
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid tree entry name %q", name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid tree entry name %q", name)
	}
	return nil
}

// treeSortKey orders entries the way git does: plain byte order, except that
// directory names compare as if suffixed with "/".
func treeSortKey(e TreeEntry) string {
	if e.Mode == ModeTree {
		return e.Name + "/"
	}
	return e.Name
}

// MarshalTree serialises entries to the canonical git tree format:
// "mode SP name NUL raw-id" records concatenated in git sort order. Entry
// modes must be in the accepted set and names unique.
func MarshalTree(entries []TreeEntry) ([]byte, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	var buf bytes.Buffer
	seen := make(map[string]struct{}, len(sorted))
	for _, e := range sorted {
		if err := validateTreeName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if _, dup := seen[e.Name]; dup {
			return nil, fmt.Errorf("marshal tree: duplicate entry name %q", e.Name)
		}
		seen[e.Name] = struct{}{}
		if _, err := KindFromMode(e.Mode); err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}

		buf.WriteString(strconv.FormatUint(uint64(e.Mode), 8))
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.ID[:])
	}
	return buf.Bytes(), nil
}

// UnmarshalTree parses serialised tree bytes, preserving record order. Modes
// are decoded but not restricted here; callers decide whether an unsupported
// mode is skipped or fatal.
func UnmarshalTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed mode field")
		}
		mode, err := strconv.ParseUint(string(rest[:sp]), 8, 32)
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: bad mode %q: %w", rest[:sp], err)
		}
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul <= 0 {
			return nil, fmt.Errorf("unmarshal tree: malformed name field")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < RawIDSize {
			return nil, fmt.Errorf("unmarshal tree: truncated id for entry %q", name)
		}
		id, err := IDFromRaw(rest[:RawIDSize])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: entry %q: %w", name, err)
		}
		rest = rest[RawIDSize:]

		entries = append(entries, TreeEntry{Name: name, Mode: uint32(mode), ID: id})
	}
	return entries, nil
}
