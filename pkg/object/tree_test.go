package object

import (
	"bytes"
	"testing"
)

func mustHex(t *testing.T, hexID string) ID {
	t.Helper()
	id, err := IDFromHex(hexID)
	if err != nil {
		t.Fatalf("IDFromHex(%q): %v", hexID, err)
	}
	return id
}

func TestEmptyTreeIdentity(t *testing.T) {
	data, err := MarshalTree(nil)
	if err != nil {
		t.Fatalf("MarshalTree(nil): %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("empty tree bytes = %d, want 0", len(data))
	}
	if got := HashObject(TypeTree, data); got != EmptyTreeID {
		t.Fatalf("empty tree id = %s, want %s", got, EmptyTreeID)
	}
	if EmptyTreeID.Hex() != "4b825dc642cb6eb9a060e54bf8d69288fbee4904" {
		t.Fatalf("EmptyTreeID = %s", EmptyTreeID)
	}
}

func TestSingleFileTreeBytesAndID(t *testing.T) {
	emptyBlob := mustHex(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	data, err := MarshalTree([]TreeEntry{NewTreeEntry("a.txt", KindFile, emptyBlob)})
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}

	want := append([]byte("100644 a.txt\x00"), emptyBlob.Raw()...)
	if !bytes.Equal(data, want) {
		t.Fatalf("tree bytes = %q, want %q", data, want)
	}
	if got := HashObject(TypeTree, data).Hex(); got != "496d6428b9cf92981dc9495211e6e1120fb6f2ba" {
		t.Fatalf("tree id = %s, want 496d6428b9cf92981dc9495211e6e1120fb6f2ba", got)
	}
}

func TestMarshalTreeGitSortOrder(t *testing.T) {
	blob := mustHex(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	sub := mustHex(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904")

	// Directory names sort as if suffixed with "/": "a.txt" < "a/" < "a0".
	data, err := MarshalTree([]TreeEntry{
		{Name: "a0", Mode: ModeFile, ID: blob},
		{Name: "a", Mode: ModeTree, ID: sub},
		{Name: "a.txt", Mode: ModeFile, ID: blob},
	})
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}

	entries, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	gotOrder := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	wantOrder := []string{"a.txt", "a", "a0"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("sort order = %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestMarshalTreeRejectsBadEntries(t *testing.T) {
	blob := mustHex(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")

	cases := []struct {
		name    string
		entries []TreeEntry
	}{
		{"empty name", []TreeEntry{{Name: "", Mode: ModeFile, ID: blob}}},
		{"slash in name", []TreeEntry{{Name: "a/b", Mode: ModeFile, ID: blob}}},
		{"nul in name", []TreeEntry{{Name: "a\x00b", Mode: ModeFile, ID: blob}}},
		{"dot name", []TreeEntry{{Name: ".", Mode: ModeTree, ID: blob}}},
		{"duplicate name", []TreeEntry{
			{Name: "a", Mode: ModeFile, ID: blob},
			{Name: "a", Mode: ModeFile, ID: blob},
		}},
		{"submodule mode", []TreeEntry{{Name: "a", Mode: 0o160000, ID: blob}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MarshalTree(tc.entries); err == nil {
				t.Fatalf("MarshalTree accepted %s", tc.name)
			}
		})
	}
}

func TestUnmarshalTreeRoundTrip(t *testing.T) {
	blob := mustHex(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391")
	sub := mustHex(t, "4b825dc642cb6eb9a060e54bf8d69288fbee4904")

	in := []TreeEntry{
		NewTreeEntry("bin", KindExecutable, blob),
		NewTreeEntry("dir", KindTree, sub),
		NewTreeEntry("link", KindSymlink, blob),
		NewTreeEntry("readme", KindFile, blob),
	}
	data, err := MarshalTree(in)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	out, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("entry count = %d, want %d", len(out), len(in))
	}
	for _, e := range out {
		kind, err := e.Kind()
		if err != nil {
			t.Fatalf("entry %q kind: %v", e.Name, err)
		}
		switch e.Name {
		case "bin":
			if kind != KindExecutable {
				t.Fatalf("bin kind = %v", kind)
			}
		case "dir":
			if kind != KindTree || e.ID != sub {
				t.Fatalf("dir entry = %+v", e)
			}
		case "link":
			if kind != KindSymlink {
				t.Fatalf("link kind = %v", kind)
			}
		case "readme":
			if kind != KindFile || e.ID != blob {
				t.Fatalf("readme entry = %+v", e)
			}
		default:
			t.Fatalf("unexpected entry %q", e.Name)
		}
	}
}

func TestUnmarshalTreeMalformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"no space", []byte("100644")},
		{"no nul", []byte("100644 a.txt")},
		{"truncated id", []byte("100644 a.txt\x00short")},
		{"bad mode", []byte("10064x a.txt\x00" + string(make([]byte, 20)))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := UnmarshalTree(tc.data); err == nil {
				t.Fatalf("UnmarshalTree accepted %s", tc.name)
			}
		})
	}
}
