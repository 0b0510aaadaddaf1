package odb

import (
	"bytes"
	"testing"

	"github.com/odvcencio/quarry/pkg/object"
)

func buildTestPack(t *testing.T, payloads ...[]byte) *bytes.Buffer {
	t.Helper()
	var pack bytes.Buffer
	pw, err := object.NewPackWriter(&pack, uint32(len(payloads)))
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	for _, p := range payloads {
		if err := pw.WriteEntry(object.PackBlob, p); err != nil {
			t.Fatalf("WriteEntry: %v", err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return &pack
}

func TestFetchIntoForwardsPackToTarget(t *testing.T) {
	target := New(t.TempDir(), "")
	host := New(t.TempDir(), "")
	host.AddBackend(NewFetchIntoBackend(target), MaxPriority)

	one, two := []byte("first"), []byte("second")
	var progress [][2]int
	err := host.ReceivePack(buildTestPack(t, one, two), func(received, total int) {
		progress = append(progress, [2]int{received, total})
	})
	if err != nil {
		t.Fatalf("ReceivePack: %v", err)
	}

	for _, p := range [][]byte{one, two} {
		id := object.HashObject(object.TypeBlob, p)
		if !target.Exists(id) {
			t.Fatalf("target missing %s", id)
		}
		// The host's own store must stay empty: the pack is piped through.
		if hostHasLoose(t, host, id) {
			t.Fatalf("host stored %s locally", id)
		}
	}
	if len(progress) != 2 || progress[1] != [2]int{2, 2} {
		t.Fatalf("progress = %v", progress)
	}
}

// hostHasLoose checks the host's default loose backend directly, bypassing
// the fetch-into backend whose Exists consults the target.
func hostHasLoose(t *testing.T, host *ODB, id object.ID) bool {
	t.Helper()
	return NewLooseBackend(host.GitDir()).Exists(id)
}

func TestFetchIntoExistsConsultsTarget(t *testing.T) {
	target := New(t.TempDir(), "")
	id, err := target.Write([]byte("held by target"), object.TypeBlob)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	host := New(t.TempDir(), "")
	host.AddBackend(NewFetchIntoBackend(target), MaxPriority)

	if !host.Exists(id) {
		t.Fatalf("host must see target objects through Exists")
	}
}

func TestFetchIntoServesNoLocalReads(t *testing.T) {
	target := New(t.TempDir(), "")
	id, err := target.Write([]byte("target only"), object.TypeBlob)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	fi := NewFetchIntoBackend(target)
	if _, _, err := fi.Read(id); err == nil {
		t.Fatalf("Read must fail")
	}
	if _, _, err := fi.ReadHeader(id); err == nil {
		t.Fatalf("ReadHeader must fail")
	}
	if err := fi.Write(id, []byte("x"), object.TypeBlob); err == nil {
		t.Fatalf("Write must fail")
	}
}
