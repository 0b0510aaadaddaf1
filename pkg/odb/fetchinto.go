package odb

import (
	"fmt"
	"io"

	"github.com/odvcencio/quarry/pkg/object"
)

// FetchIntoBackend is a stateless adapter registered on a throwaway
// repository's ODB during a fetch. Incoming packs are piped straight into
// the target ODB, and existence checks consult the target so already-held
// objects are not transferred again. Every other operation fails: lookups
// for the throwaway repository's own state must not spuriously resolve to
// target objects.
type FetchIntoBackend struct {
	target *ODB
}

// NewFetchIntoBackend creates an adapter forwarding to target.
func NewFetchIntoBackend(target *ODB) *FetchIntoBackend {
	return &FetchIntoBackend{target: target}
}

// ReceivePack unpacks the stream into the target ODB, propagating progress
// unchanged.
func (f *FetchIntoBackend) ReceivePack(r io.Reader, progress func(received, total int)) error {
	pack, err := object.ReadPackFromReader(r)
	if err != nil {
		return fmt.Errorf("fetch-into: %w", err)
	}
	total := len(pack.Entries)
	for i, entry := range pack.Entries {
		if _, err := f.target.Write(entry.Data, entry.Type); err != nil {
			return fmt.Errorf("fetch-into: %w", err)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

// Exists consults the target ODB.
func (f *FetchIntoBackend) Exists(id object.ID) bool {
	return f.target.Exists(id)
}

// ReadHeader is not served; local lookups must miss.
func (f *FetchIntoBackend) ReadHeader(id object.ID) (object.Type, int, error) {
	return "", 0, fmt.Errorf("fetch-into backend serves no local reads (%s)", id)
}

// Read is not served; local lookups must miss.
func (f *FetchIntoBackend) Read(id object.ID) ([]byte, object.Type, error) {
	return nil, "", fmt.Errorf("fetch-into backend serves no local reads (%s)", id)
}

// Write is not served; fetched objects arrive only as packs.
func (f *FetchIntoBackend) Write(id object.ID, data []byte, objType object.Type) error {
	return fmt.Errorf("fetch-into backend accepts only packs (%s)", id)
}
