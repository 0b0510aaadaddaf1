package odb

import (
	"errors"
	"io"

	"github.com/odvcencio/quarry/pkg/object"
)

// ErrNotFound reports that an object is not present in a backend or in any
// backend of an ODB.
var ErrNotFound = errors.New("object not found")

// Backend serves object lookups for one storage substrate. Implementations
// are registered on an ODB, which consults them in priority order under its
// lock; backends do not lock themselves.
type Backend interface {
	// ReadHeader reports an object's type and size without materialising
	// its content. Backends that only track existence may report size 0.
	ReadHeader(id object.ID) (object.Type, int, error)

	// Read returns the object's content and type. The returned buffer is
	// owned by the caller.
	Read(id object.ID) ([]byte, object.Type, error)

	// Exists reports whether the backend can answer for id.
	Exists(id object.ID) bool

	// Write stores data under id. The id is trusted; callers hash before
	// writing.
	Write(id object.ID, data []byte, objType object.Type) error
}

// PackReceiver is an optional backend capability: accept a whole pack stream
// instead of per-object writes. Progress is reported as entries are stored.
type PackReceiver interface {
	ReceivePack(r io.Reader, progress func(received, total int)) error
}
