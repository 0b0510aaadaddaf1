package object

import (
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// RawIDSize is the byte length of a raw object ID.
	RawIDSize = 20
	// HexIDSize is the character length of a hex-encoded object ID.
	HexIDSize = 40
)

// ErrInvalidID reports a malformed hex string or a raw ID of the wrong length.
var ErrInvalidID = errors.New("invalid object id")

// ID is the raw 20-byte identity of a Git object. IDs are stored raw
// internally and converted to hex at boundaries.
type ID [RawIDSize]byte

// IDFromHex parses a 40-character hex digest into an ID. Input case is
// accepted but IDs always render lowercase.
func IDFromHex(s string) (ID, error) {
	var id ID
	if len(s) != HexIDSize {
		return id, fmt.Errorf("%w: hex length %d, want %d", ErrInvalidID, len(s), HexIDSize)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// IDFromRaw copies a 20-byte raw digest into an ID.
func IDFromRaw(b []byte) (ID, error) {
	var id ID
	if len(b) != RawIDSize {
		return id, fmt.Errorf("%w: raw length %d, want %d", ErrInvalidID, len(b), RawIDSize)
	}
	copy(id[:], b)
	return id, nil
}

// Hex returns the lowercase 40-character digest.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// Raw returns a fresh copy of the 20 raw digest bytes.
func (id ID) Raw() []byte {
	out := make([]byte, RawIDSize)
	copy(out, id[:])
	return out
}

func (id ID) String() string {
	return id.Hex()
}
