package object

import (
	"crypto/sha1"
	"fmt"
)

// HashObject computes the Git object ID: SHA-1 over the envelope
// "type len\0content".
func HashObject(objType Type, data []byte) ID {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// EmptyTreeID is the canonical ID of the empty tree,
// 4b825dc642cb6eb9a060e54bf8d69288fbee4904.
var EmptyTreeID = HashObject(TypeTree, nil)
