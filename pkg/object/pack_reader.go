package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry represents one full object entry decoded from a pack stream.
type PackEntry struct {
	Type Type
	Data []byte
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Entries  []PackEntry
	Checksum ID
}

// ReadPack parses a full pack byte slice, verifies the trailer checksum, and
// returns the decoded entries. Delta entries are rejected: packs produced by
// this engine only ever carry full objects.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packFrameLen+sha1.Size {
		return nil, fmt.Errorf("pack too short: %d", len(data))
	}

	payload := data[:len(data)-sha1.Size]
	trailer := data[len(data)-sha1.Size:]

	sum := sha1.Sum(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("pack checksum mismatch")
	}

	numObjects, err := parsePackStreamFrame(payload)
	if err != nil {
		return nil, err
	}

	offset := packFrameLen
	entries := make([]PackEntry, 0, numObjects)
	for i := uint32(0); i < numObjects; i++ {
		packType, size, n, err := parseEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		objType, err := TypeOfPack(packType)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n
		if offset >= len(payload) {
			return nil, fmt.Errorf("entry %d: missing compressed payload", i)
		}

		sub := bytes.NewReader(payload[offset:])
		zr, err := zlib.NewReader(sub)
		if err != nil {
			return nil, fmt.Errorf("entry %d: zlib reader: %w", i, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("entry %d: decompress: %w", i, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("entry %d: close zlib stream: %w", i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("entry %d: size mismatch header=%d decoded=%d", i, size, len(raw))
		}

		consumed := len(payload[offset:]) - sub.Len()
		offset += consumed

		entries = append(entries, PackEntry{
			Type: objType,
			Data: raw,
		})
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("pack has trailing undecoded bytes: %d", len(payload)-offset)
	}

	checksum, err := IDFromRaw(trailer)
	if err != nil {
		return nil, err
	}
	return &PackFile{
		Entries:  entries,
		Checksum: checksum,
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}
