package object

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"github.com/klauspost/compress/zlib"
)

func compressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackWriter writes Git pack streams with zlib-compressed full object
// entries. The trailer checksum is SHA-1 over all bytes preceding it.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	expected uint32
	written  uint32
	finished bool
}

// NewPackWriter initialises a new writer and writes the opening frame.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha1.New()
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(out, hasher),
		expected: numObjects,
	}

	if _, err := pw.hashedW.Write(packStreamFrame(numObjects)); err != nil {
		return nil, fmt.Errorf("write pack frame: %w", err)
	}
	return pw, nil
}

// WriteEntry appends one full object entry to the pack stream.
func (p *PackWriter) WriteEntry(objType PackObjectType, data []byte) error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	if objType == PackOfsDelta || objType == PackRefDelta {
		return fmt.Errorf("delta entries are not produced")
	}

	header := appendEntryHeader(nil, objType, uint64(len(data)))
	if _, err := p.hashedW.Write(header); err != nil {
		return fmt.Errorf("write pack entry header: %w", err)
	}

	compressed, err := compressPackPayload(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	if _, err := p.hashedW.Write(compressed); err != nil {
		return fmt.Errorf("write compressed pack entry: %w", err)
	}

	p.written++
	return nil
}

// Finish validates the object count and writes the trailing pack checksum,
// returning it as an ID.
func (p *PackWriter) Finish() (ID, error) {
	if p.finished {
		return ID{}, fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return ID{}, fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return ID{}, fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	id, err := IDFromRaw(sum)
	if err != nil {
		return ID{}, err
	}
	return id, nil
}
