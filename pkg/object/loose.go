package object

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// EncodeLoose produces the on-disk loose object representation: the
// "type len\0content" envelope, zlib-compressed.
func EncodeLoose(objType Type, data []byte) ([]byte, error) {
	if !ValidType(objType) {
		return nil, fmt.Errorf("encode loose: unknown object type %q", objType)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := fmt.Fprintf(zw, "%s %d\x00", objType, len(data)); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("encode loose: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("encode loose: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("encode loose: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeLoose inflates a loose object and validates its envelope, returning
// the type and content.
func DecodeLoose(data []byte) (Type, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decode loose: zlib reader: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return "", nil, fmt.Errorf("decode loose: inflate: %w", err)
	}
	if err := zr.Close(); err != nil {
		return "", nil, fmt.Errorf("decode loose: close: %w", err)
	}

	objType, content, err := splitEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("decode loose: %w", err)
	}
	return objType, content, nil
}

// DecodeLooseHeader inflates only enough of a loose object to parse its
// envelope, returning the type and declared content length.
func DecodeLooseHeader(data []byte) (Type, int, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("decode loose header: zlib reader: %w", err)
	}
	defer zr.Close()

	// Headers of 32 bytes or more are rejected; real ones such as
	// "commit 4294967295" are well below that.
	head := make([]byte, 0, 32)
	one := make([]byte, 1)
	for {
		n, err := zr.Read(one)
		if n == 1 {
			if one[0] == 0 {
				break
			}
			head = append(head, one[0])
			if len(head) == cap(head) {
				return "", 0, fmt.Errorf("decode loose header: header too long")
			}
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("decode loose header: %w", err)
		}
	}

	objType, length, err := parseEnvelopeHeader(string(head))
	if err != nil {
		return "", 0, fmt.Errorf("decode loose header: %w", err)
	}
	return objType, length, nil
}

func splitEnvelope(raw []byte) (Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return "", nil, fmt.Errorf("invalid envelope (no NUL)")
	}
	objType, length, err := parseEnvelopeHeader(string(raw[:nul]))
	if err != nil {
		return "", nil, err
	}
	content := raw[nul+1:]
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

func parseEnvelopeHeader(header string) (Type, int, error) {
	typeStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", 0, fmt.Errorf("invalid envelope header %q", header)
	}
	objType := Type(typeStr)
	if !ValidType(objType) {
		return "", 0, fmt.Errorf("unknown object type %q", typeStr)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length < 0 {
		return "", 0, fmt.Errorf("invalid length %q", lenStr)
	}
	return objType, length, nil
}
