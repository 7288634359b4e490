package pe

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// ByteReader is a random-access view over the raw image bytes. Every read is
// positioned (callers pass offsets, there is no cursor) and bounds-checked;
// reads past end-of-file fail with ErrTruncated. All integers are
// little-endian per the PE specification.
type ByteReader struct {
	data []byte
}

// NewByteReader wraps the given byte slice. The reader does not copy; the
// slice must outlive it.
func NewByteReader(data []byte) *ByteReader {
	return &ByteReader{data: data}
}

// Len returns the total number of bytes backing the reader.
func (r *ByteReader) Len() int {
	return len(r.data)
}

func (r *ByteReader) check(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > len(r.data) || offset+length < offset {
		return truncatedErr("read", offset, length)
	}
	return nil
}

// Bytes returns the raw slice [offset, offset+length). The slice aliases the
// underlying data and must not be modified.
func (r *ByteReader) Bytes(offset, length int) ([]byte, error) {
	if err := r.check(offset, length); err != nil {
		return nil, err
	}
	return r.data[offset : offset+length], nil
}

// U8 reads one byte.
func (r *ByteReader) U8(offset int) (uint8, error) {
	if err := r.check(offset, 1); err != nil {
		return 0, err
	}
	return r.data[offset], nil
}

// U16 reads a little-endian uint16.
func (r *ByteReader) U16(offset int) (uint16, error) {
	if err := r.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[offset:]), nil
}

// U32 reads a little-endian uint32.
func (r *ByteReader) U32(offset int) (uint32, error) {
	if err := r.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.data[offset:]), nil
}

// U64 reads a little-endian uint64.
func (r *ByteReader) U64(offset int) (uint64, error) {
	if err := r.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.data[offset:]), nil
}

// CString reads a NUL-terminated ANSI string starting at offset, truncated at
// max bytes or at the first NUL, whichever comes first. A string running to
// end-of-file without a terminator is returned as-is.
func (r *ByteReader) CString(offset, max int) ([]byte, error) {
	if err := r.check(offset, 0); err != nil {
		return nil, err
	}
	end := offset + max
	if max <= 0 || end > len(r.data) {
		end = len(r.data)
	}
	chunk := r.data[offset:end]
	if i := bytes.IndexByte(chunk, 0); i >= 0 {
		chunk = chunk[:i]
	}
	return chunk, nil
}

// WString reads charCount UTF-16LE code units starting at offset and decodes
// them to a Go string.
func (r *ByteReader) WString(offset, charCount int) (string, error) {
	if err := r.check(offset, charCount*2); err != nil {
		return "", err
	}
	units := make([]uint16, charCount)
	for i := 0; i < charCount; i++ {
		units[i] = binary.LittleEndian.Uint16(r.data[offset+i*2:])
	}
	return string(utf16.Decode(units)), nil
}

// WStringZ reads UTF-16LE code units starting at offset up to the first NUL
// unit or end-of-file, and decodes them.
func (r *ByteReader) WStringZ(offset int) (string, error) {
	if err := r.check(offset, 0); err != nil {
		return "", err
	}
	var units []uint16
	for pos := offset; pos+1 < len(r.data); pos += 2 {
		u := binary.LittleEndian.Uint16(r.data[pos:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// ReadInto decodes the fixed-width little-endian struct pointed to by iface
// from the bytes at offset. size must be binary.Size of the struct.
func (r *ByteReader) ReadInto(iface interface{}, offset, size int) error {
	chunk, err := r.Bytes(offset, size)
	if err != nil {
		return err
	}
	return binary.Read(bytes.NewReader(chunk), binary.LittleEndian, iface)
}
