// Package bytestream provides bounded, position-aware reads and
// append-only writes over an in-memory byte buffer, optionally backed
// by a billy.Filesystem so callers can swap os, in-memory, or chroot
// filesystems without touching the codec layers above it.
package bytestream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// ErrUnexpectedEOF is wrapped by every read that runs past the end of
// the underlying buffer.
var ErrUnexpectedEOF = errors.New("bytestream: unexpected end of stream")

// MaxStringLen bounds the string length prefix: strings are UTF-8
// preceded by a u16_le byte length, bounded to 65535 bytes.
const MaxStringLen = 65535

// Reader is a bounded cursor over an immutable byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for reading. The slice is not copied; callers
// must not mutate it while the Reader is in use.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// OpenReader reads path fully from fs and returns a Reader over its
// contents.
func OpenReader(fs billy.Filesystem, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bytestream: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("bytestream: read %s: %w", path, err)
	}
	return NewReader(data), nil
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.data) - r.pos }

// Pos returns the current absolute read offset, useful in error
// messages and warning coordinates.
func (r *Reader) Pos() int { return r.pos }

// ReadExact returns the next n bytes, advancing the cursor. It fails
// with ErrUnexpectedEOF if fewer than n bytes remain.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("bytestream: read %d bytes at offset %d: %w", n, r.pos, ErrUnexpectedEOF)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// PeekByte returns the next byte without advancing the cursor. ok is
// false at end of stream.
func (r *Reader) PeekByte() (b byte, ok bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	return r.data[r.pos], true
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16LE reads a little-endian uint16.
func (r *Reader) ReadU16LE() (uint16, error) {
	b, err := r.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32LE reads a little-endian uint32.
func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadString reads a u16_le length prefix followed by that many bytes,
// decoded as UTF-8 with lossy replacement of invalid sequences.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU16LE()
	if err != nil {
		return "", err
	}
	b, err := r.ReadExact(int(n))
	if err != nil {
		return "", err
	}
	return DecodeLossyUTF8(b), nil
}

// DecodeLossyUTF8 decodes b as UTF-8, replacing invalid byte sequences
// with the Unicode replacement character instead of failing.
func DecodeLossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// Writer is an append-only little-endian byte sink.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

func (w *Writer) WriteU8(v uint8) { w.buf.WriteByte(v) }

func (w *Writer) WriteU16LE(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *Writer) WriteBytes(b []byte) { w.buf.Write(b) }

// WriteString writes a u16_le length prefix followed by s's UTF-8
// bytes. It fails if s exceeds MaxStringLen bytes.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("bytestream: string too long: %d bytes (max %d)", len(s), MaxStringLen)
	}
	w.WriteU16LE(uint16(len(s)))
	w.buf.WriteString(s)
	return nil
}

// Bytes returns the accumulated buffer. The returned slice aliases the
// Writer's internal storage and must be copied before further writes
// if the caller retains it across mutation.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// WriteTo persists the accumulated bytes to path on fs, creating or
// truncating it.
func (w *Writer) WriteTo(fs billy.Filesystem, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("bytestream: create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(w.buf.Bytes()); err != nil {
		return fmt.Errorf("bytestream: write %s: %w", path, err)
	}
	return nil
}
