// Package binio implements the project file's binary primitives: a
// sentinel-prefixed varint codec, length-prefixed strings, and count-prefixed
// vectors. Every other persistence-capable package (db, cartridge, cpu,
// ppu, project) builds on these helpers instead of encoding/gob or
// encoding/json -- the wire format is part of the tool's contract, not an
// implementation choice.
package binio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Sentinel byte values for the unsigned varint encoding. Values below
// sentinelNeg (250) encode as a single byte; the three sentinels select a 16/32/64
// bit little-endian payload. 250 doubles as the "negative follows" marker for
// the signed encoding.
const (
	sentinelNeg     = 250
	sentinelUnused1 = 251
	sentinelU16     = 252
	sentinelU32     = 253
	sentinelU64     = 254
	sentinelUnused2 = 255
)

// Writer wraps an io.Writer with the project's binary primitives. The first
// error encountered is sticky (subsequent calls are no-ops) so callers
// can chain a sequence of writes and check Err once at the end.
type Writer struct {
	w   io.Writer
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Err() error { return w.err }

func (w *Writer) Flush() error {
	if bw, ok := w.w.(*bufio.Writer); ok {
		if err := bw.Flush(); err != nil && w.err == nil {
			w.err = err
		}
	}
	return w.err
}

func (w *Writer) writeRaw(p []byte) {
	if w.err != nil {
		return
	}
	if _, err := w.w.Write(p); err != nil {
		w.err = err
	}
}

// WriteByte writes a single raw byte.
func (w *Writer) WriteByte(b byte) {
	w.writeRaw([]byte{b})
}

// WriteVarUint writes v using the sentinel-prefixed unsigned varint format.
func (w *Writer) WriteVarUint(v uint64) {
	switch {
	case v < sentinelNeg:
		w.writeRaw([]byte{byte(v)})
	case v <= 0xFFFF:
		buf := make([]byte, 3)
		buf[0] = sentinelU16
		binary.LittleEndian.PutUint16(buf[1:], uint16(v))
		w.writeRaw(buf)
	case v <= 0xFFFFFFFF:
		buf := make([]byte, 5)
		buf[0] = sentinelU32
		binary.LittleEndian.PutUint32(buf[1:], uint32(v))
		w.writeRaw(buf)
	default:
		buf := make([]byte, 9)
		buf[0] = sentinelU64
		binary.LittleEndian.PutUint64(buf[1:], v)
		w.writeRaw(buf)
	}
}

// WriteVarInt writes a signed value: non-negative values use the unsigned
// encoding directly; negative values are prefixed with sentinelNeg and
// followed by the unsigned encoding of the absolute value.
func (w *Writer) WriteVarInt(v int64) {
	if v >= 0 {
		w.WriteVarUint(uint64(v))
		return
	}
	w.writeRaw([]byte{sentinelNeg})
	w.WriteVarUint(uint64(-v))
}

// WriteString writes a varint length followed by the raw bytes.
func (w *Writer) WriteString(s string) {
	w.WriteVarUint(uint64(len(s)))
	w.writeRaw([]byte(s))
}

// WriteBool writes a boolean as a single varint 0/1.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteVarUint(1)
	} else {
		w.WriteVarUint(0)
	}
}

// WriteBytes writes a varint-prefixed raw byte slice (a vector<u8>).
func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarUint(uint64(len(b)))
	w.writeRaw(b)
}

// WriteVector writes count then invokes write once per element.
func WriteVector[T any](w *Writer, items []T, write func(*Writer, T)) {
	w.WriteVarUint(uint64(len(items)))
	for _, item := range items {
		write(w, item)
	}
}

// WriteFixedUint64/WriteFixedUint32 write a raw little-endian fixed-width
// value with no varint sentinel, for the project file header's magic,
// version, and flags fields, which are plain LE integers rather than the
// varint primitive.
func (w *Writer) WriteFixedUint64(v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	w.writeRaw(buf)
}

func (w *Writer) WriteFixedUint32(v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	w.writeRaw(buf)
}

// Section writes one of the project file's recursive tagged blocks: an id
// and an abbreviation, followed by body's own writes. No body length is
// written, so a reader has to parse the body to get past the block.
func (w *Writer) Section(id uint64, abbreviation string, body func(*Writer)) {
	w.WriteVarUint(id)
	w.WriteString(abbreviation)
	body(w)
}

// Reader wraps an io.Reader with the inverse of Writer's primitives. Like
// Writer, the first error is sticky.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) readRaw(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = err
	}
	return buf
}

func (r *Reader) ReadByte() byte {
	return r.readRaw(1)[0]
}

func (r *Reader) ReadVarUint() uint64 {
	if r.err != nil {
		return 0
	}
	first := r.readRaw(1)[0]
	switch first {
	case sentinelU16:
		return uint64(binary.LittleEndian.Uint16(r.readRaw(2)))
	case sentinelU32:
		return uint64(binary.LittleEndian.Uint32(r.readRaw(4)))
	case sentinelU64:
		return binary.LittleEndian.Uint64(r.readRaw(8))
	case sentinelNeg, sentinelUnused1, sentinelUnused2:
		if r.err == nil {
			r.err = fmt.Errorf("binio: reserved sentinel byte 0x%02X in unsigned varint", first)
		}
		return 0
	default:
		return uint64(first)
	}
}

func (r *Reader) ReadVarInt() int64 {
	if r.err != nil {
		return 0
	}
	// Peek the sentinel without consuming on the non-negative path: the
	// unsigned decoder already handles every non-negative first byte, so we
	// only need to special-case sentinelNeg here.
	br, ok := r.peekByte()
	if !ok {
		return 0
	}
	if br == sentinelNeg {
		r.readRaw(1)
		return -int64(r.ReadVarUint())
	}
	return int64(r.ReadVarUint())
}

// peekByte reads one byte without a general-purpose unread; since Reader is
// always backed by a bufio.Reader internally, this is implemented via the
// underlying buffered reader's Peek.
func (r *Reader) peekByte() (byte, bool) {
	if r.err != nil {
		return 0, false
	}
	br, ok := r.r.(*bufio.Reader)
	if !ok {
		// Shouldn't happen: NewReader always wraps in bufio.Reader.
		b := r.readRaw(1)
		return b[0], r.err == nil
	}
	buf, err := br.Peek(1)
	if err != nil {
		r.err = err
		return 0, false
	}
	return buf[0], true
}

func (r *Reader) ReadString() string {
	n := r.ReadVarUint()
	if r.err != nil {
		return ""
	}
	return string(r.readRaw(int(n)))
}

func (r *Reader) ReadBool() bool {
	return r.ReadVarUint() != 0
}

func (r *Reader) ReadBytes() []byte {
	n := r.ReadVarUint()
	if r.err != nil {
		return nil
	}
	return r.readRaw(int(n))
}

// ReadVector reads a varint count then invokes read that many times.
func ReadVector[T any](r *Reader, read func(*Reader) T) []T {
	n := r.ReadVarUint()
	if r.err != nil || n == 0 {
		return nil
	}
	items := make([]T, 0, n)
	for i := uint64(0); i < n; i++ {
		items = append(items, read(r))
	}
	return items
}

// ReadFixedUint64/ReadFixedUint32 are the inverse of WriteFixedUint64/32.
func (r *Reader) ReadFixedUint64() uint64 {
	return binary.LittleEndian.Uint64(r.readRaw(8))
}

func (r *Reader) ReadFixedUint32() uint32 {
	return binary.LittleEndian.Uint32(r.readRaw(4))
}

// ReadSectionTag reads the (id, abbreviation) pair Section wrote; the
// caller reads the body itself immediately afterward.
func (r *Reader) ReadSectionTag() (id uint64, abbreviation string) {
	return r.ReadVarUint(), r.ReadString()
}
