package rmscene

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// initialWriteCapacity is the starting allocation for a write-mode
// ByteStream; it doubles whenever a write would overflow it.
const initialWriteCapacity = 1024

// ByteStream is a little-endian cursor over a byte buffer. It has two
// modes: reading against a caller-supplied, fixed buffer, or writing
// into an internally owned buffer that grows on demand. The same type
// serves both so that tag and block helpers built on top of it don't
// need to care which direction they're going.
type ByteStream struct {
	buf       []byte
	pos       int
	writeMode bool
}

// NewByteStreamReader wraps buf for sequential little-endian reads.
// buf is not copied; the caller must not mutate it while reading.
func NewByteStreamReader(buf []byte) *ByteStream {
	return &ByteStream{buf: buf}
}

// NewByteStreamWriter creates an empty write-mode ByteStream.
func NewByteStreamWriter() *ByteStream {
	return &ByteStream{buf: make([]byte, 0, initialWriteCapacity), writeMode: true}
}

// Bytes returns the buffer written so far (write mode) or the whole
// underlying buffer (read mode).
func (b *ByteStream) Bytes() []byte {
	return b.buf
}

// Tell returns the current cursor position.
func (b *ByteStream) Tell() int {
	return b.pos
}

// Len returns the length of the underlying buffer.
func (b *ByteStream) Len() int {
	return len(b.buf)
}

// Seek moves the cursor to pos, bounded by the buffer length.
func (b *ByteStream) Seek(pos int) error {
	if pos < 0 || pos > len(b.buf) {
		return errors.Wrapf(ErrEndOfInput, "seek to %d out of bounds (len %d)", pos, len(b.buf))
	}
	b.pos = pos
	return nil
}

// Remaining returns the bytes left until the logical end: the end of
// the buffer when reading, or the current position when writing (the
// write cursor's "remaining" is how much has been emitted into the
// current scope so far).
func (b *ByteStream) Remaining() int {
	if b.writeMode {
		return b.pos
	}
	return len(b.buf) - b.pos
}

func (b *ByteStream) requireRead(n int) ([]byte, error) {
	if b.pos+n > len(b.buf) {
		return nil, errors.Wrapf(ErrEndOfInput, "need %d bytes at offset %d, have %d", n, b.pos, len(b.buf)-b.pos)
	}
	out := b.buf[b.pos : b.pos+n]
	b.pos += n
	return out, nil
}

func (b *ByteStream) growFor(n int) {
	need := b.pos + n
	if need <= cap(b.buf) {
		return
	}
	newCap := cap(b.buf)
	if newCap == 0 {
		newCap = initialWriteCapacity
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(b.buf), newCap)
	copy(grown, b.buf)
	b.buf = grown
}

func (b *ByteStream) appendBytes(data []byte) {
	b.growFor(len(data))
	if b.pos+len(data) > len(b.buf) {
		b.buf = b.buf[:b.pos+len(data)]
	}
	copy(b.buf[b.pos:], data)
	b.pos += len(data)
}

// ReadBytes reads exactly n bytes.
func (b *ByteStream) ReadBytes(n int) ([]byte, error) {
	return b.requireRead(n)
}

// WriteBytes writes data verbatim.
func (b *ByteStream) WriteBytes(data []byte) {
	b.appendBytes(data)
}

// ReadU8 reads a single byte.
func (b *ByteStream) ReadU8() (uint8, error) {
	buf, err := b.requireRead(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteU8 writes a single byte.
func (b *ByteStream) WriteU8(v uint8) {
	b.appendBytes([]byte{v})
}

// ReadBool reads a single byte as a boolean (nonzero is true).
func (b *ByteStream) ReadBool() (bool, error) {
	v, err := b.ReadU8()
	return v != 0, err
}

// WriteBool writes a boolean as a single byte.
func (b *ByteStream) WriteBool(v bool) {
	if v {
		b.WriteU8(1)
	} else {
		b.WriteU8(0)
	}
}

// ReadU16 reads a little-endian uint16.
func (b *ByteStream) ReadU16() (uint16, error) {
	buf, err := b.requireRead(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// WriteU16 writes a little-endian uint16.
func (b *ByteStream) WriteU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.appendBytes(buf[:])
}

// ReadU32 reads a little-endian uint32.
func (b *ByteStream) ReadU32() (uint32, error) {
	buf, err := b.requireRead(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// WriteU32 writes a little-endian uint32.
func (b *ByteStream) WriteU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.appendBytes(buf[:])
}

// ReadF32 reads a little-endian float32.
func (b *ByteStream) ReadF32() (float32, error) {
	bits, err := b.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// WriteF32 writes a little-endian float32.
func (b *ByteStream) WriteF32(v float32) {
	b.WriteU32(math.Float32bits(v))
}

// ReadF64 reads a little-endian float64.
func (b *ByteStream) ReadF64() (float64, error) {
	buf, err := b.requireRead(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf)), nil
}

// WriteF64 writes a little-endian float64.
func (b *ByteStream) WriteF64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	b.appendBytes(buf[:])
}

// ReadVarUint reads a 7-bit LEB128 unsigned integer: the high bit of
// each byte signals continuation.
func (b *ByteStream) ReadVarUint() (uint64, error) {
	var result uint64
	var shift uint
	for {
		v, err := b.ReadU8()
		if err != nil {
			return 0, errors.Wrap(err, "truncated varuint")
		}
		result |= uint64(v&0x7F) << shift
		if v&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.Wrap(ErrInvalidEncoding, "varuint longer than 64 bits")
		}
	}
	return result, nil
}

// WriteVarUint writes v as 7-bit LEB128, using the minimum number of
// continuation bytes.
func (b *ByteStream) WriteVarUint(v uint64) {
	for {
		c := uint8(v & 0x7F)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b.WriteU8(c)
		if v == 0 {
			break
		}
	}
}

// ReadCrdtID reads an author byte followed by a varuint counter.
func (b *ByteStream) ReadCrdtID() (CrdtID, error) {
	author, err := b.ReadU8()
	if err != nil {
		return CrdtID{}, err
	}
	counter, err := b.ReadVarUint()
	if err != nil {
		return CrdtID{}, err
	}
	return CrdtID{Author: author, Counter: counter}, nil
}

// WriteCrdtID writes an author byte followed by a varuint counter.
func (b *ByteStream) WriteCrdtID(id CrdtID) {
	b.WriteU8(id.Author)
	b.WriteVarUint(id.Counter)
}

// PatchU32 overwrites the little-endian uint32 at offset without
// disturbing the write cursor. Used to back-patch a length prefix once
// the length of the region it covers is known.
func (b *ByteStream) PatchU32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[offset:offset+4], v)
}
