package rmscene

import "github.com/pkg/errors"

// WireType is the low 4 bits of a tag byte: the shape of the value
// that follows.
type WireType uint8

const (
	WireByte1   WireType = 0x1 // single byte: bool / u8
	WireByte4   WireType = 0x4 // four bytes: u32 / f32
	WireByte8   WireType = 0x8 // eight bytes: f64
	WireLength4 WireType = 0xC // length-prefixed sub-block: u32 length then bytes
	WireID      WireType = 0xF // CRDT ID
)

func (t WireType) String() string {
	switch t {
	case WireByte1:
		return "byte1"
	case WireByte4:
		return "byte4"
	case WireByte8:
		return "byte8"
	case WireLength4:
		return "length4"
	case WireID:
		return "id"
	default:
		return "unknown"
	}
}

// tag packs a field index and wire type into the single varuint that
// precedes every typed field in the stream.
func encodeTag(index int, wire WireType) uint64 {
	return uint64(index)<<4 | uint64(wire)
}

func decodeTag(x uint64) (index int, wire WireType) {
	return int(x >> 4), WireType(x & 0xF)
}

// frame is the bookkeeping record for an open block or sub-block scope:
// an absolute offset and declared length, with LIFO nesting enforced by
// the frame stack in Reader/Writer.
type frame struct {
	offset    int
	length    int
	extraData []byte
}

func (f frame) end() int {
	return f.offset + f.length
}
