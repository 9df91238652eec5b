package rmscene

import "github.com/pkg/errors"

// Writer encodes the tagged block stream, symmetric to Reader. Each
// block's payload is buffered so its length prefix can be back-patched
// once the payload is complete (spec.md §4.6 "Writer").
type Writer struct {
	bs     *ByteStream
	frames []frame
	// patchOffsets[i] is the byte offset of the length placeholder for
	// frames[i]; it parallels frames so nested sub-blocks patch the
	// right slot on EndSubblock/EndBlock.
	patchOffsets []int
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{bs: NewByteStreamWriter()}
}

// Bytes returns everything written so far. Valid once every opened
// block/sub-block has been closed.
func (w *Writer) Bytes() []byte {
	return w.bs.Bytes()
}

// WriteHeader emits the fixed 43-byte file preamble.
func (w *Writer) WriteHeader() {
	w.bs.WriteBytes([]byte(HeaderV6))
}

// BeginBlock opens a top-level block envelope: reserves the length
// prefix, writes the reserved/version/type header, and pushes the
// payload scope. Fails with ErrUnexpectedBlock if a block is already
// open (blocks don't nest).
func (w *Writer) BeginBlock(blockType, minVersion, currentVersion uint8) error {
	if len(w.frames) != 0 {
		return errors.Wrap(ErrUnexpectedBlock, "BeginBlock called while a block is already open")
	}
	patchOffset := w.bs.Tell()
	w.bs.WriteU32(0) // length placeholder
	w.bs.WriteU8(0)  // reserved
	w.bs.WriteU8(minVersion)
	w.bs.WriteU8(currentVersion)
	w.bs.WriteU8(blockType)

	w.frames = append(w.frames, frame{offset: w.bs.Tell()})
	w.patchOffsets = append(w.patchOffsets, patchOffset)
	return nil
}

// EndBlock closes the block opened by BeginBlock and back-patches its
// length.
func (w *Writer) EndBlock() error {
	if len(w.frames) != 1 {
		return errors.Errorf("EndBlock called with %d open frames, want 1", len(w.frames))
	}
	return w.closeFrame()
}

func (w *Writer) closeFrame() error {
	i := len(w.frames) - 1
	f := w.frames[i]
	length := w.bs.Tell() - f.offset
	w.bs.PatchU32(w.patchOffsets[i], uint32(length))
	w.frames = w.frames[:i]
	w.patchOffsets = w.patchOffsets[:i]
	return nil
}

// WriteTag emits a tag varuint for (index, wire).
func (w *Writer) WriteTag(index int, wire WireType) {
	w.bs.WriteVarUint(encodeTag(index, wire))
}

// WriteU8 writes a tagged single byte.
func (w *Writer) WriteU8(index int, v uint8) {
	w.WriteTag(index, WireByte1)
	w.bs.WriteU8(v)
}

// WriteBool writes a tagged boolean.
func (w *Writer) WriteBool(index int, v bool) {
	w.WriteTag(index, WireByte1)
	w.bs.WriteBool(v)
}

// WriteU32 writes a tagged four-byte unsigned integer.
func (w *Writer) WriteU32(index int, v uint32) {
	w.WriteTag(index, WireByte4)
	w.bs.WriteU32(v)
}

// WriteF32 writes a tagged four-byte float.
func (w *Writer) WriteF32(index int, v float32) {
	w.WriteTag(index, WireByte4)
	w.bs.WriteF32(v)
}

// WriteF64 writes a tagged eight-byte float.
func (w *Writer) WriteF64(index int, v float64) {
	w.WriteTag(index, WireByte8)
	w.bs.WriteF64(v)
}

// WriteID writes a tagged CRDT ID.
func (w *Writer) WriteID(index int, id CrdtID) {
	w.WriteTag(index, WireID)
	w.bs.WriteCrdtID(id)
}

// BeginSubblock opens a length-prefixed sub-block scope at index.
func (w *Writer) BeginSubblock(index int) {
	w.WriteTag(index, WireLength4)
	patchOffset := w.bs.Tell()
	w.bs.WriteU32(0)
	w.frames = append(w.frames, frame{offset: w.bs.Tell()})
	w.patchOffsets = append(w.patchOffsets, patchOffset)
}

// EndSubblock closes the innermost sub-block scope, back-patching its
// length.
func (w *Writer) EndSubblock() error {
	if len(w.frames) == 0 {
		return errors.New("EndSubblock called with no open sub-block")
	}
	return w.closeFrame()
}

// WriteString writes a plain string sub-block (length, is_ascii=true,
// bytes) at index. Fails if s is not valid ASCII-safe UTF-8 content the
// format can round-trip (non-ASCII text is rejected on read, so the
// writer rejects it too rather than produce unreadable output).
func (w *Writer) WriteString(index int, s string) error {
	w.BeginSubblock(index)
	if err := w.writeStringBody(s); err != nil {
		return err
	}
	return w.EndSubblock()
}

func (w *Writer) writeStringBody(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return errors.Wrapf(ErrInvalidEncoding, "non-ASCII byte 0x%02X in string", s[i])
		}
	}
	w.bs.WriteVarUint(uint64(len(s)))
	w.bs.WriteBool(true)
	w.bs.WriteBytes([]byte(s))
	return nil
}

// WriteStringWithFormat writes a string sub-block optionally followed
// by an int:2 format code, mirroring ReadStringWithFormat.
func (w *Writer) WriteStringWithFormat(index int, s string, formatCode *uint32) error {
	w.BeginSubblock(index)
	if err := w.writeStringBody(s); err != nil {
		return err
	}
	if formatCode != nil {
		w.WriteU32(2, *formatCode)
	}
	return w.EndSubblock()
}

// WriteLwwBool writes a last-writer-wins boolean register.
func (w *Writer) WriteLwwBool(index int, v LwwValue[bool]) {
	w.BeginSubblock(index)
	w.WriteID(1, v.Timestamp)
	w.WriteBool(2, v.Value)
	_ = w.EndSubblock()
}

// WriteLwwByte writes a last-writer-wins single-byte register.
func (w *Writer) WriteLwwByte(index int, v LwwValue[uint8]) {
	w.BeginSubblock(index)
	w.WriteID(1, v.Timestamp)
	w.WriteU8(2, v.Value)
	_ = w.EndSubblock()
}

// WriteLwwFloat writes a last-writer-wins float32 register.
func (w *Writer) WriteLwwFloat(index int, v LwwValue[float32]) {
	w.BeginSubblock(index)
	w.WriteID(1, v.Timestamp)
	w.WriteF32(2, v.Value)
	_ = w.EndSubblock()
}

// WriteLwwID writes a last-writer-wins CrdtID register.
func (w *Writer) WriteLwwID(index int, v LwwValue[CrdtID]) {
	w.BeginSubblock(index)
	w.WriteID(1, v.Timestamp)
	w.WriteID(2, v.Value)
	_ = w.EndSubblock()
}

// WriteLwwString writes a last-writer-wins string register.
func (w *Writer) WriteLwwString(index int, v LwwValue[string]) error {
	w.BeginSubblock(index)
	w.WriteID(1, v.Timestamp)
	if err := w.WriteString(2, v.Value); err != nil {
		return err
	}
	return w.EndSubblock()
}
