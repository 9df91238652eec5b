package rmscene

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Reader decodes the tagged block stream: it combines the ByteStream
// cursor, the tag codec, and the block/sub-block scope discipline
// (§4.2–4.3 of the format notes) into one sequential reader. A single
// Reader is meant to be driven front to back; it doesn't support
// resuming a partially read block.
type Reader struct {
	bs     *ByteStream
	frames []frame
	warned bool
	Log    *logrus.Logger
}

// NewReader creates a Reader over a complete in-memory file.
func NewReader(data []byte) *Reader {
	return &Reader{bs: NewByteStreamReader(data), Log: logrus.StandardLogger()}
}

func (r *Reader) top() *frame {
	return &r.frames[len(r.frames)-1]
}

// ReadHeader validates the fixed 43-byte file preamble.
func (r *Reader) ReadHeader() error {
	buf, err := r.bs.ReadBytes(len(HeaderV6))
	if err != nil {
		return errors.Wrap(ErrBadHeader, "truncated header")
	}
	if string(buf) != HeaderV6 {
		return errors.Wrapf(ErrBadHeader, "got %q", string(buf))
	}
	return nil
}

// AtEOF reports whether the stream has no more top-level blocks to read.
func (r *Reader) AtEOF() bool {
	return r.bs.Tell() >= r.bs.Len()
}

// ReadBlockHeader reads a top-level block envelope and installs it as
// the active frame. Returns io.EOF if called exactly at the end of the
// stream (clean end-of-stream per spec.md §4.3); any other failure is a
// genuine truncation.
func (r *Reader) ReadBlockHeader() (*BlockInfo, error) {
	if r.AtEOF() {
		return nil, io.EOF
	}
	offset := r.bs.Tell()
	length, err := r.bs.ReadU32()
	if err != nil {
		return nil, errors.Wrap(err, "reading block length")
	}
	reserved, err := r.bs.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "reading block reserved byte")
	}
	if reserved != 0 {
		return nil, errors.Wrapf(ErrBadHeader, "nonzero reserved byte 0x%02X", reserved)
	}
	minVersion, err := r.bs.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "reading block min_version")
	}
	currentVersion, err := r.bs.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "reading block current_version")
	}
	blockType, err := r.bs.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "reading block type")
	}

	r.frames = append(r.frames, frame{offset: r.bs.Tell(), length: int(length)})

	return &BlockInfo{
		Offset:         uint32(offset),
		Length:         length,
		BlockType:      blockType,
		MinVersion:     minVersion,
		CurrentVersion: currentVersion,
	}, nil
}

// EndBlock closes the active top-level block frame, tolerating
// under-read (the unread bytes are skipped, warned once per reader) and
// failing on overflow.
func (r *Reader) EndBlock() error {
	if len(r.frames) != 1 {
		return errors.Errorf("EndBlock called with %d open frames, want 1", len(r.frames))
	}
	return r.closeFrame()
}

// RecoverBlock abandons whatever was being read from the current
// top-level block, seeks back to its start, and returns its raw payload
// bytes so the caller can wrap them in an UnreadableBlock. It leaves the
// reader positioned at the end of the block, ready for the next one.
func (r *Reader) RecoverBlock() ([]byte, error) {
	if len(r.frames) == 0 {
		return nil, errors.New("RecoverBlock called with no open block")
	}
	blockFrame := r.frames[0]
	r.frames = r.frames[:0]
	if err := r.bs.Seek(blockFrame.offset); err != nil {
		return nil, err
	}
	payload, err := r.bs.ReadBytes(blockFrame.length)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// closeFrame pops the top frame (block or sub-block), enforcing the
// position discipline shared by both: the cursor must not be past the
// frame's declared end, and any bytes short of it are skipped with a
// single reader-lifetime warning. The skipped bytes are not kept.
func (r *Reader) closeFrame() error {
	f := r.frames[len(r.frames)-1]
	pos := r.bs.Tell()
	if pos > f.end() {
		return errors.Wrapf(ErrBlockOverflow, "read %d bytes past declared end (offset %d, length %d)", pos-f.end(), f.offset, f.length)
	}
	if pos < f.end() {
		extra, err := r.bs.ReadBytes(f.end() - pos)
		if err != nil {
			return err
		}
		if !r.warned {
			r.warned = true
			if r.Log != nil {
				r.Log.WithFields(logrus.Fields{
					"offset": f.offset,
					"length": f.length,
					"unread": len(extra),
				}).Warn("rmscene: block or sub-block left unread bytes")
			}
		}
	}
	r.frames = r.frames[:len(r.frames)-1]
	return nil
}

// RemainingInBlock returns the bytes left in the innermost open frame.
func (r *Reader) RemainingInBlock() int {
	if len(r.frames) == 0 {
		return 0
	}
	return r.top().end() - r.bs.Tell()
}

// PeekTag reports whether the next tag matches (index, wire) without
// advancing the cursor.
func (r *Reader) PeekTag(index int, wire WireType) bool {
	save := r.bs.Tell()
	defer func() { _ = r.bs.Seek(save) }()

	x, err := r.bs.ReadVarUint()
	if err != nil {
		return false
	}
	gotIndex, gotWire := decodeTag(x)
	return gotIndex == index && gotWire == wire
}

// ReadTag consumes a tag, failing with ErrUnexpectedTag (and restoring
// position) if either field doesn't match.
func (r *Reader) ReadTag(index int, wire WireType) error {
	save := r.bs.Tell()
	x, err := r.bs.ReadVarUint()
	if err != nil {
		_ = r.bs.Seek(save)
		return err
	}
	gotIndex, gotWire := decodeTag(x)
	if gotIndex != index || gotWire != wire {
		_ = r.bs.Seek(save)
		return errors.Wrapf(ErrUnexpectedTag, "want index=%d wire=%s, got index=%d wire=%s", index, wire, gotIndex, gotWire)
	}
	return nil
}

// HasSubblock reports whether a sub-block tag is present at index
// without consuming it.
func (r *Reader) HasSubblock(index int) bool {
	return r.PeekTag(index, WireLength4)
}

// ReadU8 reads a tagged single byte.
func (r *Reader) ReadU8(index int) (uint8, error) {
	if err := r.ReadTag(index, WireByte1); err != nil {
		return 0, err
	}
	return r.bs.ReadU8()
}

// ReadBool reads a tagged boolean.
func (r *Reader) ReadBool(index int) (bool, error) {
	if err := r.ReadTag(index, WireByte1); err != nil {
		return false, err
	}
	return r.bs.ReadBool()
}

// ReadU32 reads a tagged four-byte unsigned integer.
func (r *Reader) ReadU32(index int) (uint32, error) {
	if err := r.ReadTag(index, WireByte4); err != nil {
		return 0, err
	}
	return r.bs.ReadU32()
}

// ReadF32 reads a tagged four-byte float.
func (r *Reader) ReadF32(index int) (float32, error) {
	if err := r.ReadTag(index, WireByte4); err != nil {
		return 0, err
	}
	return r.bs.ReadF32()
}

// ReadF64 reads a tagged eight-byte float.
func (r *Reader) ReadF64(index int) (float64, error) {
	if err := r.ReadTag(index, WireByte8); err != nil {
		return 0, err
	}
	return r.bs.ReadF64()
}

// ReadID reads a tagged CRDT ID.
func (r *Reader) ReadID(index int) (CrdtID, error) {
	if err := r.ReadTag(index, WireID); err != nil {
		return CrdtID{}, err
	}
	return r.bs.ReadCrdtID()
}

// BeginSubblock reads a sub-block tag and length prefix at index and
// pushes its scope; the returned length is the declared payload size.
func (r *Reader) BeginSubblock(index int) (uint32, error) {
	if err := r.ReadTag(index, WireLength4); err != nil {
		return 0, err
	}
	length, err := r.bs.ReadU32()
	if err != nil {
		return 0, err
	}
	r.frames = append(r.frames, frame{offset: r.bs.Tell(), length: int(length)})
	return length, nil
}

// EndSubblock closes the innermost sub-block scope opened by
// BeginSubblock, applying the same overflow/extra_data discipline as
// EndBlock.
func (r *Reader) EndSubblock() error {
	if len(r.frames) == 0 {
		return errors.New("EndSubblock called with no open sub-block")
	}
	return r.closeFrame()
}

// ReadString reads a sub-block containing a length-prefixed,
// ASCII-flagged UTF-8 string (spec.md §4.6 "String encoding").
func (r *Reader) ReadString(index int) (string, error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return "", err
	}
	s, err := r.readStringBody()
	if err != nil {
		return "", err
	}
	if err := r.EndSubblock(); err != nil {
		return "", err
	}
	return s, nil
}

// readStringBody reads the "varuint length, bool is_ascii, length
// bytes" payload shared by plain and formatted strings. Does not touch
// frame scope; caller manages the enclosing sub-block.
func (r *Reader) readStringBody() (string, error) {
	length, err := r.bs.ReadVarUint()
	if err != nil {
		return "", err
	}
	isASCII, err := r.bs.ReadBool()
	if err != nil {
		return "", err
	}
	if !isASCII {
		return "", errors.Wrap(ErrInvalidEncoding, "string is_ascii flag is false")
	}
	buf, err := r.bs.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadStringWithFormat reads a "string with optional format" sub-block:
// the string body as above, optionally followed by an int:2 format
// code within the same scope. Per spec.md §9, the observed wire
// behaviour never carries both meaningfully, but both are exposed.
func (r *Reader) ReadStringWithFormat(index int) (text string, formatCode *uint32, err error) {
	if _, err = r.BeginSubblock(index); err != nil {
		return "", nil, err
	}
	text, err = r.readStringBody()
	if err != nil {
		return "", nil, err
	}
	if r.RemainingInBlock() > 0 && r.PeekTag(2, WireByte4) {
		code, ferr := r.ReadU32(2)
		if ferr != nil {
			return "", nil, ferr
		}
		formatCode = &code
	}
	if err = r.EndSubblock(); err != nil {
		return "", nil, err
	}
	return text, formatCode, nil
}

// ReadLwwBool reads a last-writer-wins boolean register.
func (r *Reader) ReadLwwBool(index int) (LwwValue[bool], error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return LwwValue[bool]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return LwwValue[bool]{}, err
	}
	v, err := r.ReadBool(2)
	if err != nil {
		return LwwValue[bool]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return LwwValue[bool]{}, err
	}
	return LwwValue[bool]{Timestamp: ts, Value: v}, nil
}

// ReadLwwByte reads a last-writer-wins single-byte register.
func (r *Reader) ReadLwwByte(index int) (LwwValue[uint8], error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return LwwValue[uint8]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return LwwValue[uint8]{}, err
	}
	v, err := r.ReadU8(2)
	if err != nil {
		return LwwValue[uint8]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return LwwValue[uint8]{}, err
	}
	return LwwValue[uint8]{Timestamp: ts, Value: v}, nil
}

// ReadLwwFloat reads a last-writer-wins float32 register.
func (r *Reader) ReadLwwFloat(index int) (LwwValue[float32], error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return LwwValue[float32]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return LwwValue[float32]{}, err
	}
	v, err := r.ReadF32(2)
	if err != nil {
		return LwwValue[float32]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return LwwValue[float32]{}, err
	}
	return LwwValue[float32]{Timestamp: ts, Value: v}, nil
}

// ReadLwwID reads a last-writer-wins CrdtID register.
func (r *Reader) ReadLwwID(index int) (LwwValue[CrdtID], error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return LwwValue[CrdtID]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return LwwValue[CrdtID]{}, err
	}
	v, err := r.ReadID(2)
	if err != nil {
		return LwwValue[CrdtID]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return LwwValue[CrdtID]{}, err
	}
	return LwwValue[CrdtID]{Timestamp: ts, Value: v}, nil
}

// ReadLwwString reads a last-writer-wins string register.
func (r *Reader) ReadLwwString(index int) (LwwValue[string], error) {
	if _, err := r.BeginSubblock(index); err != nil {
		return LwwValue[string]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return LwwValue[string]{}, err
	}
	v, err := r.ReadString(2)
	if err != nil {
		return LwwValue[string]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return LwwValue[string]{}, err
	}
	return LwwValue[string]{Timestamp: ts, Value: v}, nil
}
