package rmscene

import "github.com/pkg/errors"

// Error taxonomy surfaced to callers (spec.md §6). Wrap these with
// pkg/errors so a caller can still errors.Is against the sentinel while
// getting a stack trace for diagnostics.
var (
	ErrBadHeader       = errors.New("rmscene: bad file header")
	ErrEndOfInput      = errors.New("rmscene: end of input")
	ErrUnexpectedTag   = errors.New("rmscene: unexpected tag")
	ErrBlockOverflow   = errors.New("rmscene: block overflow")
	ErrUnexpectedBlock = errors.New("rmscene: unexpected block (nested block start)")
	ErrInvalidEncoding = errors.New("rmscene: invalid encoding")
	ErrCyclicOrder     = errors.New("rmscene: cyclic order in CRDT sequence")
	ErrUnknownPen      = errors.New("rmscene: unknown pen")
	ErrParentMissing   = errors.New("rmscene: parent missing")
)

// UnreadableBlock captures a top-level block whose type is unknown or
// whose payload failed to parse. The reader seeks back to the start of
// the block's payload, stores the raw bytes here, and moves on so the
// rest of the stream stays readable.
type UnreadableBlock struct {
	Offset         uint32
	BlockType      uint8
	MinVersion     uint8
	CurrentVersion uint8
	Err            error
	Bytes          []byte
}

func (u *UnreadableBlock) Error() string {
	return errors.Wrapf(u.Err, "unreadable block type 0x%02X at offset %d", u.BlockType, u.Offset).Error()
}

func (u *UnreadableBlock) Unwrap() error {
	return u.Err
}
