package rmscene

import "fmt"

// CrdtID identifies a CRDT entry or timestamp: an author byte paired
// with a per-author counter. CrdtID(0, 0) is the end-marker sentinel,
// used as "beginning of sequence" when referenced as a left neighbour
// and "end of sequence" when referenced as a right neighbour.
type CrdtID struct {
	Author  uint8
	Counter uint64
}

// EndMarker is the sentinel CrdtID(0, 0).
var EndMarker = CrdtID{}

// IsEndMarker reports whether id is the sentinel CrdtID(0, 0).
func (id CrdtID) IsEndMarker() bool {
	return id == EndMarker
}

// Less gives the total order on CrdtIDs: lexicographic on
// (Author, Counter).
func (id CrdtID) Less(other CrdtID) bool {
	if id.Author != other.Author {
		return id.Author < other.Author
	}
	return id.Counter < other.Counter
}

func (id CrdtID) String() string {
	return fmt.Sprintf("%d:%d", id.Author, id.Counter)
}

// LwwValue is a last-writer-wins register: a value paired with the
// CrdtID timestamp of the write that produced it.
type LwwValue[T any] struct {
	Timestamp CrdtID
	Value     T
}
