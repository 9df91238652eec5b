package rmscene

import (
	"sort"

	"github.com/pkg/errors"
)

// Entry is one insertion into a CrdtSequence: the wire-level shape
// described in spec.md §3 "CRDT sequence item". A DeletedLength greater
// than zero marks item_id as the start of a tombstone run of that many
// consecutive per-author counters; Value is meaningless in that case.
type Entry[T any] struct {
	ItemID        CrdtID
	LeftID        CrdtID
	RightID       CrdtID
	DeletedLength uint32
	Value         T
}

// SortedItem is one position in a CrdtSequence's canonical linear
// order. Tombstone runs are expanded into one SortedItem per deleted
// character, each carrying its own synthesized ID, so that character
// offsets into the run are addressable.
type SortedItem[T any] struct {
	ID        CrdtID
	Tombstone bool
	Value     T
}

// CrdtSequence is the ordered, concurrently-insertable container keyed
// by CrdtID described in spec.md §4.4. It stores entries unordered
// internally; the canonical order is only meaningful after linearising
// via the left_id/right_id relation (SortedIDs and friends).
type CrdtSequence[T any] struct {
	entries map[CrdtID]Entry[T]
}

// NewCrdtSequence creates an empty sequence.
func NewCrdtSequence[T any]() *CrdtSequence[T] {
	return &CrdtSequence[T]{entries: make(map[CrdtID]Entry[T])}
}

// Insert adds e, failing if its ItemID is already present.
func (cs *CrdtSequence[T]) Insert(e Entry[T]) error {
	if _, exists := cs.entries[e.ItemID]; exists {
		return errors.Errorf("CrdtSequence.Insert: item_id %s already present", e.ItemID)
	}
	cs.entries[e.ItemID] = e
	return nil
}

// Lookup returns the entry stored under id, if any. Note that ids
// synthesized by tombstone-run expansion (see SortedItem) are not
// separately insertable or look-up-able here; only the run's head
// ItemID is a real map key.
func (cs *CrdtSequence[T]) Lookup(id CrdtID) (Entry[T], bool) {
	e, ok := cs.entries[id]
	return e, ok
}

// Len returns the number of raw entries (tombstone runs count once,
// regardless of DeletedLength).
func (cs *CrdtSequence[T]) Len() int {
	return len(cs.entries)
}

// Entries returns every raw entry ordered by ascending ItemID. Writers
// use this instead of linearize() so that the emitted block order is
// deterministic without depending on left_id/right_id resolution.
func (cs *CrdtSequence[T]) Entries() []Entry[T] {
	entries := make([]Entry[T], 0, len(cs.entries))
	for _, e := range cs.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID.Less(entries[j].ItemID) })
	return entries
}

// nodeKind orders the three kinds of linearisation graph node so that
// the sentinel start sorts before every item and the sentinel end
// sorts after every item.
type nodeKind uint8

const (
	kindStart nodeKind = 0
	kindItem  nodeKind = 1
	kindEnd   nodeKind = 2
)

type seqNode struct {
	kind nodeKind
	id   CrdtID
}

func (n seqNode) less(o seqNode) bool {
	if n.kind != o.kind {
		return n.kind < o.kind
	}
	if n.kind == kindItem {
		return n.id.Less(o.id)
	}
	return false
}

// linearize runs the topological sort documented in spec.md §4.4:
// build the comes_after relation over entries (with tombstone runs
// expanded into one node per deleted character) plus the __start/__end
// sentinels, then repeatedly peel off the layer of nodes with no
// remaining predecessor, breaking ties within a layer by ascending
// CrdtID.
func (cs *CrdtSequence[T]) linearize() ([]SortedItem[T], error) {
	start := seqNode{kind: kindStart}
	end := seqNode{kind: kindEnd}

	logical := make(map[CrdtID]SortedItem[T])
	for _, e := range cs.entries {
		if e.DeletedLength == 0 {
			logical[e.ItemID] = SortedItem[T]{ID: e.ItemID, Value: e.Value}
			continue
		}
		for i := uint32(0); i < e.DeletedLength; i++ {
			id := CrdtID{Author: e.ItemID.Author, Counter: e.ItemID.Counter + uint64(i)}
			logical[id] = SortedItem[T]{ID: id, Tombstone: true}
		}
	}

	adj := make(map[seqNode][]seqNode)
	indeg := make(map[seqNode]int)
	ensure := func(n seqNode) {
		if _, ok := indeg[n]; !ok {
			indeg[n] = 0
		}
	}
	addEdge := func(from, to seqNode) {
		ensure(from)
		ensure(to)
		adj[from] = append(adj[from], to)
		indeg[to]++
	}
	ensure(start)
	ensure(end)

	resolve := func(id CrdtID) (seqNode, bool) {
		if _, ok := logical[id]; ok {
			return seqNode{kind: kindItem, id: id}, true
		}
		return seqNode{}, false
	}

	for _, e := range cs.entries {
		var ids []CrdtID
		if e.DeletedLength == 0 {
			ids = []CrdtID{e.ItemID}
		} else {
			for i := uint32(0); i < e.DeletedLength; i++ {
				ids = append(ids, CrdtID{Author: e.ItemID.Author, Counter: e.ItemID.Counter + uint64(i)})
			}
		}

		left := start
		if !e.LeftID.IsEndMarker() {
			if n, ok := resolve(e.LeftID); ok {
				left = n
			}
		}
		addEdge(left, seqNode{kind: kindItem, id: ids[0]})

		for i := 1; i < len(ids); i++ {
			addEdge(seqNode{kind: kindItem, id: ids[i-1]}, seqNode{kind: kindItem, id: ids[i]})
		}

		right := end
		if !e.RightID.IsEndMarker() {
			if n, ok := resolve(e.RightID); ok {
				right = n
			}
		}
		addEdge(seqNode{kind: kindItem, id: ids[len(ids)-1]}, right)
	}

	remaining := make(map[seqNode]int, len(indeg))
	for n, d := range indeg {
		remaining[n] = d
	}

	var order []seqNode
	for {
		var frontier []seqNode
		for n, d := range remaining {
			if d == 0 {
				frontier = append(frontier, n)
			}
		}
		if len(frontier) == 0 {
			if len(remaining) == 0 {
				break
			}
			return nil, ErrCyclicOrder
		}
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].less(frontier[j]) })

		done := len(frontier) == 1 && frontier[0] == end
		for _, n := range frontier {
			delete(remaining, n)
			for _, to := range adj[n] {
				remaining[to]--
			}
		}
		order = append(order, frontier...)
		if done {
			break
		}
	}

	items := make([]SortedItem[T], 0, len(order))
	for _, n := range order {
		if n.kind != kindItem {
			continue
		}
		items = append(items, logical[n.id])
	}
	return items, nil
}

// SortedIDs returns the CrdtIDs of every logical position (tombstone
// runs expanded) in canonical order.
func (cs *CrdtSequence[T]) SortedIDs() ([]CrdtID, error) {
	items, err := cs.linearize()
	if err != nil {
		return nil, err
	}
	ids := make([]CrdtID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

// SortedValues returns the values of present (non-tombstone) entries in
// canonical order.
func (cs *CrdtSequence[T]) SortedValues() ([]T, error) {
	items, err := cs.linearize()
	if err != nil {
		return nil, err
	}
	values := make([]T, 0, len(items))
	for _, it := range items {
		if !it.Tombstone {
			values = append(values, it.Value)
		}
	}
	return values, nil
}

// SortedItems returns every logical position, tombstone or present, in
// canonical order.
func (cs *CrdtSequence[T]) SortedItems() ([]SortedItem[T], error) {
	return cs.linearize()
}
