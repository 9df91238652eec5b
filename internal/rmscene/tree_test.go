package rmscene

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSceneTreeEmptyDocument(t *testing.T) {
	// S1: a file containing only the header and no blocks still yields a
	// tree with just the root group.
	w := NewWriter()
	w.WriteHeader()

	tree, err := ReadSceneTree(w.Bytes())
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	require.Equal(t, rootGroupID, tree.Root.NodeID)
	require.Empty(t, tree.Unreadable)

	var count int
	require.NoError(t, tree.Walk(nil, func(id CrdtID, item SceneItem) error {
		count++
		return nil
	}))
	require.Zero(t, count)
}

func buildSingleStrokeTree() *SceneTree {
	tree := NewSceneTree()
	tree.Authors = map[uint16]string{1: "00000000-0000-0000-0000-000000000000"}
	tree.PageInfo = &PageInfoBlock{Loads: 1, Merges: 0, TextChars: 0, TextLines: 0}

	line := &Line{
		Color:          ColorBlack,
		Tool:           PenFineliner2,
		ThicknessScale: 1.0,
		StartingLength: 0,
		Points: []Point{
			{X: 0, Y: 0, Speed: 10, Direction: 0, Width: 40, Pressure: 128},
			{X: 1, Y: 1, Speed: 20, Direction: 10, Width: 40, Pressure: 130},
		},
	}
	entry := Entry[SceneItem]{
		ItemID:  CrdtID{Author: 1, Counter: 1},
		LeftID:  EndMarker,
		RightID: EndMarker,
		Value:   SceneItem{Kind: SceneItemLine, Line: line},
	}
	_ = tree.Root.Children.Insert(entry)
	return tree
}

func TestSceneTreeSingleStrokeRoundTrip(t *testing.T) {
	// S2: single stroke under the root group.
	tree := buildSingleStrokeTree()

	out, err := WriteSceneTree(tree)
	require.NoError(t, err)

	got, err := ReadSceneTree(out)
	require.NoError(t, err)
	require.Empty(t, got.Unreadable)
	require.Equal(t, tree.Authors, got.Authors)
	require.Equal(t, tree.PageInfo.Loads, got.PageInfo.Loads)

	var strokes int
	var points []Point
	require.NoError(t, got.Walk(nil, func(id CrdtID, item SceneItem) error {
		if item.Kind == SceneItemLine {
			strokes++
			points = item.Line.Points
		}
		return nil
	}))
	require.Equal(t, 1, strokes)
	require.Equal(t, []Point{
		{X: 0, Y: 0, Speed: 10, Direction: 0, Width: 40, Pressure: 128},
		{X: 1, Y: 1, Speed: 20, Direction: 10, Width: 40, Pressure: 130},
	}, points)
}

func TestReadSceneTreeUnknownBlockType(t *testing.T) {
	// S5: an unknown block type 0xFE with payload DE AD BE EF is captured
	// as an UnreadableBlock; the rest of the stream is unaffected.
	w := NewWriter()
	w.WriteHeader()

	require.NoError(t, w.BeginBlock(0xFE, 0, 0))
	w.bs.WriteBytes([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, w.EndBlock())

	require.NoError(t, w.BeginBlock(BlockPageInfo, 0, 0))
	writePageInfoBlock(w, PageInfoBlock{Loads: 7})
	require.NoError(t, w.EndBlock())

	tree, err := ReadSceneTree(w.Bytes())
	require.NoError(t, err)
	require.Len(t, tree.Unreadable, 1)
	require.Equal(t, uint8(0xFE), tree.Unreadable[0].BlockType)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, tree.Unreadable[0].Bytes)
	require.NotNil(t, tree.PageInfo)
	require.Equal(t, uint32(7), tree.PageInfo.Loads)
}

func TestReadSceneTreeParentMissingAborts(t *testing.T) {
	w := NewWriter()
	w.WriteHeader()

	require.NoError(t, w.BeginBlock(BlockSceneLineItem, 0, 2))
	orphanParent := CrdtID{Author: 9, Counter: 1}
	prefix := itemPrefix{
		ParentID: orphanParent,
		ItemID:   CrdtID{Author: 1, Counter: 1},
		LeftID:   EndMarker,
		RightID:  EndMarker,
	}
	line := &Line{Color: ColorBlack, Tool: PenFineliner1, ThicknessScale: 1}
	require.NoError(t, writeSceneItemBlock(w, 2, prefix, rawItemValue{kind: SceneItemLine, line: line}, true))
	require.NoError(t, w.EndBlock())

	_, err := ReadSceneTree(w.Bytes())
	require.ErrorIs(t, err, ErrParentMissing)
}

func TestSceneTreeWalkSkipsTombstones(t *testing.T) {
	tree := NewSceneTree()
	live := Entry[SceneItem]{
		ItemID:  CrdtID{Author: 1, Counter: 1},
		LeftID:  EndMarker,
		RightID: CrdtID{Author: 1, Counter: 2},
		Value:   SceneItem{Kind: SceneItemLine, Line: &Line{}},
	}
	tombstone := Entry[SceneItem]{
		ItemID:        CrdtID{Author: 1, Counter: 2},
		LeftID:        CrdtID{Author: 1, Counter: 1},
		RightID:       EndMarker,
		DeletedLength: 1,
	}
	require.NoError(t, tree.Root.Children.Insert(live))
	require.NoError(t, tree.Root.Children.Insert(tombstone))

	var visited int
	require.NoError(t, tree.Walk(nil, func(id CrdtID, item SceneItem) error {
		visited++
		return nil
	}))
	require.Equal(t, 1, visited)
}

func TestSceneTreeNestedGroupRoundTrip(t *testing.T) {
	tree := NewSceneTree()
	child := NewGroup(CrdtID{Author: 1, Counter: 10})
	child.Label = LwwValue[string]{Value: "layer 2"}
	groupEntry := Entry[SceneItem]{
		ItemID:  CrdtID{Author: 1, Counter: 9},
		LeftID:  EndMarker,
		RightID: EndMarker,
		Value:   SceneItem{Kind: SceneItemGroup, Group: child},
	}
	require.NoError(t, tree.Root.Children.Insert(groupEntry))
	tree.nodes[child.NodeID] = child
	child.ParentID = tree.Root.NodeID

	strokeEntry := Entry[SceneItem]{
		ItemID:  CrdtID{Author: 1, Counter: 1},
		LeftID:  EndMarker,
		RightID: EndMarker,
		Value:   SceneItem{Kind: SceneItemLine, Line: &Line{Color: ColorBlue, Tool: PenMarker1, ThicknessScale: 1}},
	}
	require.NoError(t, child.Children.Insert(strokeEntry))

	out, err := WriteSceneTree(tree)
	require.NoError(t, err)

	got, err := ReadSceneTree(out)
	require.NoError(t, err)
	require.Empty(t, got.Unreadable)

	var groups, strokes int
	require.NoError(t, got.Walk(nil, func(id CrdtID, item SceneItem) error {
		switch item.Kind {
		case SceneItemGroup:
			groups++
			require.Equal(t, "layer 2", item.Group.Label.Value)
		case SceneItemLine:
			strokes++
		}
		return nil
	}))
	require.Equal(t, 1, groups)
	require.Equal(t, 1, strokes)
}

func TestGroupWithZeroChildrenStillWritesTreeNode(t *testing.T) {
	tree := NewSceneTree()
	// Non-default registers only come back if the TreeNodeBlock was written.
	tree.Root.Visible = LwwValue[bool]{Timestamp: CrdtID{Author: 1, Counter: 3}, Value: false}
	out, err := WriteSceneTree(tree)
	require.NoError(t, err)

	got, err := ReadSceneTree(out)
	require.NoError(t, err)
	require.NotNil(t, got.Root)
	require.Equal(t, tree.Root.Visible, got.Root.Visible)
}
