package rmscene

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationInfoBlockRoundTrip(t *testing.T) {
	unknown := true
	b := MigrationInfoBlock{ID: CrdtID{Author: 1, Counter: 1}, IsDevice: true, Unknown: &unknown}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockMigrationInfo, 0, 0))
	writeMigrationInfoBlock(w, b)
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readMigrationInfoBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())

	require.Equal(t, b.ID, got.ID)
	require.Equal(t, b.IsDevice, got.IsDevice)
	require.NotNil(t, got.Unknown)
	require.Equal(t, unknown, *got.Unknown)
}

func TestMigrationInfoBlockWithoutUnknownField(t *testing.T) {
	b := MigrationInfoBlock{ID: CrdtID{Author: 1, Counter: 2}, IsDevice: false}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockMigrationInfo, 0, 0))
	writeMigrationInfoBlock(w, b)
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readMigrationInfoBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())
	require.Nil(t, got.Unknown)
}

func TestAuthorIDsRoundTrip(t *testing.T) {
	authors := map[uint16]string{
		1: "3f2504e0-4f89-11d3-9a0c-0305e82c3301",
		2: "00000000-0000-0000-0000-000000000000",
	}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockAuthorIDs, 0, 0))
	require.NoError(t, writeAuthorIDsBlock(w, authors))
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readAuthorIDsBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())

	require.Equal(t, authors, got)
}

func TestFormatUUIDRoundTrip(t *testing.T) {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i)
	}
	s := formatUUID(raw)
	back, err := parseUUID(s)
	require.NoError(t, err)
	require.Equal(t, raw, back)
}

func TestSceneInfoBlockRoundTrip(t *testing.T) {
	background := LwwValue[bool]{Timestamp: CrdtID{Author: 1, Counter: 1}, Value: true}
	b := SceneInfoBlock{
		CurrentLayer:      LwwValue[CrdtID]{Timestamp: CrdtID{Author: 1, Counter: 2}, Value: CrdtID{Author: 1, Counter: 1}},
		BackgroundVisible: &background,
		PaperSize:         &[2]uint32{1404, 1872},
	}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockSceneInfo, 0, 0))
	writeSceneInfoBlock(w, b)
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readSceneInfoBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())

	require.Equal(t, b.CurrentLayer, got.CurrentLayer)
	require.NotNil(t, got.BackgroundVisible)
	require.Equal(t, background, *got.BackgroundVisible)
	require.Nil(t, got.RootDocumentVisible)
	require.Equal(t, b.PaperSize, got.PaperSize)
}

func TestTreeNodeBlockWithAnchorRoundTrip(t *testing.T) {
	anchorID := LwwValue[CrdtID]{Timestamp: CrdtID{Author: 1, Counter: 1}, Value: CrdtID{Author: 1, Counter: 5}}
	anchorType := LwwValue[uint8]{Timestamp: CrdtID{Author: 1, Counter: 1}, Value: 2}
	anchorThreshold := LwwValue[float32]{Timestamp: CrdtID{Author: 1, Counter: 1}, Value: 0.5}
	anchorOriginX := LwwValue[float32]{Timestamp: CrdtID{Author: 1, Counter: 1}, Value: 1.5}
	b := TreeNodeBlock{
		NodeID:          CrdtID{Author: 1, Counter: 1},
		Label:           LwwValue[string]{Value: "layer"},
		Visible:         LwwValue[bool]{Value: true},
		AnchorID:        &anchorID,
		AnchorType:      &anchorType,
		AnchorThreshold: &anchorThreshold,
		AnchorOriginX:   &anchorOriginX,
	}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockTreeNode, 0, 0))
	require.NoError(t, writeTreeNodeBlock(w, b))
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readTreeNodeBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())

	require.Equal(t, b.NodeID, got.NodeID)
	require.Equal(t, b.Label, got.Label)
	require.Equal(t, b.Visible, got.Visible)
	require.NotNil(t, got.AnchorID)
	require.Equal(t, anchorID, *got.AnchorID)
	require.Equal(t, anchorType, *got.AnchorType)
	require.Equal(t, anchorThreshold, *got.AnchorThreshold)
	require.Equal(t, anchorOriginX, *got.AnchorOriginX)
}

func TestTreeNodeBlockWithoutAnchorRoundTrip(t *testing.T) {
	b := TreeNodeBlock{
		NodeID:  CrdtID{Author: 1, Counter: 1},
		Label:   LwwValue[string]{Value: ""},
		Visible: LwwValue[bool]{Value: true},
	}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockTreeNode, 0, 0))
	require.NoError(t, writeTreeNodeBlock(w, b))
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	got, err := readTreeNodeBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())
	require.Nil(t, got.AnchorID)
}

func TestGlyphRangeRoundTripWithZeroRectangles(t *testing.T) {
	g := &GlyphRange{Text: "highlighted", Color: ColorYellow, Rectangles: nil}

	w := NewWriter()
	require.NoError(t, writeGlyphRangeValue(w, g))
	data := w.Bytes()

	r := &Reader{bs: NewByteStreamReader(data)}
	r.frames = append(r.frames, frame{offset: 0, length: len(data)})
	got, err := readGlyphRangeValue(r)
	require.NoError(t, err)
	require.Equal(t, g.Text, got.Text)
	require.Equal(t, g.Color, got.Color)
	require.Empty(t, got.Rectangles)
	require.Equal(t, uint32(len(g.Text)), got.Length)
}

func TestGlyphRangeRoundTripWithExplicitStartAndRectangles(t *testing.T) {
	start := uint32(4)
	g := &GlyphRange{
		Start:  &start,
		Length: 7,
		Text:   "snippet",
		Color:  ColorGreen,
		Rectangles: []Rectangle{
			{X: 1, Y: 2, W: 3, H: 4},
			{X: 5, Y: 6, W: 7, H: 8},
		},
	}

	w := NewWriter()
	require.NoError(t, writeGlyphRangeValue(w, g))
	data := w.Bytes()

	r := &Reader{bs: NewByteStreamReader(data)}
	r.frames = append(r.frames, frame{offset: 0, length: len(data)})
	got, err := readGlyphRangeValue(r)
	require.NoError(t, err)
	require.NotNil(t, got.Start)
	require.Equal(t, start, *got.Start)
	require.Equal(t, g.Length, got.Length)
	require.Equal(t, g.Rectangles, got.Rectangles)
}

func TestLineValueRoundTripWithMoveID(t *testing.T) {
	moveID := CrdtID{Author: 2, Counter: 9}
	l := &Line{
		Color:          ColorRed,
		Tool:           PenBallpoint2,
		ThicknessScale: 1.5,
		StartingLength: 0.25,
		Points: []Point{
			{X: 0, Y: 0, Speed: 1, Direction: 2, Width: 3, Pressure: 4},
		},
		MoveID: &moveID,
	}

	w := NewWriter()
	writeLineValue(w, 2, l)
	data := w.Bytes()

	r := &Reader{bs: NewByteStreamReader(data)}
	r.frames = append(r.frames, frame{offset: 0, length: len(data)})
	got, err := readLineValue(r, 2)
	require.NoError(t, err)
	require.Equal(t, l.Color, got.Color)
	require.Equal(t, l.Tool, got.Tool)
	require.Equal(t, l.Points, got.Points)
	require.NotNil(t, got.MoveID)
	require.Equal(t, moveID, *got.MoveID)
}

func TestItemPrefixRoundTrip(t *testing.T) {
	p := itemPrefix{
		ParentID:      CrdtID{Author: 1, Counter: 1},
		ItemID:        CrdtID{Author: 1, Counter: 2},
		LeftID:        EndMarker,
		RightID:       EndMarker,
		DeletedLength: 0,
	}
	w := NewWriter()
	writeItemPrefix(w, p)
	data := w.Bytes()

	r := &Reader{bs: NewByteStreamReader(data)}
	r.frames = append(r.frames, frame{offset: 0, length: len(data)})
	got, err := readItemPrefix(r)
	require.NoError(t, err)
	require.Equal(t, p, got)
}
