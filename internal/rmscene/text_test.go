package rmscene

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatEntryRoundTrip(t *testing.T) {
	id := CrdtID{Author: 1, Counter: 7}
	style := LwwValue[ParagraphStyle]{Timestamp: CrdtID{Author: 1, Counter: 8}, Value: StyleHeading}

	w := NewWriter()
	writeFormatEntry(w, id, style)
	data := w.Bytes()

	r := &Reader{bs: NewByteStreamReader(data)}
	r.frames = append(r.frames, frame{offset: 0, length: len(data)})
	gotID, gotStyle, err := readFormatEntry(r)
	require.NoError(t, err)
	require.Equal(t, id, gotID)
	require.Equal(t, style, gotStyle)
}

func TestFormatEntryBadMagicByte(t *testing.T) {
	w := NewByteStreamWriter()
	w.WriteCrdtID(CrdtID{Author: 1, Counter: 1})
	data := w.Bytes()

	inner := NewWriter()
	inner.WriteID(1, CrdtID{Author: 1, Counter: 2})
	inner.BeginSubblock(2)
	inner.bs.WriteU8(0xFF) // wrong magic byte
	inner.bs.WriteU8(uint8(StylePlain))
	require.NoError(t, inner.EndSubblock())

	full := append(data, inner.Bytes()...)
	r := &Reader{bs: NewByteStreamReader(full)}
	r.frames = append(r.frames, frame{offset: 0, length: len(full)})
	_, _, err := readFormatEntry(r)
	require.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestSortedStyleIDsDeterministic(t *testing.T) {
	styles := map[CrdtID]LwwValue[ParagraphStyle]{
		{Author: 2, Counter: 1}: {Value: StyleBold},
		{Author: 1, Counter: 5}: {Value: StylePlain},
		{Author: 1, Counter: 1}: {Value: StyleHeading},
	}
	ids := sortedStyleIDs(styles)
	require.Equal(t, []CrdtID{
		{Author: 1, Counter: 1},
		{Author: 1, Counter: 5},
		{Author: 2, Counter: 1},
	}, ids)
}

func TestRootTextBlockRoundTrip(t *testing.T) {
	text := NewText()
	blockID := CrdtID{Author: 0, Counter: 1}

	first := Entry[TextItemValue]{
		ItemID:  CrdtID{Author: 1, Counter: 1},
		LeftID:  EndMarker,
		RightID: CrdtID{Author: 1, Counter: 2},
		Value:   TextItemValue{Text: "hello\n"},
	}
	second := Entry[TextItemValue]{
		ItemID:  CrdtID{Author: 1, Counter: 2},
		LeftID:  CrdtID{Author: 1, Counter: 1},
		RightID: EndMarker,
		Value:   TextItemValue{Text: "world"},
	}
	require.NoError(t, text.Items.Insert(first))
	require.NoError(t, text.Items.Insert(second))
	text.Styles[first.ItemID] = LwwValue[ParagraphStyle]{Value: StyleHeading}
	text.PosX = 10
	text.PosY = 20
	text.Width = 500

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockRootText, 1, 1))
	require.NoError(t, writeRootTextBlock(w, blockID, text))
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	gotID, got, err := readRootTextBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())

	require.Equal(t, blockID, gotID)
	require.Equal(t, text.PosX, got.PosX)
	require.Equal(t, text.PosY, got.PosY)
	require.Equal(t, text.Width, got.Width)
	require.Equal(t, "hello\nworld", got.String())

	paragraphs, err := got.Paragraphs()
	require.NoError(t, err)
	require.Len(t, paragraphs, 2)
	require.Equal(t, "hello\n", paragraphs[0].Text)
	require.Equal(t, StyleHeading, paragraphs[0].Style)
	require.Equal(t, "world", paragraphs[1].Text)
	require.Equal(t, StylePlain, paragraphs[1].Style)
}

func TestRootTextEmptyStillRoundTrips(t *testing.T) {
	text := NewText()
	blockID := CrdtID{Author: 0, Counter: 1}

	w := NewWriter()
	require.NoError(t, w.BeginBlock(BlockRootText, 1, 1))
	require.NoError(t, writeRootTextBlock(w, blockID, text))
	require.NoError(t, w.EndBlock())

	r := NewReader(w.Bytes())
	_, err := r.ReadBlockHeader()
	require.NoError(t, err)
	_, got, err := readRootTextBlock(r)
	require.NoError(t, err)
	require.NoError(t, r.EndBlock())
	require.Equal(t, "", got.String())
}
