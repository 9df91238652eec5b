package rmscene

import (
	"strings"

	"github.com/pkg/errors"
)

// formatMagicByte is the constant marker byte preceding every paragraph
// style code in a RootText format entry.
const formatMagicByte uint8 = 17

// textItemPrefix is the four-field header of a RootText item: the same
// shape as itemPrefix but without parent_id, since text items belong to
// the Text CRDT directly rather than a scene group.
type textItemPrefix struct {
	ItemID, LeftID, RightID CrdtID
	DeletedLength           uint32
}

func readTextItemPrefix(r *Reader) (textItemPrefix, error) {
	var p textItemPrefix
	var err error
	if p.ItemID, err = r.ReadID(2); err != nil {
		return p, err
	}
	if p.LeftID, err = r.ReadID(3); err != nil {
		return p, err
	}
	if p.RightID, err = r.ReadID(4); err != nil {
		return p, err
	}
	if p.DeletedLength, err = r.ReadU32(5); err != nil {
		return p, err
	}
	return p, nil
}

func writeTextItemPrefix(w *Writer, p textItemPrefix) {
	w.WriteID(2, p.ItemID)
	w.WriteID(3, p.LeftID)
	w.WriteID(4, p.RightID)
	w.WriteU32(5, p.DeletedLength)
}

func readFormatEntry(r *Reader) (CrdtID, LwwValue[ParagraphStyle], error) {
	id, err := r.bs.ReadCrdtID()
	if err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	ts, err := r.ReadID(1)
	if err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	if _, err := r.BeginSubblock(2); err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	magic, err := r.bs.ReadU8()
	if err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	styleByte, err := r.bs.ReadU8()
	if err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, err
	}
	if magic != formatMagicByte {
		return CrdtID{}, LwwValue[ParagraphStyle]{}, errors.Wrapf(ErrInvalidEncoding, "format entry magic byte 0x%02X, want 0x%02X", magic, formatMagicByte)
	}
	return id, LwwValue[ParagraphStyle]{Timestamp: ts, Value: ParagraphStyle(styleByte)}, nil
}

func writeFormatEntry(w *Writer, id CrdtID, style LwwValue[ParagraphStyle]) {
	w.bs.WriteCrdtID(id)
	w.WriteID(1, style.Timestamp)
	w.BeginSubblock(2)
	w.bs.WriteU8(formatMagicByte)
	w.bs.WriteU8(uint8(style.Value))
	_ = w.EndSubblock()
}

func sortedStyleIDs(styles map[CrdtID]LwwValue[ParagraphStyle]) []CrdtID {
	ids := make([]CrdtID, 0, len(styles))
	for id := range styles {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j].Less(ids[j-1]); j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// readRootTextBlock reads block type 0x07 (spec.md §4.6 "RootText").
func readRootTextBlock(r *Reader) (CrdtID, *Text, error) {
	blockID, err := r.ReadID(1)
	if err != nil {
		return CrdtID{}, nil, err
	}
	text := NewText()

	if _, err := r.BeginSubblock(2); err != nil {
		return CrdtID{}, nil, err
	}

	if _, err := r.BeginSubblock(1); err != nil {
		return CrdtID{}, nil, err
	}
	if _, err := r.BeginSubblock(1); err != nil {
		return CrdtID{}, nil, err
	}
	n, err := r.bs.ReadVarUint()
	if err != nil {
		return CrdtID{}, nil, err
	}
	for i := uint64(0); i < n; i++ {
		if _, err := r.BeginSubblock(0); err != nil {
			return CrdtID{}, nil, err
		}
		prefix, err := readTextItemPrefix(r)
		if err != nil {
			return CrdtID{}, nil, err
		}
		var value TextItemValue
		if prefix.DeletedLength == 0 && r.HasSubblock(6) {
			body, formatCode, err := r.ReadStringWithFormat(6)
			if err != nil {
				return CrdtID{}, nil, err
			}
			if formatCode != nil {
				value = TextItemValue{IsStyleCode: true, StyleCode: *formatCode, Text: body}
			} else {
				value = TextItemValue{Text: body}
			}
		}
		if err := r.EndSubblock(); err != nil {
			return CrdtID{}, nil, err
		}
		entry := Entry[TextItemValue]{
			ItemID:        prefix.ItemID,
			LeftID:        prefix.LeftID,
			RightID:       prefix.RightID,
			DeletedLength: prefix.DeletedLength,
			Value:         value,
		}
		if err := text.Items.Insert(entry); err != nil {
			return CrdtID{}, nil, err
		}
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, nil, err
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, nil, err
	}

	if _, err := r.BeginSubblock(2); err != nil {
		return CrdtID{}, nil, err
	}
	if _, err := r.BeginSubblock(1); err != nil {
		return CrdtID{}, nil, err
	}
	m, err := r.bs.ReadVarUint()
	if err != nil {
		return CrdtID{}, nil, err
	}
	for i := uint64(0); i < m; i++ {
		id, style, err := readFormatEntry(r)
		if err != nil {
			return CrdtID{}, nil, err
		}
		text.Styles[id] = style
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, nil, err
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, nil, err
	}

	if err := r.EndSubblock(); err != nil { // closes outer subblock 2
		return CrdtID{}, nil, err
	}

	if _, err := r.BeginSubblock(3); err != nil {
		return CrdtID{}, nil, err
	}
	posX, err := r.bs.ReadF64()
	if err != nil {
		return CrdtID{}, nil, err
	}
	posY, err := r.bs.ReadF64()
	if err != nil {
		return CrdtID{}, nil, err
	}
	if err := r.EndSubblock(); err != nil {
		return CrdtID{}, nil, err
	}
	text.PosX = posX
	text.PosY = posY

	width, err := r.ReadF32(4)
	if err != nil {
		return CrdtID{}, nil, err
	}
	text.Width = width

	return blockID, text, nil
}

func writeRootTextBlock(w *Writer, blockID CrdtID, text *Text) error {
	w.WriteID(1, blockID)
	w.BeginSubblock(2)

	w.BeginSubblock(1)
	w.BeginSubblock(1)
	entries := text.Items.Entries()
	w.bs.WriteVarUint(uint64(len(entries)))
	for _, e := range entries {
		w.BeginSubblock(0)
		writeTextItemPrefix(w, textItemPrefix{ItemID: e.ItemID, LeftID: e.LeftID, RightID: e.RightID, DeletedLength: e.DeletedLength})
		if e.DeletedLength == 0 {
			if e.Value.IsStyleCode {
				code := e.Value.StyleCode
				if err := w.WriteStringWithFormat(6, e.Value.Text, &code); err != nil {
					return err
				}
			} else if err := w.WriteStringWithFormat(6, e.Value.Text, nil); err != nil {
				return err
			}
		}
		if err := w.EndSubblock(); err != nil {
			return err
		}
	}
	if err := w.EndSubblock(); err != nil {
		return err
	}
	if err := w.EndSubblock(); err != nil {
		return err
	}

	w.BeginSubblock(2)
	w.BeginSubblock(1)
	ids := sortedStyleIDs(text.Styles)
	w.bs.WriteVarUint(uint64(len(ids)))
	for _, id := range ids {
		writeFormatEntry(w, id, text.Styles[id])
	}
	if err := w.EndSubblock(); err != nil {
		return err
	}
	if err := w.EndSubblock(); err != nil {
		return err
	}

	if err := w.EndSubblock(); err != nil { // closes outer subblock 2
		return err
	}

	w.BeginSubblock(3)
	w.bs.WriteF64(text.PosX)
	w.bs.WriteF64(text.PosY)
	if err := w.EndSubblock(); err != nil {
		return err
	}

	w.WriteF32(4, text.Width)
	return nil
}

// Paragraph is one newline-terminated (or trailing, unterminated) run of
// root text, reconstructed from a Text's character sequence and style
// overrides.
type Paragraph struct {
	Style ParagraphStyle
	Text  string
}

// Paragraphs reconstructs the paragraph structure of t: it walks the
// linearised character sequence, splitting on '\n', and looks up each
// terminating run's style override (falling back to StylePlain when
// none was recorded for that position).
func (t *Text) Paragraphs() ([]Paragraph, error) {
	items, err := t.Items.SortedItems()
	if err != nil {
		return nil, err
	}

	var paragraphs []Paragraph
	var current strings.Builder
	for _, item := range items {
		if item.Tombstone || item.Value.IsStyleCode {
			continue
		}
		for _, ch := range item.Value.Text {
			current.WriteRune(ch)
			if ch == '\n' {
				style := StylePlain
				if lww, ok := t.Styles[item.ID]; ok {
					style = lww.Value
				}
				paragraphs = append(paragraphs, Paragraph{Style: style, Text: current.String()})
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, Paragraph{Style: StylePlain, Text: current.String()})
	}
	return paragraphs, nil
}

// String renders t as plain text, one paragraph per line.
func (t *Text) String() string {
	paragraphs, err := t.Paragraphs()
	if err != nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range paragraphs {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
