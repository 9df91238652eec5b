package rmscene

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// itemPrefix is the five-field header common to every scene item block
// (spec.md §4.6 "Scene item blocks").
type itemPrefix struct {
	ParentID, ItemID, LeftID, RightID CrdtID
	DeletedLength                     uint32
}

func readItemPrefix(r *Reader) (itemPrefix, error) {
	var p itemPrefix
	var err error
	if p.ParentID, err = r.ReadID(1); err != nil {
		return p, err
	}
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

func writeItemPrefix(w *Writer, p itemPrefix) {
	w.WriteID(1, p.ParentID)
	w.WriteID(2, p.ItemID)
	w.WriteID(3, p.LeftID)
	w.WriteID(4, p.RightID)
	w.WriteU32(5, p.DeletedLength)
}

// Item-value discriminator bytes written inside a scene item's value
// sub-block (index 6). These describe the union variant; the tablet
// firmware's exact numbering here is undocumented upstream, so this
// codec picks a stable internal numbering and is consistent between its
// own reader and writer (see DESIGN.md).
const (
	discriminatorGlyphRange uint8 = 0x01
	discriminatorGroup      uint8 = 0x02
	discriminatorLine       uint8 = 0x03
	discriminatorEmpty      uint8 = 0x06
)

// rawItemValue is the not-yet-resolved payload of a scene item block:
// group references are stored as the referenced CrdtID rather than a
// live *Group, since the referenced Group may not exist yet when this
// block is read (spec.md §9 "Cyclic and back references"). SceneTree
// resolves the reference as soon as it processes the block, creating
// the referenced group if it is not registered yet.
type rawItemValue struct {
	kind     SceneItemKind
	line     *Line
	glyph    *GlyphRange
	groupRef CrdtID
}

func readSceneItemBlock(r *Reader, blockType, version uint8) (itemPrefix, rawItemValue, bool, error) {
	prefix, err := readItemPrefix(r)
	if err != nil {
		return prefix, rawItemValue{}, false, err
	}
	if prefix.DeletedLength > 0 || !r.HasSubblock(6) {
		return prefix, rawItemValue{}, false, nil
	}

	if _, err := r.BeginSubblock(6); err != nil {
		return prefix, rawItemValue{}, false, err
	}
	if _, err := r.bs.ReadU8(); err != nil { // discriminator, not re-validated on read
		return prefix, rawItemValue{}, false, err
	}

	var value rawItemValue
	switch blockType {
	case BlockSceneLineItem:
		line, err := readLineValue(r, version)
		if err != nil {
			return prefix, rawItemValue{}, false, err
		}
		value = rawItemValue{kind: SceneItemLine, line: line}
	case BlockSceneGroupItem:
		childID, err := r.ReadID(2)
		if err != nil {
			return prefix, rawItemValue{}, false, err
		}
		value = rawItemValue{kind: SceneItemGroup, groupRef: childID}
	case BlockSceneGlyphItem:
		glyph, err := readGlyphRangeValue(r)
		if err != nil {
			return prefix, rawItemValue{}, false, err
		}
		value = rawItemValue{kind: SceneItemGlyphRange, glyph: glyph}
	case BlockSceneTextItem, BlockSceneTombstone:
		value = rawItemValue{kind: SceneItemNone}
	default:
		return prefix, rawItemValue{}, false, errors.Errorf("readSceneItemBlock: unsupported block type 0x%02X", blockType)
	}

	if err := r.EndSubblock(); err != nil {
		return prefix, rawItemValue{}, false, err
	}
	return prefix, value, true, nil
}

func writeSceneItemBlock(w *Writer, version uint8, prefix itemPrefix, value rawItemValue, hasValue bool) error {
	writeItemPrefix(w, prefix)
	if !hasValue {
		return nil
	}
	w.BeginSubblock(6)
	switch value.kind {
	case SceneItemLine:
		w.bs.WriteU8(discriminatorLine)
		writeLineValue(w, version, value.line)
	case SceneItemGroup:
		w.bs.WriteU8(discriminatorGroup)
		w.WriteID(2, value.groupRef)
	case SceneItemGlyphRange:
		w.bs.WriteU8(discriminatorGlyphRange)
		if err := writeGlyphRangeValue(w, value.glyph); err != nil {
			return err
		}
	case SceneItemNone:
		w.bs.WriteU8(discriminatorEmpty)
	}
	return w.EndSubblock()
}

// readLineValue reads the Line encoding inside a scene line item's
// value sub-block (spec.md §4.6 "Line encoding").
func readLineValue(r *Reader, version uint8) (*Line, error) {
	toolID, err := r.ReadU32(1)
	if err != nil {
		return nil, err
	}
	colorID, err := r.ReadU32(2)
	if err != nil {
		return nil, err
	}
	thicknessScale, err := r.ReadF64(3)
	if err != nil {
		return nil, err
	}
	startingLength, err := r.ReadF32(4)
	if err != nil {
		return nil, err
	}

	subblockLen, err := r.BeginSubblock(5)
	if err != nil {
		return nil, err
	}
	pointSize := pointSizeFor(version)
	numPoints := int(subblockLen) / pointSize
	points := make([]Point, numPoints)
	for i := range points {
		p, err := readPoint(r.bs, version)
		if err != nil {
			return nil, err
		}
		points[i] = p
	}
	if err := r.EndSubblock(); err != nil {
		return nil, err
	}

	if _, err := r.ReadID(6); err != nil { // timestamp, unused
		return nil, err
	}

	var moveID *CrdtID
	if r.PeekTag(7, WireID) {
		id, err := r.ReadID(7)
		if err != nil {
			return nil, err
		}
		moveID = &id
	}

	return &Line{
		Color:          PenColor(colorID),
		Tool:           Pen(toolID),
		Points:         points,
		ThicknessScale: thicknessScale,
		StartingLength: startingLength,
		MoveID:         moveID,
	}, nil
}

// lineTimestampConstant is the fixed, unused id written at index 6 of
// every Line value, matching spec.md §4.6's documented write behaviour.
var lineTimestampConstant = CrdtID{Author: 0, Counter: 1}

func writeLineValue(w *Writer, version uint8, l *Line) {
	w.WriteU32(1, uint32(l.Tool))
	w.WriteU32(2, uint32(l.Color))
	w.WriteF64(3, l.ThicknessScale)
	w.WriteF32(4, l.StartingLength)

	w.BeginSubblock(5)
	for _, p := range l.Points {
		writePoint(w.bs, version, p)
	}
	_ = w.EndSubblock()

	w.WriteID(6, lineTimestampConstant)
	if l.MoveID != nil {
		w.WriteID(7, *l.MoveID)
	}
}

// readGlyphRangeValue reads a GlyphRange value (spec.md §4.6
// "GlyphRange encoding").
func readGlyphRangeValue(r *Reader) (*GlyphRange, error) {
	var start *uint32
	if r.PeekTag(2, WireByte4) {
		v, err := r.ReadU32(2)
		if err != nil {
			return nil, err
		}
		start = &v
	}

	var length uint32
	var err error
	if start != nil {
		if length, err = r.ReadU32(3); err != nil {
			return nil, err
		}
	}

	colorID, err := r.ReadU32(4)
	if err != nil {
		return nil, err
	}
	text, err := r.ReadString(5)
	if err != nil {
		return nil, err
	}
	if start == nil {
		length = uint32(len(text))
	}

	if _, err := r.BeginSubblock(6); err != nil {
		return nil, err
	}
	n, err := r.bs.ReadVarUint()
	if err != nil {
		return nil, err
	}
	rects := make([]Rectangle, n)
	for i := range rects {
		x, err := r.bs.ReadF64()
		if err != nil {
			return nil, err
		}
		y, err := r.bs.ReadF64()
		if err != nil {
			return nil, err
		}
		rw, err := r.bs.ReadF64()
		if err != nil {
			return nil, err
		}
		rh, err := r.bs.ReadF64()
		if err != nil {
			return nil, err
		}
		rects[i] = Rectangle{X: x, Y: y, W: rw, H: rh}
	}
	if err := r.EndSubblock(); err != nil {
		return nil, err
	}

	return &GlyphRange{Start: start, Length: length, Text: text, Color: PenColor(colorID), Rectangles: rects}, nil
}

func writeGlyphRangeValue(w *Writer, g *GlyphRange) error {
	if g.Start != nil {
		w.WriteU32(2, *g.Start)
		w.WriteU32(3, g.Length)
	}
	w.WriteU32(4, uint32(g.Color))
	if err := w.WriteString(5, g.Text); err != nil {
		return err
	}

	w.BeginSubblock(6)
	w.bs.WriteVarUint(uint64(len(g.Rectangles)))
	for _, rect := range g.Rectangles {
		w.bs.WriteF64(rect.X)
		w.bs.WriteF64(rect.Y)
		w.bs.WriteF64(rect.W)
		w.bs.WriteF64(rect.H)
	}
	return w.EndSubblock()
}

// MigrationInfoBlock is block type 0x00.
type MigrationInfoBlock struct {
	ID       CrdtID
	IsDevice bool
	// Unknown is the undocumented bool at index 3 (spec.md §9 Open
	// Questions); passed through opaquely.
	Unknown *bool
}

func readMigrationInfoBlock(r *Reader) (MigrationInfoBlock, error) {
	var b MigrationInfoBlock
	var err error
	if b.ID, err = r.ReadID(1); err != nil {
		return b, err
	}
	if b.IsDevice, err = r.ReadBool(2); err != nil {
		return b, err
	}
	if r.PeekTag(3, WireByte1) {
		v, err := r.ReadBool(3)
		if err != nil {
			return b, err
		}
		b.Unknown = &v
	}
	return b, nil
}

func writeMigrationInfoBlock(w *Writer, b MigrationInfoBlock) {
	w.WriteID(1, b.ID)
	w.WriteBool(2, b.IsDevice)
	if b.Unknown != nil {
		w.WriteBool(3, *b.Unknown)
	}
}

// PageInfoBlock is block type 0x0A.
type PageInfoBlock struct {
	Loads, Merges, TextChars, TextLines, TypeFolioUse uint32
}

func readPageInfoBlock(r *Reader) (PageInfoBlock, error) {
	var b PageInfoBlock
	var err error
	if b.Loads, err = r.ReadU32(1); err != nil {
		return b, err
	}
	if b.Merges, err = r.ReadU32(2); err != nil {
		return b, err
	}
	if b.TextChars, err = r.ReadU32(3); err != nil {
		return b, err
	}
	if b.TextLines, err = r.ReadU32(4); err != nil {
		return b, err
	}
	if r.PeekTag(5, WireByte4) {
		if b.TypeFolioUse, err = r.ReadU32(5); err != nil {
			return b, err
		}
	}
	return b, nil
}

func writePageInfoBlock(w *Writer, b PageInfoBlock) {
	w.WriteU32(1, b.Loads)
	w.WriteU32(2, b.Merges)
	w.WriteU32(3, b.TextChars)
	w.WriteU32(4, b.TextLines)
	if b.TypeFolioUse != 0 {
		w.WriteU32(5, b.TypeFolioUse)
	}
}

// SceneTreeBlock is block type 0x01.
type SceneTreeBlock struct {
	TreeID, NodeID CrdtID
	IsUpdate       bool
	ParentID       CrdtID
}

func readSceneTreeBlock(r *Reader) (SceneTreeBlock, error) {
	var b SceneTreeBlock
	var err error
	if b.TreeID, err = r.ReadID(1); err != nil {
		return b, err
	}
	if b.NodeID, err = r.ReadID(2); err != nil {
		return b, err
	}
	if b.IsUpdate, err = r.ReadBool(3); err != nil {
		return b, err
	}
	if _, err = r.BeginSubblock(4); err != nil {
		return b, err
	}
	if b.ParentID, err = r.ReadID(1); err != nil {
		return b, err
	}
	if err := r.EndSubblock(); err != nil {
		return b, err
	}
	return b, nil
}

func writeSceneTreeBlock(w *Writer, b SceneTreeBlock) {
	w.WriteID(1, b.TreeID)
	w.WriteID(2, b.NodeID)
	w.WriteBool(3, b.IsUpdate)
	w.BeginSubblock(4)
	w.WriteID(1, b.ParentID)
	_ = w.EndSubblock()
}

// TreeNodeBlock is block type 0x02.
type TreeNodeBlock struct {
	NodeID          CrdtID
	Label           LwwValue[string]
	Visible         LwwValue[bool]
	AnchorID        *LwwValue[CrdtID]
	AnchorType      *LwwValue[uint8]
	AnchorThreshold *LwwValue[float32]
	AnchorOriginX   *LwwValue[float32]
}

func readTreeNodeBlock(r *Reader) (TreeNodeBlock, error) {
	var b TreeNodeBlock
	var err error
	if b.NodeID, err = r.ReadID(1); err != nil {
		return b, err
	}
	if b.Label, err = r.ReadLwwString(2); err != nil {
		return b, err
	}
	if b.Visible, err = r.ReadLwwBool(3); err != nil {
		return b, err
	}
	if r.RemainingInBlock() > 0 {
		anchorID, err := r.ReadLwwID(7)
		if err != nil {
			return b, err
		}
		anchorType, err := r.ReadLwwByte(8)
		if err != nil {
			return b, err
		}
		anchorThreshold, err := r.ReadLwwFloat(9)
		if err != nil {
			return b, err
		}
		anchorOriginX, err := r.ReadLwwFloat(10)
		if err != nil {
			return b, err
		}
		b.AnchorID = &anchorID
		b.AnchorType = &anchorType
		b.AnchorThreshold = &anchorThreshold
		b.AnchorOriginX = &anchorOriginX
	}
	return b, nil
}

func writeTreeNodeBlock(w *Writer, b TreeNodeBlock) error {
	w.WriteID(1, b.NodeID)
	if err := w.WriteLwwString(2, b.Label); err != nil {
		return err
	}
	w.WriteLwwBool(3, b.Visible)
	if b.AnchorID != nil {
		w.WriteLwwID(7, *b.AnchorID)
		w.WriteLwwByte(8, *b.AnchorType)
		w.WriteLwwFloat(9, *b.AnchorThreshold)
		w.WriteLwwFloat(10, *b.AnchorOriginX)
	}
	return nil
}

// SceneInfoBlock is block type 0x0D.
type SceneInfoBlock struct {
	CurrentLayer        LwwValue[CrdtID]
	BackgroundVisible   *LwwValue[bool]
	RootDocumentVisible *LwwValue[bool]
	PaperSize           *[2]uint32
}

func readSceneInfoBlock(r *Reader) (SceneInfoBlock, error) {
	var b SceneInfoBlock
	var err error
	if b.CurrentLayer, err = r.ReadLwwID(1); err != nil {
		return b, err
	}
	if r.HasSubblock(2) {
		v, err := r.ReadLwwBool(2)
		if err != nil {
			return b, err
		}
		b.BackgroundVisible = &v
	}
	if r.HasSubblock(3) {
		v, err := r.ReadLwwBool(3)
		if err != nil {
			return b, err
		}
		b.RootDocumentVisible = &v
	}
	if r.HasSubblock(5) {
		if _, err := r.BeginSubblock(5); err != nil {
			return b, err
		}
		w1, err := r.bs.ReadU32()
		if err != nil {
			return b, err
		}
		w2, err := r.bs.ReadU32()
		if err != nil {
			return b, err
		}
		if err := r.EndSubblock(); err != nil {
			return b, err
		}
		b.PaperSize = &[2]uint32{w1, w2}
	}
	return b, nil
}

func writeSceneInfoBlock(w *Writer, b SceneInfoBlock) {
	w.WriteLwwID(1, b.CurrentLayer)
	if b.BackgroundVisible != nil {
		w.WriteLwwBool(2, *b.BackgroundVisible)
	}
	if b.RootDocumentVisible != nil {
		w.WriteLwwBool(3, *b.RootDocumentVisible)
	}
	if b.PaperSize != nil {
		w.BeginSubblock(5)
		w.bs.WriteU32(b.PaperSize[0])
		w.bs.WriteU32(b.PaperSize[1])
		_ = w.EndSubblock()
	}
}

// readAuthorIDsBlock reads block type 0x09: a count followed by that
// many (uuid-bytes, author_id) sub-blocks at index 0.
func readAuthorIDsBlock(r *Reader) (map[uint16]string, error) {
	n, err := r.bs.ReadVarUint()
	if err != nil {
		return nil, err
	}
	result := make(map[uint16]string, n)
	for i := uint64(0); i < n; i++ {
		if _, err := r.BeginSubblock(0); err != nil {
			return nil, err
		}
		length, err := r.bs.ReadVarUint()
		if err != nil {
			return nil, err
		}
		raw, err := r.bs.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		authorID, err := r.bs.ReadU16()
		if err != nil {
			return nil, err
		}
		if err := r.EndSubblock(); err != nil {
			return nil, err
		}
		result[authorID] = formatUUID(raw)
	}
	return result, nil
}

func writeAuthorIDsBlock(w *Writer, authors map[uint16]string) error {
	w.bs.WriteVarUint(uint64(len(authors)))
	for _, id := range sortedAuthorIDs(authors) {
		uuid := authors[id]
		raw, err := parseUUID(uuid)
		if err != nil {
			return errors.Wrapf(err, "author id %d", id)
		}
		w.BeginSubblock(0)
		w.bs.WriteVarUint(uint64(len(raw)))
		w.bs.WriteBytes(raw)
		w.bs.WriteU16(id)
		if err := w.EndSubblock(); err != nil {
			return err
		}
	}
	return nil
}

func sortedAuthorIDs(authors map[uint16]string) []uint16 {
	ids := make([]uint16, 0, len(authors))
	for id := range authors {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// formatUUID turns the raw little-endian UUID bytes stored on the wire
// into the canonical "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx" string,
// byte-reversing the first three groups (Microsoft GUID ordering).
func formatUUID(raw []byte) string {
	if len(raw) != 16 {
		return hex.EncodeToString(raw)
	}
	g1 := reverseBytes(raw[0:4])
	g2 := reverseBytes(raw[4:6])
	g3 := reverseBytes(raw[6:8])
	g4 := raw[8:10]
	g5 := raw[10:16]
	return strings.Join([]string{
		hex.EncodeToString(g1),
		hex.EncodeToString(g2),
		hex.EncodeToString(g3),
		hex.EncodeToString(g4),
		hex.EncodeToString(g5),
	}, "-")
}

// parseUUID inverts formatUUID.
func parseUUID(s string) ([]byte, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 5 {
		return nil, errors.Errorf("malformed UUID %q", s)
	}
	groups := make([][]byte, 5)
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed UUID %q", s)
		}
		groups[i] = b
	}
	out := make([]byte, 0, 16)
	out = append(out, reverseBytes(groups[0])...)
	out = append(out, reverseBytes(groups[1])...)
	out = append(out, reverseBytes(groups[2])...)
	out = append(out, groups[3]...)
	out = append(out, groups[4]...)
	return out, nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return out
}
