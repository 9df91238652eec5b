package rmscene

import "fmt"

// PenColor enumerates the stroke/highlight colors visible on the wire;
// the numeric values are part of the format and must not be renumbered.
type PenColor uint32

const (
	ColorBlack       PenColor = 0
	ColorGray        PenColor = 1
	ColorWhite       PenColor = 2
	ColorYellow      PenColor = 3
	ColorGreen       PenColor = 4
	ColorPink        PenColor = 5
	ColorBlue        PenColor = 6
	ColorRed         PenColor = 7
	ColorGrayOverlap PenColor = 8
	ColorHighlight   PenColor = 9
	ColorGreen2      PenColor = 10
	ColorCyan        PenColor = 11
	ColorMagenta     PenColor = 12
	ColorYellow2     PenColor = 13
)

// Pen enumerates tool/brush types; numeric values are wire-visible.
type Pen uint32

const (
	PenPaintbrush1       Pen = 0
	PenPencil1           Pen = 1
	PenBallpoint1        Pen = 2
	PenMarker1           Pen = 3
	PenFineliner1        Pen = 4
	PenHighlighter1      Pen = 5
	PenEraser            Pen = 6
	PenMechanicalPencil1 Pen = 7
	PenEraserArea        Pen = 8
	PenPaintbrush2       Pen = 12
	PenMechanicalPencil2 Pen = 13
	PenPencil2           Pen = 14
	PenBallpoint2        Pen = 15
	PenMarker2           Pen = 16
	PenFineliner2        Pen = 17
	PenHighlighter2      Pen = 18
	PenCalligraphy       Pen = 21
	PenShader            Pen = 23
)

// IsHighlighter reports whether the pen is one of the highlighter tools.
func (p Pen) IsHighlighter() bool {
	return p == PenHighlighter1 || p == PenHighlighter2
}

// ParagraphStyle enumerates text paragraph formats; numeric values are
// wire-visible.
type ParagraphStyle uint32

const (
	StyleBasic           ParagraphStyle = 0
	StylePlain           ParagraphStyle = 1
	StyleHeading         ParagraphStyle = 2
	StyleBold            ParagraphStyle = 3
	StyleBullet          ParagraphStyle = 4
	StyleBullet2         ParagraphStyle = 5
	StyleCheckbox        ParagraphStyle = 6
	StyleCheckboxChecked ParagraphStyle = 7
)

func (s ParagraphStyle) String() string {
	switch s {
	case StyleBasic:
		return "basic"
	case StylePlain:
		return "plain"
	case StyleHeading:
		return "heading"
	case StyleBold:
		return "bold"
	case StyleBullet:
		return "bullet"
	case StyleBullet2:
		return "bullet2"
	case StyleCheckbox:
		return "checkbox"
	case StyleCheckboxChecked:
		return "checkbox-checked"
	default:
		return fmt.Sprintf("unknown-%d", uint32(s))
	}
}

// Point is a single sample of a stroke, in the lossless v2 wire shape;
// points read from a v1 block are converted into this shape (see
// PointFromV1/PointToV1).
type Point struct {
	X         float32
	Y         float32
	Speed     uint16
	Direction uint8
	Width     uint16
	Pressure  uint8
}

// Line is a drawn stroke.
type Line struct {
	Color          PenColor
	Tool           Pen
	Points         []Point
	ThicknessScale float64
	StartingLength float32
	MoveID         *CrdtID
}

// Rectangle is an axis-aligned box, used by GlyphRange to mark the
// on-page extent of a highlighted text run.
type Rectangle struct {
	X, Y, W, H float64
}

// GlyphRange is a highlighted span of text and the rectangles it covers
// on the page.
type GlyphRange struct {
	Start      *uint32
	Length     uint32
	Text       string
	Color      PenColor
	Rectangles []Rectangle
}

// Group is a layer/folder node in the scene tree. Label and Visible are
// always present (with defaults "" and true); the four Anchor* fields
// are either all present or all nil, depending on whether the
// TreeNodeBlock that wrote them carried the anchor extension bytes.
type Group struct {
	NodeID          CrdtID
	ParentID        CrdtID
	Children        *CrdtSequence[SceneItem]
	Label           LwwValue[string]
	Visible         LwwValue[bool]
	AnchorID        *LwwValue[CrdtID]
	AnchorType      *LwwValue[uint8]
	AnchorThreshold *LwwValue[float32]
	AnchorOriginX   *LwwValue[float32]
}

// NewGroup creates an empty group with the mandatory LWW registers
// defaulted to timestamp (0,0).
func NewGroup(id CrdtID) *Group {
	return &Group{
		NodeID:   id,
		Children: NewCrdtSequence[SceneItem](),
		Label:    LwwValue[string]{Value: ""},
		Visible:  LwwValue[bool]{Value: true},
	}
}

// TextItemValue is the CRDT sequence value type for root text: either a
// run of literal characters or a paragraph-style break code. A style-code
// entry also keeps any text that was encoded alongside the code.
type TextItemValue struct {
	IsStyleCode bool
	Text        string
	StyleCode   uint32
}

// Text is the root text CRDT: a sequence of character runs and
// paragraph-style markers, plus the per-position style overrides.
type Text struct {
	Items  *CrdtSequence[TextItemValue]
	Styles map[CrdtID]LwwValue[ParagraphStyle]
	PosX   float64
	PosY   float64
	Width  float32
}

// NewText creates an empty Text.
func NewText() *Text {
	return &Text{
		Items:  NewCrdtSequence[TextItemValue](),
		Styles: make(map[CrdtID]LwwValue[ParagraphStyle]),
	}
}

// SceneItemKind discriminates the SceneItem tagged union.
type SceneItemKind int

const (
	SceneItemNone SceneItemKind = iota
	SceneItemLine
	SceneItemGroup
	SceneItemGlyphRange
)

// SceneItem is the tagged union of values a scene CRDT sequence entry
// can hold: a stroke, a reference to a child group, or a highlight.
// Text does not appear here — root text has its own sequence of
// TextItemValue.
type SceneItem struct {
	Kind       SceneItemKind
	Line       *Line
	Group      *Group
	GlyphRange *GlyphRange
}
