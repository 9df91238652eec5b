package rmscene

// HeaderV6 is the fixed 43-byte ASCII preamble of every reMarkable v6
// scene file.
const HeaderV6 = "reMarkable .lines file, version=6          "

// Top-level block type bytes.
const (
	BlockMigrationInfo  uint8 = 0x00
	BlockSceneTree      uint8 = 0x01
	BlockTreeNode       uint8 = 0x02
	BlockSceneGlyphItem uint8 = 0x03
	BlockSceneGroupItem uint8 = 0x04
	BlockSceneLineItem  uint8 = 0x05
	BlockSceneTextItem  uint8 = 0x06
	BlockRootText       uint8 = 0x07
	BlockSceneTombstone uint8 = 0x08
	BlockAuthorIDs      uint8 = 0x09
	BlockPageInfo       uint8 = 0x0A
	BlockSceneInfo      uint8 = 0x0D
)

// Point record sizes in bytes, used to derive point counts from a
// sub-block's declared length.
const (
	PointSizeV1 = 24
	PointSizeV2 = 14
)

// BlockInfo describes a top-level block envelope as read from (or about
// to be written to) the stream.
type BlockInfo struct {
	Offset         uint32
	Length         uint32
	BlockType      uint8
	MinVersion     uint8
	CurrentVersion uint8
}
